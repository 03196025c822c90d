package yachu

import (
	"context"
	"log/slog"

	"github.com/sicilica/yachu-server/message"
)

// PlaySession runs one game in a room. Only the player holding the turn
// may drive the dice; their updates are relayed to everyone else.
type PlaySession struct {
	room   *Room
	server *Server
	logger *slog.Logger

	players    []*sessionPlayer
	globalTurn int
	phase      message.Phase
	finished   bool
	disposed   bool
}

func newPlaySession(r *Room) *PlaySession {
	s := r.lobby.server
	ps := &PlaySession{
		room:   r,
		server: s,
		logger: r.logger,
		phase:  message.PHASE_SCENE_LOADING,
	}
	for i, p := range r.players {
		sp := &sessionPlayer{
			client:   p.client,
			id:       p.client.id,
			kind:     p.client.kind,
			data:     p.client.Data(),
			userData: p.client.userData,
			index:    i,
			alive:    true,
			winner:   winnerUnreported,
		}
		sp.removeObserver = p.client.OnDisconnect(ps.playerLeft)
		ps.players = append(ps.players, sp)
	}

	ps.broadcast(message.Encode(&message.RoomStart{Timestamp: s.now().UnixMilli()}))
	return ps
}

func (ps *PlaySession) Phase() message.Phase { return ps.phase }

func (ps *PlaySession) GlobalTurn() int { return ps.globalTurn }

// CurrentTurn is the index of the player holding the turn.
func (ps *PlaySession) CurrentTurn() int {
	return ps.globalTurn % len(ps.players)
}

func (ps *PlaySession) current() *sessionPlayer {
	return ps.players[ps.CurrentTurn()]
}

func (ps *PlaySession) player(c *Client) *sessionPlayer {
	for _, p := range ps.players {
		if p.client == c {
			return p
		}
	}
	return nil
}

func (ps *PlaySession) online() []*sessionPlayer {
	var online []*sessionPlayer
	for _, p := range ps.players {
		if p.online() {
			online = append(online, p)
		}
	}
	return online
}

func (ps *PlaySession) all(pred func(*sessionPlayer) bool) bool {
	for _, p := range ps.online() {
		if !pred(p) {
			return false
		}
	}
	return true
}

func (ps *PlaySession) sceneLoaded(c *Client) {
	p := ps.player(c)
	if p == nil || ps.phase != message.PHASE_SCENE_LOADING {
		return
	}
	p.sceneLoaded = true
	if ps.all(func(p *sessionPlayer) bool { return p.sceneLoaded }) {
		ps.beginTurn()
	}
}

// beginTurn starts the turn of the current player, moving past them if
// they can no longer play.
func (ps *PlaySession) beginTurn() {
	if !ps.current().online() {
		ps.advanceTurn()
		return
	}

	ps.phase = message.PHASE_CUP_SHAKING
	for _, p := range ps.players {
		p.turnEnded = false
	}
	ps.broadcast(message.Encode(&message.GameTurnStart{
		Timestamp: ps.server.now().UnixMilli(),
		Turn:      int32(ps.globalTurn),
	}))
	ps.logger.Debug("turn started",
		slog.Int("turn", ps.globalTurn),
		slog.String("player", ps.current().client.String()),
	)
}

// advanceTurn passes the turn to the next player still in the game.
func (ps *PlaySession) advanceTurn() {
	for range ps.players {
		ps.globalTurn++
		if ps.current().online() {
			ps.beginTurn()
			return
		}
	}
	ps.logger.Warn("no player left to take the turn", slog.Int("turn", ps.globalTurn))
}

// relay forwards a dice message from the turn holder to the others.
func (ps *PlaySession) relay(c *Client, m message.Message) {
	if ps.finished || ps.phase == message.PHASE_SCENE_LOADING {
		return
	}
	p := ps.player(c)
	if p == nil || p != ps.current() {
		c.logger.Warn("dice message out of turn",
			slog.String("type", m.Type.String()),
			slog.Int("turn", ps.CurrentTurn()),
		)
		return
	}

	switch m.Type {
	case message.TYPE_GAME_DICE_THROW:
		ps.phase = message.PHASE_DICE_THROWING
	case message.TYPE_GAME_DICE_DETERMINED, message.TYPE_GAME_SELECT, message.TYPE_GAME_HOLD_DICE:
		ps.phase = message.PHASE_SELECTING
	case message.TYPE_GAME_INTERACT_CUP:
		ps.phase = message.PHASE_CUP_SHAKING
	case message.TYPE_GAME_MARK_SCORE:
		ps.phase = message.PHASE_TURN_ENDING
	}

	for _, o := range ps.players {
		if o != p && o.online() {
			o.client.SendMessage(m)
		}
	}
}

func (ps *PlaySession) turnEnded(c *Client) {
	p := ps.player(c)
	if p == nil || ps.finished || ps.phase == message.PHASE_SCENE_LOADING || ps.phase == message.PHASE_GAME_ENDING {
		return
	}
	p.turnEnded = true
	ps.phase = message.PHASE_TURN_ENDING
	if ps.all(func(p *sessionPlayer) bool { return p.turnEnded }) {
		ps.advanceTurn()
	}
}

func (ps *PlaySession) reportWinner(c *Client, index int) {
	p := ps.player(c)
	if p == nil || ps.finished {
		return
	}
	p.winner = index
	ps.phase = message.PHASE_GAME_ENDING
	if ps.all(func(p *sessionPlayer) bool { return p.winner != winnerUnreported }) {
		ps.resolve()
	}
}

// playerLeft handles a player disconnecting or walking out mid-game.
func (ps *PlaySession) playerLeft(c *Client) {
	if ps.finished || ps.disposed {
		return
	}
	p := ps.player(c)
	if p == nil || !p.alive {
		return
	}
	p.alive = false
	p.removeObserver()
	ps.logger.Info("player left the game", slog.String("player", c.String()))

	online := ps.online()
	if len(online) <= 1 {
		winner := message.DrawIndex
		if len(online) == 1 {
			winner = online[0].index
		}
		ps.finish(winner)
		return
	}

	switch {
	case ps.phase == message.PHASE_SCENE_LOADING:
		if ps.all(func(p *sessionPlayer) bool { return p.sceneLoaded }) {
			ps.beginTurn()
		}
	case ps.phase == message.PHASE_GAME_ENDING:
		if ps.all(func(p *sessionPlayer) bool { return p.winner != winnerUnreported }) {
			ps.resolve()
		}
	case p == ps.current():
		ps.advanceTurn()
	case ps.all(func(p *sessionPlayer) bool { return p.turnEnded }):
		ps.advanceTurn()
	}
}

// resolve settles the game once every online player has named a winner.
func (ps *PlaySession) resolve() {
	online := ps.online()
	reports := make([]int, len(online))
	for i, p := range online {
		reports[i] = p.winner
	}

	tieBreak := ps.current().winner
	if tieBreak == winnerUnreported {
		tieBreak = message.DrawIndex
	}

	winner, agreed := resolveWinner(reports, tieBreak)
	if !agreed {
		ps.server.metrics.GameDesyncs.Inc()
		ps.logger.Error("players disagree on the winner",
			slog.Any("reports", reports),
			slog.Int("turn_player", ps.CurrentTurn()),
			slog.Int("winner", winner),
		)
	}
	ps.finish(winner)
}

// resolveWinner returns the common report, or tieBreak when the reports
// differ.
func resolveWinner(reports []int, tieBreak int) (winner int, agreed bool) {
	if len(reports) == 0 {
		return tieBreak, true
	}
	for _, r := range reports[1:] {
		if r != reports[0] {
			return tieBreak, false
		}
	}
	return reports[0], true
}

// finish applies the result to every player, announces it and hands the
// room back.
func (ps *PlaySession) finish(winner int) {
	if ps.finished {
		return
	}
	if winner < message.DrawIndex || winner >= len(ps.players) {
		ps.logger.Warn("winner out of range, calling a draw", slog.Int("winner", winner))
		winner = message.DrawIndex
	}
	ps.finished = true
	ps.phase = message.PHASE_GAME_ENDING

	reward := ps.server.cfg.WinReward
	for _, p := range ps.players {
		data := p.userData
		if p.sameAccount() {
			data = p.client.userData
		}
		data.PlayCount++
		switch {
		case winner == message.DrawIndex:
		case p.index == winner:
			data.WinCount++
			data.Money += reward
		default:
			data.LoseCount++
		}
		if p.sameAccount() {
			ps.server.saveUserData(p.client, data)
		} else {
			ps.server.storeUserData(p.id, p.kind, data)
		}
	}

	result := message.GameEnd{Index: int16(winner), Client: message.EmptyClient}
	outcome := "draw"
	if winner != message.DrawIndex {
		result.Client = ps.players[winner].data
		outcome = "win"
	}
	ps.server.metrics.GamesFinished.WithLabelValues(outcome).Inc()
	ps.broadcast(message.Encode(&result))
	ps.logger.Info("game finished", slog.Int("winner", winner))

	ps.room.EndGame()
}

// dispose unhooks the session from its players.
func (ps *PlaySession) dispose() {
	if ps.disposed {
		return
	}
	ps.disposed = true
	for _, p := range ps.players {
		p.removeObserver()
	}
}

func (ps *PlaySession) broadcast(m message.Message) {
	for _, p := range ps.players {
		if p.online() {
			p.client.SendMessage(m)
		}
	}
}

func (s *Server) registerSessionHandlers(d *Dispatcher) {
	d.Handle(message.TYPE_SCENE_LOAD_DONE, s.withSession(func(ps *PlaySession, c *Client, m message.Message) {
		ps.sceneLoaded(c)
	}))
	for _, t := range []message.Type{
		message.TYPE_GAME_CUP_UPDATE,
		message.TYPE_GAME_DICE_UPDATE,
		message.TYPE_GAME_DICE_THROW,
		message.TYPE_GAME_DICE_DETERMINED,
		message.TYPE_GAME_SELECT,
		message.TYPE_GAME_INTERACT_CUP,
		message.TYPE_GAME_HOLD_DICE,
		message.TYPE_GAME_MARK_SCORE,
	} {
		d.Handle(t, s.withSession(func(ps *PlaySession, c *Client, m message.Message) {
			ps.relay(c, m)
		}))
	}
	d.Handle(message.TYPE_GAME_TURN_END, s.withSession(func(ps *PlaySession, c *Client, m message.Message) {
		ps.turnEnded(c)
	}))
	d.Handle(message.TYPE_GAME_END, s.withSession(func(ps *PlaySession, c *Client, m message.Message) {
		var req message.GameEnd
		if err := message.Decode(m, &req); err != nil {
			c.logger.Warn("bad game end", errAttr(err))
			return
		}
		ps.reportWinner(c, int(req.Index))
	}))
}

// withSession drops messages from players who are not in a running game.
func (s *Server) withSession(h func(ps *PlaySession, c *Client, m message.Message)) HandlerFunc {
	return func(ctx context.Context, c *Client, m message.Message) {
		r := c.room
		if r == nil || r.state != ROOM_PLAYING || r.session == nil {
			Logger(ctx).Debug("game message outside a game", slog.String("type", m.Type.String()))
			return
		}
		h(r.session, c, m)
	}
}
