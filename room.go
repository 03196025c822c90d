package yachu

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sicilica/yachu-server/message"
)

// MIN_PLAYERS_IN_ROOM is the smallest room that may start a game.
const MIN_PLAYERS_IN_ROOM = 2

var (
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyInRoom    = errors.New("already in this room")
	ErrInOtherRoom      = errors.New("already in another room")
	ErrNotWaiting       = errors.New("room is not waiting for players")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrNotReady         = errors.New("not every player is ready")
	ErrNotInRoom        = errors.New("not in this room")
)

type RoomState int

const (
	ROOM_WAITING RoomState = iota
	ROOM_PLAYING
)

func (s RoomState) String() string {
	if s == ROOM_PLAYING {
		return "Playing"
	}
	return "Waiting"
}

// Room is one slot of the lobby's fixed room pool.
type Room struct {
	lobby    *Lobby
	logger   *slog.Logger
	number   int
	capacity int

	name    string
	state   RoomState
	players []*roomPlayer
	session *PlaySession
}

func newRoom(l *Lobby, number, capacity int) *Room {
	r := &Room{
		lobby:    l,
		logger:   l.server.logger.With(slog.Int("room", number)),
		number:   number,
		capacity: capacity,
	}
	r.reset()
	return r
}

func (r *Room) Number() int { return r.number }

func (r *Room) Name() string { return r.name }

func (r *Room) State() RoomState { return r.state }

func (r *Room) Capacity() int { return r.capacity }

func (r *Room) Session() *PlaySession { return r.session }

func (r *Room) Len() int { return len(r.players) }

func (r *Room) Full() bool { return len(r.players) >= r.capacity }

func (r *Room) Players() []*Client {
	clients := make([]*Client, len(r.players))
	for i, p := range r.players {
		clients[i] = p.client
	}
	return clients
}

func (r *Room) Host() *Client {
	for _, p := range r.players {
		if p.isHost {
			return p.client
		}
	}
	return nil
}

// Index is c's position in the player list, or -1.
func (r *Room) Index(c *Client) int {
	return slices.IndexFunc(r.players, func(p *roomPlayer) bool {
		return p.client == c
	})
}

// Join adds c to the room. The first player in becomes host.
func (r *Room) Join(c *Client) error {
	switch {
	case c.room == r:
		return ErrAlreadyInRoom
	case c.room != nil:
		return ErrInOtherRoom
	case r.state != ROOM_WAITING:
		return ErrNotWaiting
	case r.Full():
		return ErrRoomFull
	}

	first := len(r.players) == 0
	if first {
		r.reset()
	}

	p := &roomPlayer{client: c, isHost: first}
	p.removeObserver = c.OnDisconnect(r.Leave)
	r.players = append(r.players, p)
	c.room = r

	if first {
		r.lobby.addWaiting(r)
	}
	if r.Full() {
		r.lobby.removeWaiting(r)
	}

	c.Send(&message.RoomEnter{Room: r.Data()})
	r.broadcastExcept(c, message.Encode(&message.RoomNewUser{Client: c.Data(), Data: c.userData}))

	r.logger.Info("player joined", slog.String("player", c.String()), slog.Int("players", len(r.players)))
	return nil
}

// Leave removes c. It is also the room's disconnect observer.
func (r *Room) Leave(c *Client) {
	i := r.Index(c)
	if i < 0 {
		return
	}

	p := r.players[i]
	p.removeObserver()
	r.players = slices.Delete(r.players, i, i+1)
	c.room = nil

	if !c.Disconnected() {
		c.Send(&message.RoomExit{RoomNumber: int32(r.number)})
	}
	r.broadcast(message.Encode(&message.RoomExitUser{Index: int16(i)}))

	if p.isHost && len(r.players) > 0 {
		r.players[0].isHost = true
	}
	r.logger.Info("player left", slog.String("player", c.String()), slog.Int("players", len(r.players)))

	if len(r.players) == 0 {
		r.reset()
		r.lobby.removeWaiting(r)
		return
	}

	switch r.state {
	case ROOM_PLAYING:
		// Disconnects reach the session through its own observer.
		if r.session != nil && !c.Disconnected() {
			r.session.playerLeft(c)
		}
	case ROOM_WAITING:
		if !r.Full() {
			r.lobby.addWaiting(r)
		}
	}
}

// SetReady records c's readiness and echoes it to every member.
func (r *Room) SetReady(c *Client, index int, ready bool) error {
	i := r.Index(c)
	if i < 0 {
		return ErrNotInRoom
	}
	if i != index {
		return fmt.Errorf("ready for index %d from player %d", index, i)
	}
	if r.state != ROOM_WAITING {
		return ErrNotWaiting
	}

	r.players[i].isReady = ready
	r.broadcast(message.Encode(&message.RoomReady{Ready: ready, Index: int32(i)}))
	return nil
}

// AllReady reports whether every member but the host is ready.
func (r *Room) AllReady() bool {
	for _, p := range r.players {
		if !p.isHost && !p.isReady {
			return false
		}
	}
	return true
}

// Start begins a game with the current members.
func (r *Room) Start() error {
	switch {
	case r.state != ROOM_WAITING:
		return ErrNotWaiting
	case len(r.players) < MIN_PLAYERS_IN_ROOM:
		return ErrNotEnoughPlayers
	case !r.AllReady():
		return ErrNotReady
	}

	r.lobby.removeWaiting(r)
	r.setState(ROOM_PLAYING)
	r.session = newPlaySession(r)
	r.logger.Info("game started", slog.Int("players", len(r.players)))
	return nil
}

// EndGame drops the session and returns the room to waiting.
func (r *Room) EndGame() {
	if r.session != nil {
		r.session.dispose()
		r.session = nil
	}
	for _, p := range r.players {
		p.isReady = false
	}
	r.setState(ROOM_WAITING)

	r.broadcast(message.Encode(&message.RoomUpdate{Room: r.Data()}))
	if len(r.players) > 0 && !r.Full() {
		r.lobby.addWaiting(r)
	}
}

// Data is the wire snapshot of the room.
func (r *Room) Data() message.RoomData {
	d := message.RoomData{
		Number:      int32(r.number),
		MaxPlayer:   int16(r.capacity),
		PlayerCount: int16(len(r.players)),
		Name:        r.name,
	}
	for i := range d.Clients {
		d.Clients[i] = message.EmptyClient
	}
	for i, p := range r.players {
		d.Clients[i] = p.client.Data()
		d.Ready[i] = p.isReady
		d.UserData[i] = p.client.userData
	}
	return d
}

func (r *Room) reset() {
	if r.session != nil {
		r.session.dispose()
		r.session = nil
	}
	for _, p := range r.players {
		p.removeObserver()
		p.client.room = nil
	}
	r.players = nil
	r.name = fmt.Sprintf("Game Room %d", r.number)
	r.setState(ROOM_WAITING)
}

func (r *Room) setState(state RoomState) {
	if r.state == state {
		return
	}
	if state == ROOM_PLAYING {
		r.lobby.server.metrics.RoomsPlaying.Inc()
	} else {
		r.lobby.server.metrics.RoomsPlaying.Dec()
	}
	r.state = state
}

func (r *Room) broadcast(m message.Message) {
	r.broadcastExcept(nil, m)
}

func (r *Room) broadcastExcept(except *Client, m message.Message) {
	for _, p := range r.players {
		if p.client != except {
			p.client.SendMessage(m)
		}
	}
}
