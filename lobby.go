package yachu

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/sicilica/yachu-server/message"
)

// Lobby owns the fixed room pool and the list of rooms looking for players.
type Lobby struct {
	server  *Server
	rooms   []*Room
	waiting []*Room
}

func newLobby(s *Server, count, capacity int) *Lobby {
	l := &Lobby{server: s}
	l.rooms = make([]*Room, count)
	for i := range l.rooms {
		l.rooms[i] = newRoom(l, i, capacity)
	}
	return l
}

func (l *Lobby) Rooms() []*Room { return l.rooms }

// Waiting lists the rooms open for quick join, oldest first.
func (l *Lobby) Waiting() []*Room { return slices.Clone(l.waiting) }

// FindRoom picks a room for quick join: the oldest waiting room, else any
// waiting room with a free seat.
func (l *Lobby) FindRoom() *Room {
	if len(l.waiting) > 0 {
		return l.waiting[0]
	}
	for _, r := range l.rooms {
		if r.state == ROOM_WAITING && !r.Full() {
			return r
		}
	}
	return nil
}

// FindEmptyRoom picks a room nobody is in.
func (l *Lobby) FindEmptyRoom() *Room {
	for _, r := range l.rooms {
		if r.state == ROOM_WAITING && len(r.players) == 0 {
			return r
		}
	}
	return nil
}

func (l *Lobby) addWaiting(r *Room) {
	if !slices.Contains(l.waiting, r) {
		l.waiting = append(l.waiting, r)
	}
}

func (l *Lobby) removeWaiting(r *Room) {
	l.waiting = slices.DeleteFunc(l.waiting, func(x *Room) bool { return x == r })
}

func (s *Server) registerLobbyHandlers(d *Dispatcher) {
	d.Handle(message.TYPE_ROOM_AUTO_ENTER, s.handleRoomAutoEnter)
	d.Handle(message.TYPE_ROOM_CREATE, s.handleRoomCreate)
	d.Handle(message.TYPE_ROOM_READY, s.handleRoomReady)
	d.Handle(message.TYPE_ROOM_START, s.handleRoomStart)
	d.Handle(message.TYPE_ROOM_EXIT, s.handleRoomExit)
}

func (s *Server) handleRoomAutoEnter(ctx context.Context, c *Client, m message.Message) {
	if !c.Connected() {
		Logger(ctx).Warn("quick join before login")
		return
	}
	if c.room != nil {
		Logger(ctx).Debug("quick join while in a room", slog.Int("room", c.room.number))
		return
	}

	r := s.lobby.FindRoom()
	if r == nil {
		c.SendAlert("Quick join is unavailable right now.")
		return
	}
	if err := r.Join(c); err != nil {
		Logger(ctx).Warn("quick join failed", slog.Int("room", r.number), errAttr(err))
		c.SendAlert("Quick join is unavailable right now.")
	}
}

func (s *Server) handleRoomCreate(ctx context.Context, c *Client, m message.Message) {
	if !c.Connected() {
		Logger(ctx).Warn("room create before login")
		return
	}
	if c.room != nil {
		Logger(ctx).Debug("room create while in a room", slog.Int("room", c.room.number))
		return
	}

	r := s.lobby.FindEmptyRoom()
	if r == nil {
		c.SendAlert("There is no free room right now.")
		return
	}
	if err := r.Join(c); err != nil {
		Logger(ctx).Warn("room create failed", slog.Int("room", r.number), errAttr(err))
	}
}

func (s *Server) handleRoomReady(ctx context.Context, c *Client, m message.Message) {
	var req message.RoomReady
	if err := message.Decode(m, &req); err != nil {
		Logger(ctx).Warn("bad ready", errAttr(err))
		return
	}
	if c.room == nil {
		Logger(ctx).Warn("ready outside a room")
		return
	}
	if err := c.room.SetReady(c, int(req.Index), req.Ready); err != nil {
		Logger(ctx).Warn("ready rejected", errAttr(err))
	}
}

func (s *Server) handleRoomStart(ctx context.Context, c *Client, m message.Message) {
	r := c.room
	if r == nil {
		Logger(ctx).Warn("start outside a room")
		return
	}
	if r.Host() != c {
		Logger(ctx).Warn("start from a player who is not host")
		return
	}

	err := r.Start()
	switch {
	case err == nil:
	case errors.Is(err, ErrNotReady):
		c.SendAlert("Someone is not ready yet.")
	case errors.Is(err, ErrNotEnoughPlayers):
		c.SendAlert("Waiting for more players.")
	default:
		Logger(ctx).Warn("start rejected", errAttr(err))
	}
}

func (s *Server) handleRoomExit(ctx context.Context, c *Client, m message.Message) {
	if c.room == nil {
		Logger(ctx).Debug("exit outside a room")
		return
	}
	c.room.Leave(c)
}
