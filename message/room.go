package message

// RoomData is the full snapshot of a room. Unused slots are padded with
// EmptyClient and zero values.
type RoomData struct {
	Number         int32
	MaxPlayer      int16
	PlayerCount    int16
	ArenaSizeIndex int16
	Name           string
	Clients        [MaxPlayerInRoom]ClientData
	Ready          [MaxPlayerInRoom]bool
	UserData       [MaxPlayerInRoom]UserData
}

func (d *RoomData) encode(w *writer) {
	w.i32(d.Number)
	w.i16(d.MaxPlayer)
	w.i16(d.PlayerCount)
	w.i16(d.ArenaSizeIndex)
	w.str(d.Name, MaxRoomNameLength)
	for _, c := range d.Clients {
		c.encode(w)
	}
	for _, ready := range d.Ready {
		w.boolean(ready)
	}
	for _, u := range d.UserData {
		u.encode(w)
	}
}

func (d *RoomData) decode(r *reader) {
	d.Number = r.i32()
	d.MaxPlayer = r.i16()
	d.PlayerCount = r.i16()
	d.ArenaSizeIndex = r.i16()
	d.Name = r.str(MaxRoomNameLength)
	for i := range d.Clients {
		d.Clients[i].decode(r)
	}
	for i := range d.Ready {
		d.Ready[i] = r.boolean()
	}
	for i := range d.UserData {
		d.UserData[i].decode(r)
	}
}

type RoomAutoEnter struct{ empty }

func (*RoomAutoEnter) Type() Type { return TYPE_ROOM_AUTO_ENTER }

type RoomCreate struct{ empty }

func (*RoomCreate) Type() Type { return TYPE_ROOM_CREATE }

// RoomEnter is sent to a player joining a room.
type RoomEnter struct {
	Room RoomData
}

func (*RoomEnter) Type() Type { return TYPE_ROOM_ENTER }

func (e *RoomEnter) encode(w *writer) { e.Room.encode(w) }

func (e *RoomEnter) decode(r *reader) { e.Room.decode(r) }

type RoomUpdate struct {
	Room RoomData
}

func (*RoomUpdate) Type() Type { return TYPE_ROOM_UPDATE }

func (e *RoomUpdate) encode(w *writer) { e.Room.encode(w) }

func (e *RoomUpdate) decode(r *reader) { e.Room.decode(r) }

// RoomNewUser tells existing members about a joiner. The client appends it
// to its own list.
type RoomNewUser struct {
	Client ClientData
	Data   UserData
}

func (*RoomNewUser) Type() Type { return TYPE_ROOM_NEW_USER }

func (n *RoomNewUser) encode(w *writer) {
	n.Client.encode(w)
	n.Data.encode(w)
}

func (n *RoomNewUser) decode(r *reader) {
	n.Client.decode(r)
	n.Data.decode(r)
}

// RoomExit is a request from the client, and the notice sent back to the
// player that left.
type RoomExit struct {
	RoomNumber int32
}

func (*RoomExit) Type() Type { return TYPE_ROOM_EXIT }

func (e *RoomExit) encode(w *writer) { w.i32(e.RoomNumber) }

func (e *RoomExit) decode(r *reader) { e.RoomNumber = r.i32() }

// RoomExitUser tells the remaining members which list index left.
type RoomExitUser struct {
	Index int16
}

func (*RoomExitUser) Type() Type { return TYPE_ROOM_EXIT_USER }

func (e *RoomExitUser) encode(w *writer) { w.i16(e.Index) }

func (e *RoomExitUser) decode(r *reader) { e.Index = r.i16() }

type RoomReady struct {
	Ready bool
	Index int32
}

func (*RoomReady) Type() Type { return TYPE_ROOM_READY }

func (e *RoomReady) encode(w *writer) {
	w.boolean(e.Ready)
	w.i32(e.Index)
}

func (e *RoomReady) decode(r *reader) {
	e.Ready = r.boolean()
	e.Index = r.i32()
}

// RoomStart is a start request from the host, and the game start notice
// from the server.
type RoomStart struct {
	Timestamp int64
}

func (*RoomStart) Type() Type { return TYPE_ROOM_START }

func (e *RoomStart) encode(w *writer) { w.i64(e.Timestamp) }

func (e *RoomStart) decode(r *reader) { e.Timestamp = r.i64() }
