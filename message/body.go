package message

import (
	"fmt"

	"github.com/google/uuid"
)

// Body is a fixed-layout record carried by exactly one message type.
type Body interface {
	Type() Type
	encode(w *writer)
	decode(r *reader)
}

// Encode builds the frame for b.
func Encode(b Body) Message {
	var w writer
	b.encode(&w)
	return Message{Type: b.Type(), Payload: w.b}
}

// Decode fills b from m. Trailing bytes are ignored; a body shorter than
// the record is an error.
func Decode(m Message, b Body) error {
	if m.Type != b.Type() {
		return fmt.Errorf("decode %T: got message type %s", b, m.Type)
	}
	r := reader{b: m.Payload}
	b.decode(&r)
	return r.err(m.Type.String())
}

// ClientData identifies a player to other clients.
type ClientData struct {
	ID         uuid.UUID
	Name       string
	Registered bool
}

// EmptyClient fills unused player slots.
var EmptyClient = ClientData{Name: "Empty"}

func (c ClientData) encode(w *writer) {
	w.guid(c.ID)
	w.str(c.Name, MaxNameLength)
	w.boolean(c.Registered)
}

func (c *ClientData) decode(r *reader) {
	c.ID = r.guid()
	c.Name = r.str(MaxNameLength)
	c.Registered = r.boolean()
}

type UserData struct {
	Money     int32
	PlayCount int32
	WinCount  int32
	LoseCount int32
}

func (u UserData) encode(w *writer) {
	w.i32(u.Money)
	w.i32(u.PlayCount)
	w.i32(u.WinCount)
	w.i32(u.LoseCount)
}

func (u *UserData) decode(r *reader) {
	u.Money = r.i32()
	u.PlayCount = r.i32()
	u.WinCount = r.i32()
	u.LoseCount = r.i32()
}

// empty is embedded by bodies without fields.
type empty struct{}

func (empty) encode(w *writer) { w.empty() }

func (empty) decode(*reader) {}
