package yachu

import (
	"context"
	"testing"

	"github.com/sicilica/yachu-server/message"
)

func TestDispatcher_Multicast(t *testing.T) {
	d := NewDispatcher()

	var calls []string
	d.Handle(message.TYPE_LOGOUT, func(ctx context.Context, c *Client, m message.Message) {
		calls = append(calls, "first")
	})
	d.Handle(message.TYPE_LOGOUT, func(ctx context.Context, c *Client, m message.Message) {
		calls = append(calls, "second")
	})

	d.Dispatch(context.Background(), nil, message.Encode(&message.Logout{}))
	d.Dispatch(context.Background(), nil, message.Encode(&message.RoomCreate{}))

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestDispatcher_RecoversPanic(t *testing.T) {
	d := NewDispatcher()

	var panicked []message.Type
	d.OnPanic = func(typ message.Type) { panicked = append(panicked, typ) }

	ran := false
	d.Handle(message.TYPE_ROOM_EXIT, func(ctx context.Context, c *Client, m message.Message) {
		panic("boom")
	})
	d.Handle(message.TYPE_ROOM_EXIT, func(ctx context.Context, c *Client, m message.Message) {
		ran = true
	})

	d.Dispatch(context.Background(), nil, message.Encode(&message.RoomExit{}))

	if len(panicked) != 1 || panicked[0] != message.TYPE_ROOM_EXIT {
		t.Errorf("panics = %v", panicked)
	}
	if !ran {
		t.Error("handler after the panicking one did not run")
	}
}

func TestDispatcher_IgnoresUnknownType(t *testing.T) {
	d := NewDispatcher()
	d.Dispatch(context.Background(), nil, message.Message{Type: message.TypeCount + 5})
}

func TestDispatcher_HandleRejectsInvalidType(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Handle accepted an out of range type")
		}
	}()
	NewDispatcher().Handle(message.TypeCount, func(context.Context, *Client, message.Message) {})
}
