package yachu

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/sicilica/yachu-server/message"
)

// HandlerFunc handles one message on behalf of c. It runs on the game loop.
type HandlerFunc func(ctx context.Context, c *Client, m message.Message)

// Dispatcher routes messages to every handler registered for their type.
type Dispatcher struct {
	handlers [message.TypeCount][]HandlerFunc

	// OnPanic is called after a handler panic has been recovered.
	OnPanic func(t message.Type)
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Handle(t message.Type, h HandlerFunc) {
	if !t.Valid() {
		panic(fmt.Sprintf("dispatcher: no such message type %d", t))
	}
	d.handlers[t] = append(d.handlers[t], h)
}

// Dispatch calls the handlers for m.Type in registration order. Types with
// no handler are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, m message.Message) {
	if !m.Type.Valid() {
		return
	}
	for _, h := range d.handlers[m.Type] {
		d.call(ctx, h, c, m)
	}
}

func (d *Dispatcher) call(ctx context.Context, h HandlerFunc, c *Client, m message.Message) {
	defer func() {
		if r := recover(); r != nil {
			Logger(ctx).ErrorContext(ctx, "handler panicked",
				slog.String("type", m.Type.String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			if d.OnPanic != nil {
				d.OnPanic(m.Type)
			}
		}
	}()
	h(ctx, c, m)
}
