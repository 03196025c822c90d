package yachu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/sicilica/yachu-server/message"
	"github.com/sicilica/yachu-server/transport"
)

type ClientState int

const (
	CLIENT_DISCONNECTED ClientState = iota
	CLIENT_HANDSHAKING
	CLIENT_NOT_LOGGED_IN
	CLIENT_LOGGING_IN
	CLIENT_CONNECTED
)

func (s ClientState) String() string {
	switch s {
	case CLIENT_DISCONNECTED:
		return "Disconnected"
	case CLIENT_HANDSHAKING:
		return "HandShaking"
	case CLIENT_NOT_LOGGED_IN:
		return "NotLoggedIn"
	case CLIENT_LOGGING_IN:
		return "LoggingIn"
	case CLIENT_CONNECTED:
		return "Connected"
	}
	return fmt.Sprintf("ClientState(%d)", int(s))
}

type ClientKind int

const (
	CLIENT_ANONYMOUS ClientKind = iota
	CLIENT_REGISTERED
)

// Conn is the transport a Client talks through. *transport.Conn satisfies
// it.
type Conn interface {
	Send(m message.Message) error
	Shutdown() error
	RemoteAddr() net.Addr
	Inbox() *transport.Inbox
}

var _ Conn = (*transport.Conn)(nil)

// Client is one connected player. All fields are owned by the game loop.
type Client struct {
	server *Server
	conn   Conn
	logger *slog.Logger

	state      ClientState
	kind       ClientKind
	id         uuid.UUID
	name       string
	userData   message.UserData
	room       *Room
	acceptedAt time.Time

	observers []*disconnectObserver
	scratch   []message.Message
}

type disconnectObserver struct {
	fn func(*Client)
}

func newClient(s *Server, conn Conn) *Client {
	return &Client{
		server:     s,
		conn:       conn,
		logger:     s.logger.With(slog.String("client", conn.RemoteAddr().String())),
		state:      CLIENT_HANDSHAKING,
		acceptedAt: s.now(),
	}
}

func (c *Client) State() ClientState { return c.state }

func (c *Client) Kind() ClientKind { return c.kind }

func (c *Client) ID() uuid.UUID { return c.id }

func (c *Client) Name() string { return c.name }

func (c *Client) UserData() message.UserData { return c.userData }

func (c *Client) Room() *Room { return c.room }

func (c *Client) Connected() bool { return c.state == CLIENT_CONNECTED }

func (c *Client) Disconnected() bool { return c.state == CLIENT_DISCONNECTED }

// Data is the identity shown to other players.
func (c *Client) Data() message.ClientData {
	return message.ClientData{
		ID:         c.id,
		Name:       c.name,
		Registered: c.kind == CLIENT_REGISTERED,
	}
}

func (c *Client) String() string {
	if c.Disconnected() {
		return "Unknown"
	}
	return fmt.Sprintf("%s/%s/%s", c.conn.RemoteAddr(), c.name, c.id)
}

// OnDisconnect registers fn to run once when the client closes. The
// returned func unregisters it.
func (c *Client) OnDisconnect(fn func(*Client)) (remove func()) {
	o := &disconnectObserver{fn: fn}
	c.observers = append(c.observers, o)
	return func() {
		c.observers = slices.DeleteFunc(c.observers, func(x *disconnectObserver) bool {
			return x == o
		})
	}
}

func (c *Client) Send(b message.Body) {
	c.SendMessage(message.Encode(b))
}

// SendMessage queues m on the connection. Failures are logged; a dead
// connection is reaped through its receive path.
func (c *Client) SendMessage(m message.Message) {
	if err := c.conn.Send(m); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			c.logger.Debug("send on closed connection", slog.String("type", m.Type.String()))
			return
		}
		c.logger.Warn("send failed", slog.String("type", m.Type.String()), errAttr(err))
		return
	}
	c.server.metrics.MessagesSent.WithLabelValues(m.Type.String()).Inc()
}

// SendAlert shows content to the player. Text past the alert field is cut.
func (c *Client) SendAlert(content string) {
	c.Send(&message.Alert{Content: content})
}

// syncUserData pushes the cached user data to the player.
func (c *Client) syncUserData() {
	c.Send(&message.UserDataUpdate{Client: c.Data(), Data: c.userData})
}

// Close ends the session. Disconnect observers run once, in registration
// order, before the connection is shut down. Frames already sent, such as
// a final alert, still go out.
func (c *Client) Close() {
	if c.Disconnected() {
		return
	}
	c.state = CLIENT_DISCONNECTED

	observers := slices.Clone(c.observers)
	c.observers = nil
	for _, o := range observers {
		o.fn(c)
	}

	if err := c.conn.Shutdown(); err != nil {
		c.logger.Debug("closing connection", errAttr(err))
	}
	c.logger.Info("client disconnected")
}

// tick dispatches what arrived since the last tick, then enforces the
// handshake deadline.
func (c *Client) tick(ctx context.Context, now time.Time) {
	if c.Disconnected() {
		return
	}

	c.scratch = c.conn.Inbox().Drain(c.scratch[:0])
	ctx = WithLogger(ctx, c.logger)
	for _, m := range c.scratch {
		if c.Disconnected() {
			break
		}
		c.server.metrics.MessagesReceived.WithLabelValues(m.Type.String()).Inc()
		c.server.dispatcher.Dispatch(ctx, c, m)
	}
	clear(c.scratch)

	if c.state == CLIENT_HANDSHAKING && now.Sub(c.acceptedAt) >= c.server.cfg.HandshakeTimeout {
		c.logger.Info("handshake timed out")
		c.Close()
	}
}

// identify binds the client to an account and tags its logger.
func (c *Client) identify(kind ClientKind, id uuid.UUID, name string) {
	c.kind = kind
	c.id = id
	c.name = name
	c.state = CLIENT_CONNECTED
	c.logger = c.server.logger.With(
		slog.String("client", c.conn.RemoteAddr().String()),
		slog.String("name", name),
		slog.String("id", id.String()),
	)
}

func (c *Client) forget() {
	c.kind = CLIENT_ANONYMOUS
	c.id = uuid.Nil
	c.name = ""
	c.userData = message.UserData{}
	c.logger = c.server.logger.With(slog.String("client", c.conn.RemoteAddr().String()))
}
