package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sicilica/yachu-server/message"
)

var ErrClosed = errors.New("connection closed")

const (
	RECEIVE_TIMEOUT = 60 * time.Second
	SEND_TIMEOUT    = 3 * time.Second
	LINGER          = 1 * time.Second
)

type Options struct {
	ReceiveTimeout time.Duration
	SendTimeout    time.Duration
	Linger         time.Duration

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ReceiveTimeout <= 0 {
		o.ReceiveTimeout = RECEIVE_TIMEOUT
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = SEND_TIMEOUT
	}
	if o.Linger <= 0 {
		o.Linger = LINGER
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Conn owns one accepted socket. A receive goroutine decodes frames into
// the Inbox; outgoing frames are written in order by at most one delivery
// goroutine at a time.
type Conn struct {
	conn   net.Conn
	pool   *Pool
	opts   Options
	logger *slog.Logger

	inbox Inbox

	// Owned by the receive goroutine once Start has been called.
	dec     message.Decoder
	recvBuf *Buffer

	mu        sync.Mutex
	queue     []message.Message
	sending   bool
	sendBuf   *Buffer
	receiving bool
	closing   bool
	closed    bool
}

// NewConn takes a receive and a send buffer from pool. If the pool can't
// supply both, nothing is kept and ErrPoolExhausted is returned; closing
// nc is left to the caller.
func NewConn(nc net.Conn, pool *Pool, opts Options) (*Conn, error) {
	recv, err := pool.Acquire()
	if err != nil {
		return nil, err
	}
	send, err := pool.Acquire()
	if err != nil {
		pool.Release(recv)
		return nil, err
	}

	if tcp, ok := nc.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			pool.Release(recv)
			pool.Release(send)
			return nil, fmt.Errorf("set nodelay: %w", err)
		}
	}

	opts = opts.withDefaults()
	return &Conn{
		conn:    nc,
		pool:    pool,
		opts:    opts,
		logger:  opts.Logger.With(slog.String("remote", nc.RemoteAddr().String())),
		recvBuf: recv,
		sendBuf: send,
	}, nil
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Start launches the receive goroutine.
func (c *Conn) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.receiving {
		return
	}
	c.receiving = true
	go c.receive()
}

func (c *Conn) receive() {
	err := func() error {
		buf := c.recvBuf.Bytes()
		for {
			if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.ReceiveTimeout)); err != nil {
				return err
			}
			n, err := c.conn.Read(buf)
			if n > 0 {
				if err := c.dec.Feed(buf[:n], c.inbox.Push); err != nil {
					return err
				}
			}
			if err != nil {
				return err
			}
			if n == 0 {
				return io.EOF
			}
		}
	}()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	switch {
	case errors.Is(err, io.EOF) || closed:
		c.logger.Debug("receive finished", slog.String("reason", err.Error()))
	default:
		c.logger.Error("receive failed", slog.String("error", err.Error()))
	}

	c.dec.Reset()
	c.pool.Release(c.recvBuf)
	c.inbox.Push(message.Closed)
}

// Inbox exposes the decoded messages waiting for the game loop.
func (c *Conn) Inbox() *Inbox {
	return &c.inbox
}

// Send queues m behind any frames still being written. It never blocks on
// the socket.
func (c *Conn) Send(m message.Message) error {
	if len(m.Payload) > message.MaxBodyLength {
		return fmt.Errorf("%w: %d", message.ErrBodyTooLarge, len(m.Payload))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.closing {
		return ErrClosed
	}
	c.queue = append(c.queue, m)
	if !c.sending {
		c.sending = true
		go c.deliver()
	}
	return nil
}

func (c *Conn) deliver() {
	for {
		c.mu.Lock()
		if c.closed || len(c.queue) == 0 {
			c.sending = false
			closed, closing := c.closed, c.closing
			if closed {
				c.pool.Release(c.sendBuf)
			}
			c.mu.Unlock()
			if closing && !closed {
				c.Close()
			}
			return
		}
		m := c.queue[0]

		var frame []byte
		if size := message.FrameSize(m); size <= c.pool.Size() {
			frame = message.AppendFrame(c.sendBuf.Bytes()[:0], m)
		} else {
			frame = message.AppendFrame(make([]byte, 0, size), m)
		}
		c.mu.Unlock()

		if m.Type != message.TYPE_GAME_CUP_UPDATE && m.Type != message.TYPE_GAME_DICE_UPDATE {
			c.logger.Debug("sending", slog.String("type", m.Type.String()), slog.Int("bytes", len(frame)))
		}

		err := c.write(frame)

		c.mu.Lock()
		if len(c.queue) > 0 {
			c.queue[0] = message.Message{}
			c.queue = c.queue[1:]
		}
		c.mu.Unlock()

		if err != nil {
			c.logger.Error("send failed", slog.String("type", m.Type.String()), slog.String("error", err.Error()))
			c.Close()
		}
	}
}

func (c *Conn) write(frame []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.SendTimeout)); err != nil {
		return err
	}
	_, err := c.conn.Write(frame)
	return err
}

// Close tears the connection down. Frames still queued are dropped. It is
// safe to call more than once and from any goroutine.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.queue = nil
	if !c.sending {
		c.pool.Release(c.sendBuf)
	}
	if !c.receiving {
		c.pool.Release(c.recvBuf)
	}
	c.mu.Unlock()

	c.inbox.Clear()

	if tcp, ok := c.conn.(*net.TCPConn); ok {
		if err := tcp.SetLinger(int(c.opts.Linger / time.Second)); err != nil {
			c.logger.Debug("set linger", slog.String("error", err.Error()))
		}
	}
	return c.conn.Close()
}

// Shutdown stops accepting frames and closes the connection once the ones
// already queued have been written.
func (c *Conn) Shutdown() error {
	c.mu.Lock()
	if c.closed || c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	sending := c.sending
	c.mu.Unlock()

	if sending {
		return nil
	}
	return c.Close()
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
