package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// Listener accepts TCP connections and wraps each in a Conn backed by a
// shared Pool.
type Listener struct {
	ln   *net.TCPListener
	pool *Pool
	opts Options
}

func Listen(addr string, pool *Pool, opts Options) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, err
	}

	return &Listener{
		ln:   ln,
		pool: pool,
		opts: opts.withDefaults(),
	}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts until ctx is done or the listener fails. Each new Conn is
// handed to accept before its receive goroutine starts. A connection that
// can't get pool buffers is closed right away.
func (l *Listener) Serve(ctx context.Context, accept func(*Conn)) error {
	logger := l.opts.Logger
	logger.Info("listening", slog.String("addr", l.ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() {
		l.ln.Close()
	})
	defer stop()
	defer l.ln.Close()

	for {
		nc, err := l.ln.AcceptTCP()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		c, err := NewConn(nc, l.pool, l.opts)
		if err != nil {
			logger.Warn("refusing connection",
				slog.String("remote", nc.RemoteAddr().String()),
				slog.String("error", err.Error()),
			)
			nc.Close()
			continue
		}

		accept(c)
		c.Start()
	}
}

func (l *Listener) Close() error {
	return l.ln.Close()
}
