package yachu

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sicilica/yachu-server/config"
	"github.com/sicilica/yachu-server/message"
	"github.com/sicilica/yachu-server/metrics"
	"github.com/sicilica/yachu-server/storage"
	"github.com/sicilica/yachu-server/transport"
)

// STORAGE_TIMEOUT bounds each store call made on behalf of a client.
const STORAGE_TIMEOUT = 5 * time.Second

// Server owns every piece of game state. Client, room and session state is
// only touched from the tick loop.
type Server struct {
	cfg     config.Config
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	pool       *transport.Pool
	dispatcher *Dispatcher
	lobby      *Lobby
	identities *identityIndex

	tasks   taskQueue
	pending sync.WaitGroup
	baseCtx context.Context
	now     func() time.Time

	clients []*Client
}

func NewServer(cfg config.Config, store storage.Store, logger *slog.Logger, m *metrics.Metrics) *Server {
	// Each connection holds a receive and a send buffer.
	slots := cfg.MaxConnections * 2

	s := &Server{
		cfg:        cfg,
		store:      store,
		logger:     logger,
		metrics:    m,
		pool:       transport.NewPool(slots, cfg.BufferSize, slots),
		dispatcher: NewDispatcher(),
		identities: newIdentityIndex(),
		baseCtx:    context.Background(),
		now:        time.Now,
	}
	s.lobby = newLobby(s, cfg.RoomCount, cfg.RoomCapacity)

	s.dispatcher.OnPanic = func(message.Type) { m.HandlerPanics.Inc() }
	s.registerClientHandlers(s.dispatcher)
	s.registerLobbyHandlers(s.dispatcher)
	s.registerSessionHandlers(s.dispatcher)

	m.WatchPool(s.pool)
	return s
}

func (s *Server) Lobby() *Lobby { return s.lobby }

func (s *Server) Pool() *transport.Pool { return s.pool }

func (s *Server) connOptions() transport.Options {
	return transport.Options{
		ReceiveTimeout: s.cfg.ReceiveTimeout,
		SendTimeout:    s.cfg.SendTimeout,
		Linger:         s.cfg.Linger,
		Logger:         s.logger,
	}
}

// Listen opens the game port.
func (s *Server) Listen() (*transport.Listener, error) {
	return transport.Listen(s.cfg.Addr(), s.pool, s.connOptions())
}

// Run listens on the configured port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts players from ln and runs the game loop until ctx is done
// or one of them fails. On return every client has been closed.
func (s *Server) Serve(ctx context.Context, ln *transport.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ln.Serve(ctx, s.accept)
	})
	g.Go(func() error {
		return s.loop(ctx)
	})
	if s.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return s.metrics.Serve(ctx, s.cfg.MetricsAddr, s.logger)
		})
	}
	return g.Wait()
}

// accept runs on the listener goroutine.
func (s *Server) accept(c *transport.Conn) {
	s.metrics.ConnectionsAccepted.Inc()
	if !s.tasks.post(func() { s.addClient(c) }) {
		c.Close()
	}
}

func (s *Server) addClient(conn Conn) *Client {
	c := newClient(s, conn)
	s.clients = append(s.clients, c)
	c.logger.Info("client connected")
	return c
}

func (s *Server) loop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one step of the game loop: finished async work first, then
// every client's inbox, then removal of the clients that went away.
func (s *Server) Tick(ctx context.Context) {
	start := time.Now()

	for _, fn := range s.tasks.drain() {
		fn()
	}

	now := s.now()
	for _, c := range s.clients {
		c.tick(ctx, now)
	}
	s.reap()

	s.metrics.ConnectionsActive.Set(float64(len(s.clients)))
	s.metrics.TickDuration.Observe(time.Since(start).Seconds())
}

func (s *Server) reap() {
	s.clients = slices.DeleteFunc(s.clients, func(c *Client) bool {
		if !c.Disconnected() {
			return false
		}
		if c.id != uuid.Nil {
			s.identities.Remove(c.id, c)
		}
		return true
	})
}

func (s *Server) shutdown() {
	s.logger.Info("shutting down", slog.Int("clients", len(s.clients)))

	s.pending.Wait()
	for _, fn := range s.tasks.close() {
		fn()
	}
	for _, c := range s.clients {
		c.Close()
	}
	s.reap()

	// Saves started by the closes above still have to land.
	s.pending.Wait()
}
