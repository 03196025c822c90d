// Package config loads server settings from YACHU_* environment variables,
// then lets command-line flags override them.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sicilica/yachu-server/message"
)

type Config struct {
	Port           int `env:"PORT" envDefault:"10020"`
	MaxConnections int `env:"MAX_CONNECTIONS" envDefault:"64"`
	BufferSize     int `env:"BUFFER_SIZE" envDefault:"1024"`
	TickRate       int `env:"TICK_RATE" envDefault:"30"`

	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"3s"`
	ReceiveTimeout   time.Duration `env:"RECEIVE_TIMEOUT" envDefault:"60s"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT" envDefault:"3s"`
	Linger           time.Duration `env:"LINGER" envDefault:"1s"`

	// RoomCount of zero means MaxConnections/2.
	RoomCount    int   `env:"ROOM_COUNT"`
	RoomCapacity int   `env:"ROOM_CAPACITY" envDefault:"2"`
	WinReward    int32 `env:"WIN_REWARD" envDefault:"100"`

	// Empty keeps accounts in memory.
	DatabasePath string `env:"DATABASE_PATH"`
	// Empty disables the metrics endpoint.
	MetricsAddr string `env:"METRICS_ADDR"`
	// Empty disables trace export.
	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"pretty"`
}

// Load reads the environment, then args. Flags left unset keep the
// environment value.
func Load(args []string, environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: "YACHU_"}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("yachu-server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "maximum concurrent connections")
	fs.IntVar(&cfg.RoomCount, "rooms", cfg.RoomCount, "number of rooms (0 = max-connections/2)")
	fs.IntVar(&cfg.RoomCapacity, "room-capacity", cfg.RoomCapacity, "players per room")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path (empty = in-memory accounts)")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "metrics listen address (empty = disabled)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "pretty or json")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.RoomCount == 0 {
		cfg.RoomCount = cfg.MaxConnections / 2
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.MaxConnections <= 0 {
		errs = append(errs, errors.New("max connections must be positive"))
	}
	if c.BufferSize < 64 {
		errs = append(errs, fmt.Errorf("buffer size %d is below 64 bytes", c.BufferSize))
	}
	if c.TickRate <= 0 || c.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("tick rate %d out of range", c.TickRate))
	}
	if c.HandshakeTimeout <= 0 || c.ReceiveTimeout <= 0 || c.SendTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.Linger < 0 {
		errs = append(errs, errors.New("linger must not be negative"))
	}
	if c.RoomCount <= 0 {
		errs = append(errs, errors.New("room count must be positive"))
	}
	if c.RoomCapacity < 2 || c.RoomCapacity > message.MaxPlayerInRoom {
		errs = append(errs, fmt.Errorf("room capacity %d outside 2..%d", c.RoomCapacity, message.MaxPlayerInRoom))
	}
	if c.WinReward < 0 {
		errs = append(errs, errors.New("win reward must not be negative"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "pretty", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// TickInterval is the period of the game loop.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}
