package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	yachu "github.com/sicilica/yachu-server"
	"github.com/sicilica/yachu-server/config"
	"github.com/sicilica/yachu-server/metrics"
	"github.com/sicilica/yachu-server/storage"
	"github.com/sicilica/yachu-server/storage/sqlite"
	"github.com/sicilica/yachu-server/telemetry"
)

const SERVICE_NAME = "yachu-server"

func main() {
	cfg, err := config.Load(os.Args[1:], nil)
	if err != nil {
		log.Fatal(err)
	}
	level, _ := cfg.Level()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := yachu.NewLogger(os.Stdout, cfg.LogFormat, level)
	ctx = yachu.WithLogger(ctx, logger)

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := yachu.Logger(ctx)

	shutdown, err := telemetry.Setup(ctx, SERVICE_NAME, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	var store storage.Store
	if cfg.DatabasePath != "" {
		db, err := sqlite.Open(ctx, cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
		logger.Info("using sqlite store", slog.String("path", cfg.DatabasePath))
	} else {
		store = storage.NewMemory()
		logger.Warn("no database configured, accounts are kept in memory")
	}

	srv := yachu.NewServer(cfg, storage.NewTraced(store), logger, metrics.New())
	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
