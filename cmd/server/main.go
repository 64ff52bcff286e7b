package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/paratransit-relay/internal/audit"
	"github.com/example/paratransit-relay/internal/config"
	"github.com/example/paratransit-relay/internal/httpapi"
	"github.com/example/paratransit-relay/internal/lifecycle"
	"github.com/example/paratransit-relay/internal/logging"
	"github.com/example/paratransit-relay/internal/registry"
	"github.com/example/paratransit-relay/internal/relay"
	"github.com/example/paratransit-relay/internal/track"
	"github.com/example/paratransit-relay/internal/ws"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}

	if cfg.PGDSN != "" && cfg.RunMigrations {
		if err := runMigrations(cfg.PGDSN); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	var reg registry.Registry
	if cfg.PGDSN != "" {
		pg, err := registry.NewPostgresRegistry(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		reg = pg
	} else {
		logger.Warn("PG_DSN unset, using in-memory registry")
		reg = registry.NewMemoryRegistry()
	}

	rooms := relay.NewRoomManager(logger)
	rl := relay.NewRelay(rooms, logger)

	if len(cfg.KafkaBrokers) > 0 {
		sink := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer sink.Close()
		rl.Audit = sink
	}
	if cfg.RedisAddr != "" {
		tracker := track.NewRedisTracker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisTrackKey)
		defer tracker.Close()
		rl.Tracker = tracker
	}

	gate := relay.NewGate(reg)
	wsHandler := ws.NewHandler(gate, rooms, rl, logger)
	lc := lifecycle.NewService(reg)
	srv := httpapi.NewServer(lc, reg, wsHandler, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("paratransit relay listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_routes.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
