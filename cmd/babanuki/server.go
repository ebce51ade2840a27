package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/babanuki/server/internal/game"
	"github.com/babanuki/server/internal/server"
	"github.com/babanuki/server/internal/store"
)

// ServerCmd runs the websocket game server.
type ServerCmd struct {
	Config string `kong:"default='babanuki.hcl',help='Path to HCL config file'"`
	Addr   string `kong:"help='Listen address, overrides config'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cfg.Server.LogLevel, c.Debug)

	addr := cfg.ListenAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	profiles, cleanup, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.NewServer(addr, profiles, logger)

	gameCfg := game.Config{
		HumanTimeout: cfg.TurnTimeout(),
		BotDelayMin:  cfg.BotDelayMin(),
		BotDelayMax:  cfg.BotDelayMax(),
		Seed:         cfg.Game.Seed,
	}
	registry := game.NewRegistry(gameCfg, quartz.NewReal(), profiles, srv, logger)
	srv.SetRegistry(registry)

	logger.Info("Starting babanuki server",
		"address", addr,
		"turn_timeout", gameCfg.HumanTimeout,
		"bot_delay_min", gameCfg.BotDelayMin,
		"bot_delay_max", gameCfg.BotDelayMax)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		return srv.Stop()
	})
	return g.Wait()
}

// buildStore assembles the profile store stack from config: mongo when
// configured, memory otherwise, with an optional redis rankings cache
// layered on top.
func buildStore(cfg *server.Config, logger *log.Logger) (game.ProfileStore, func(), error) {
	cleanup := func() {}

	var profiles game.ProfileStore
	if cfg.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ms, err := store.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using mongo profile store", "database", cfg.Mongo.Database)
		profiles = ms
		cleanup = func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			if err := ms.Close(closeCtx); err != nil {
				logger.Warn("Mongo disconnect failed", "error", err)
			}
		}
	} else {
		logger.Info("Using in-memory profile store")
		profiles = store.NewMemoryStore()
	}

	if cfg.Redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cache, err := store.NewRankingsCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using redis rankings cache", "addr", cfg.Redis.Addr)
		profiles = store.WithRankings(profiles, cache)
	}

	return profiles, cleanup, nil
}

func setupLogger(level string, debug bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})

	if debug {
		logger.SetLevel(log.DebugLevel)
		return logger
	}

	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}
