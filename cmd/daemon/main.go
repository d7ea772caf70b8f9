// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command daemon runs the multiroom player supervisor: HTTP API, status
// monitor, configuration hot-reload and process lifecycle management in one
// process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scyto/Multi-SendSpin-Player-Container/internal/api"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/audio"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/config"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/log"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/manager"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/monitor"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/process"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/provider"
	"github.com/scyto/Multi-SendSpin-Player-Container/internal/store"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.NewLoader(*configPath, version).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: version,
	})
	logger := log.WithComponent("daemon")
	logger.Info().
		Str("listen", cfg.ListenAddr).
		Str(log.FieldPath, cfg.ConfigDir).
		Msg("starting multiroom player daemon")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("daemon exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("daemon stopped")
}

func run(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("daemon")

	st, err := store.New(filepath.Join(cfg.ConfigDir, "players.yaml"))
	if err != nil {
		return fmt.Errorf("open player store: %w", err)
	}

	sup, err := process.New(cfg.LogDir, process.Options{
		StartupGrace: cfg.StartupGrace,
		StopTimeout:  cfg.StopTimeout,
		KillTimeout:  cfg.KillTimeout,
	})
	if err != nil {
		return fmt.Errorf("init process supervisor: %w", err)
	}

	mixer := audio.NewALSA()
	registry := provider.NewRegistry(cfg.DefaultProvider)
	registry.Register(provider.NewSqueezelite(mixer))
	registry.Register(provider.NewSendspin())
	registry.Register(provider.NewSnapcast())

	mgr := manager.New(registry, sup, st, mixer)

	var pub monitor.Publisher
	if cfg.RedisAddr != "" {
		redisPub, err := monitor.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			return fmt.Errorf("connect redis publisher: %w", err)
		}
		defer func() {
			if err := redisPub.Close(); err != nil {
				logger.Warn().Err(err).Msg("close redis publisher")
			}
		}()
		pub = redisPub
		logger.Info().Str("addr", cfg.RedisAddr).Str("channel", cfg.RedisChannel).
			Msg("publishing status snapshots to redis")
	}

	mon := monitor.New(mgr, cfg.MonitorInterval, pub)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(mgr, mon, api.Options{RateLimitEnabled: cfg.RateLimitEnabled, RateLimitRPS: cfg.RateLimitRPS}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("listen", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("status monitor: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// Hot-reload hand-edited players.yaml changes.
		if err := st.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("config watcher: %w", err)
		}
		return nil
	})

	err = g.Wait()

	stopped := mgr.StopAll()
	logger.Info().Int("players", stopped).Msg("stopped running players on shutdown")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
