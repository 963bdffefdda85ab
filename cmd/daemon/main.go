// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command daemon runs the pagecast control plane: it orchestrates page cast
// sessions and serves their HLS output to FCast receivers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/pagecast/internal/api"
	"github.com/ManuGH/pagecast/internal/config"
	"github.com/ManuGH/pagecast/internal/display"
	"github.com/ManuGH/pagecast/internal/domain/session/manager"
	"github.com/ManuGH/pagecast/internal/domain/session/store"
	"github.com/ManuGH/pagecast/internal/hls"
	"github.com/ManuGH/pagecast/internal/log"
	"github.com/ManuGH/pagecast/internal/sender"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "pagecast",
		Version: version,
	})
	logger := log.WithComponent("daemon")

	registry, err := store.NewRegistry(cfg.SessionsDir)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldPath, cfg.SessionsDir).Msg("sessions root unusable")
		return 1
	}

	factory := manager.NewRuntimeFactory(manager.FactoryConfig{
		Displays:   display.NewAllocator(cfg.DisplayBase),
		XvfbBin:    cfg.XvfbBin,
		ChromeBin:  cfg.ChromeBin,
		FFmpegBin:  cfg.FFmpegBin,
		StaleAfter: hls.DefaultStaleAfter,
	})
	snd := sender.New(nil)
	sessions := manager.New(registry, snd, factory, cfg.MediaBaseURL())

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           api.NewServer(cfg, sessions).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("media_base", cfg.MediaBaseURL()).Msg("control plane listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			return 1
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	// Drain order: refuse new requests first, then tear down every live
	// session so no encoder or browser outlives the daemon.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("session shutdown incomplete")
		return 1
	}
	logger.Info().Msg("daemon stopped")
	return 0
}
