// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

// Regsync keeps a meeting tool's registrant list in sync with an event
// registration source. It polls the configured source on a fixed
// interval, submits users not yet seen and records every delivered user
// in a durable local cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eventops/regsync/internal/cache"
	"github.com/eventops/regsync/internal/config"
	"github.com/eventops/regsync/internal/engine"
	"github.com/eventops/regsync/internal/logging"
	"github.com/eventops/regsync/internal/meetingtool"
	"github.com/eventops/regsync/internal/ops"
	"github.com/eventops/regsync/internal/source"
	"github.com/eventops/regsync/internal/supervisor"
	"github.com/eventops/regsync/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("source", cfg.Source.Type).
		Str("destination", cfg.Destination.Hostname).
		Dur("interval", cfg.Sync.Interval).
		Msg("Starting regsync")

	store, err := cache.Open(cache.Options{
		Path:  cfg.Cache.Path,
		Reset: cfg.Cache.Reset,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open cache")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close cache")
		}
	}()
	logging.Info().Str("path", store.Path()).Bool("reset", cfg.Cache.Reset).Msg("Cache opened")

	src, err := buildSource(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build source")
	}

	emailFilter, err := cfg.EmailFilter()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to compile email filter")
	}

	dst := meetingtool.NewClient(cfg.Destination.Hostname, cfg.Destination.Token)
	eng := engine.New(src, dst, store, engine.Config{
		BatchSize:     cfg.Sync.BatchSize,
		BatchPace:     cfg.Sync.BatchPace,
		RetryAttempts: cfg.Sync.RetryAttempts,
		RetryDelay:    cfg.Sync.RetryDelay,
		EmailFilter:   emailFilter,
	})

	health := ops.NewHealth()
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddSyncService(services.NewEngineService(eng, cfg.Sync.Interval, health))
	logging.Info().Dur("interval", cfg.Sync.Interval).Msg("Sync scheduler added")

	if cfg.Ops.Enabled {
		tree.AddOpsService(ops.NewServer(cfg.Ops.Addr(), health))
		logging.Info().Str("addr", cfg.Ops.Addr()).Msg("Ops server added")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Regsync stopped gracefully")
}

// buildSource constructs the configured source adapter wrapped in its
// circuit breaker.
func buildSource(cfg *config.Config) (source.Source, error) {
	var src source.Source
	switch cfg.Source.Type {
	case config.SourceEventbrite:
		src = source.NewEventbrite(cfg.Source.Eventbrite.BaseURL, cfg.Source.Eventbrite.Event, cfg.Source.Eventbrite.Token)
	case config.SourceFormBuilder:
		src = source.NewFormBuilder(cfg.Source.FormBuilder.URL)
	case config.SourcePretino:
		src = source.NewPretino(cfg.Source.Pretino.URL, cfg.Source.Pretino.APIKey)
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
	return source.NewBreaker(src), nil
}
