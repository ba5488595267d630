// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

// Package services adapts the daemon's components to suture's Serve
// lifecycle.
package services

import (
	"context"
	"time"

	"github.com/eventops/regsync/internal/logging"
	"github.com/eventops/regsync/internal/models"
	"github.com/eventops/regsync/internal/ops"
)

// PassRunner executes one synchronization pass. Satisfied by
// *engine.Engine.
type PassRunner interface {
	RunPass(ctx context.Context) ([]models.User, error)
}

// EngineService runs synchronization passes on a fixed interval as a
// supervised service. A failing pass is logged and recorded in the
// health tracker but never stops the schedule; only context
// cancellation ends Serve.
type EngineService struct {
	runner   PassRunner
	interval time.Duration
	health   *ops.Health
}

// NewEngineService creates the pass scheduler.
func NewEngineService(runner PassRunner, interval time.Duration, health *ops.Health) *EngineService {
	return &EngineService{
		runner:   runner,
		interval: interval,
		health:   health,
	}
}

// Serve implements suture.Service. The first pass runs immediately,
// subsequent passes every interval.
func (s *EngineService) Serve(ctx context.Context) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *EngineService) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	submitted, err := s.runner.RunPass(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Error().Err(err).Msg("Synchronization pass failed")
		if s.health != nil {
			s.health.RecordFailure(err)
		}
		return
	}

	logging.Info().Int("new_users", len(submitted)).Msg("Synchronization pass succeeded")
	if s.health != nil {
		s.health.RecordSuccess()
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *EngineService) String() string {
	return "sync-scheduler"
}
