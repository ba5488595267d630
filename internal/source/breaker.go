// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

package source

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/eventops/regsync/internal/logging"
	"github.com/eventops/regsync/internal/metrics"
	"github.com/eventops/regsync/internal/models"
)

// breakerConsecutiveFailures is the trip threshold. Sources are polled at
// most once per pass, so a consecutive-failure count is more meaningful
// than a failure-rate window at this call volume.
const breakerConsecutiveFailures = 3

// Breaker wraps a Source with circuit breaker protection so that a
// persistently failing provider is not hammered on every scheduled pass.
//
// While the circuit is open, Fetch fails fast with ErrUnavailable; after
// the recovery timeout a single probe fetch is allowed through.
type Breaker struct {
	src Source
	cb  *gobreaker.CircuitBreaker[[]models.User]
}

// Ensure Breaker implements Source
var _ Source = (*Breaker)(nil)

// NewBreaker wraps src with a circuit breaker tripping after three
// consecutive failures, with a two minute recovery timeout.
func NewBreaker(src Source) *Breaker {
	name := src.Name()
	metrics.BreakerState.WithLabelValues(name).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[[]models.User](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("source", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Source circuit breaker state transition")

			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.BreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})

	return &Breaker{src: src, cb: cb}
}

// Fetch implements Source with circuit breaker protection.
func (b *Breaker) Fetch(ctx context.Context) ([]models.User, error) {
	users, err := b.cb.Execute(func() ([]models.User, error) {
		return b.src.Fetch(ctx)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			logging.Warn().Str("source", b.Name()).Msg("Source fetch rejected by open circuit")
			return nil, ErrUnavailable
		}
		return nil, err
	}
	return users, nil
}

// Name implements Source.
func (b *Breaker) Name() string { return b.src.Name() }

// State returns the current circuit breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
