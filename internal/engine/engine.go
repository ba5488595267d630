// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

// Package engine runs synchronization passes. A pass fetches the full
// registrant list from the configured source, drops filtered and already
// synchronized users, submits the remainder to the meeting tool in paced
// batches and commits every delivered batch to the durable cache.
//
// Delivery is at least once. A batch is cached only after the meeting
// tool accepted it, so a failure mid-pass leaves the undelivered tail
// uncached and the next pass picks it up again. Filtered users are never
// cached; a filter change takes effect retroactively.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/eventops/regsync/internal/cache"
	"github.com/eventops/regsync/internal/logging"
	"github.com/eventops/regsync/internal/metrics"
	"github.com/eventops/regsync/internal/models"
	"github.com/eventops/regsync/internal/source"
)

const (
	defaultBatchSize     = 15
	defaultBatchPace     = 100 * time.Millisecond
	defaultRetryAttempts = 3
	defaultRetryDelay    = 5 * time.Second
)

// Destination accepts batches of canonical users. Satisfied by the
// meeting tool client.
type Destination interface {
	Submit(ctx context.Context, batch []models.User) error
}

// Config tunes a single Engine. Zero values select the defaults.
type Config struct {
	// BatchSize is the maximum number of users per submission.
	BatchSize int

	// BatchPace is the minimum spacing between batch submissions.
	BatchPace time.Duration

	// RetryAttempts and RetryDelay govern the source fetch retry loop.
	// The delay doubles after every failed attempt.
	RetryAttempts int
	RetryDelay    time.Duration

	// EmailFilter, when set, restricts synchronization to users whose
	// email matches. It must be compiled case-insensitively.
	EmailFilter *regexp.Regexp
}

// Engine synchronizes one source with one destination through a durable
// cache. Safe for use by a single goroutine; the scheduler runs passes
// sequentially.
type Engine struct {
	src     source.Source
	dst     Destination
	store   *cache.Store
	cfg     Config
	limiter *rate.Limiter
}

// New creates an Engine. Zero Config fields are replaced with defaults.
func New(src source.Source, dst Destination, store *cache.Store, cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchPace <= 0 {
		cfg.BatchPace = defaultBatchPace
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	return &Engine{
		src:     src,
		dst:     dst,
		store:   store,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.BatchPace), 1),
	}
}

// RunPass executes one synchronization pass and returns the users that
// were new this pass. On a partial failure the returned slice still
// covers the whole new set; only the batches delivered before the
// failure were cached.
func (e *Engine) RunPass(ctx context.Context) ([]models.User, error) {
	start := time.Now()

	logging.Info().Str("source", e.src.Name()).Msg("Starting synchronization pass")

	var fetched []models.User
	err := e.retryWithBackoff(ctx, func() error {
		var fetchErr error
		fetched, fetchErr = e.src.Fetch(ctx)
		return fetchErr
	})
	if err != nil {
		metrics.RecordPass("source_error", time.Since(start))
		return nil, fmt.Errorf("fetch from %s: %w", e.src.Name(), err)
	}

	newUsers, err := e.selectNew(fetched)
	if err != nil {
		metrics.RecordPass("cache_error", time.Since(start))
		return nil, err
	}
	metrics.NewUsersTotal.Add(float64(len(newUsers)))

	logging.Info().
		Str("source", e.src.Name()).
		Int("fetched", len(fetched)).
		Int("new", len(newUsers)).
		Msg("Selected users for submission")

	if err := e.submit(ctx, newUsers); err != nil {
		metrics.RecordPass("destination_error", time.Since(start))
		return newUsers, err
	}

	if err := e.store.Flush(); err != nil {
		metrics.RecordPass("cache_error", time.Since(start))
		return newUsers, fmt.Errorf("flush cache: %w", err)
	}

	if entries, err := e.store.Len(); err == nil {
		metrics.CacheEntries.Set(float64(entries))
	}
	metrics.RecordPass("success", time.Since(start))

	logging.Info().
		Str("source", e.src.Name()).
		Int("submitted", len(newUsers)).
		Dur("duration", time.Since(start)).
		Msg("Synchronization pass complete")

	return newUsers, nil
}

// selectNew drops filtered users and users already present in the cache,
// preserving source order.
func (e *Engine) selectNew(fetched []models.User) ([]models.User, error) {
	var newUsers []models.User
	for _, user := range fetched {
		if e.cfg.EmailFilter != nil && !e.cfg.EmailFilter.MatchString(user.Email) {
			metrics.FilteredUsersTotal.Inc()
			logging.Debug().Str("email", user.Email).Msg("User excluded by email filter")
			continue
		}

		known, err := e.store.Contains(user.CacheKey())
		if err != nil {
			return nil, fmt.Errorf("cache lookup for %s: %w", user.CacheKey(), err)
		}
		if known {
			continue
		}
		newUsers = append(newUsers, user)
	}
	return newUsers, nil
}

// submit delivers users in paced batches, committing each accepted batch
// to the cache before moving on.
func (e *Engine) submit(ctx context.Context, users []models.User) error {
	for offset := 0; offset < len(users); offset += e.cfg.BatchSize {
		end := offset + e.cfg.BatchSize
		if end > len(users) {
			end = len(users)
		}
		batch := users[offset:end]

		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("pacing wait: %w", err)
		}

		if err := e.dst.Submit(ctx, batch); err != nil {
			metrics.BatchesTotal.WithLabelValues("failure").Inc()
			return fmt.Errorf("submit batch of %d: %w", len(batch), err)
		}
		metrics.BatchesTotal.WithLabelValues("success").Inc()
		metrics.SubmittedUsersTotal.Add(float64(len(batch)))

		for _, user := range batch {
			if err := e.store.Set(user.CacheKey(), user); err != nil {
				return fmt.Errorf("cache commit for %s: %w", user.CacheKey(), err)
			}
		}
	}
	return nil
}

// retryWithBackoff executes fn with exponential backoff on failure. The
// context cancels both the attempts and the waits between them.
func (e *Engine) retryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	delay := e.cfg.RetryDelay

	for attempt := 0; attempt < e.cfg.RetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}

		if attempt < e.cfg.RetryAttempts-1 {
			logging.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", e.cfg.RetryAttempts).Dur("delay", delay).Msg("Retry attempt")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}
