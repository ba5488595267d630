// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eventops/regsync/internal/models"
	"github.com/eventops/regsync/internal/ops"
)

// countingRunner counts passes, failing every other one when flaky.
type countingRunner struct {
	mu    sync.Mutex
	calls int
	flaky bool
}

func (r *countingRunner) RunPass(ctx context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.flaky && r.calls%2 == 0 {
		return nil, errors.New("pass failed")
	}
	return []models.User{{Email: "A@EXAMPLE.COM"}}, nil
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestEngineServiceRunsOnSchedule(t *testing.T) {
	runner := &countingRunner{}
	svc := NewEngineService(runner, 10*time.Millisecond, ops.NewHealth())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for runner.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d passes ran before the deadline, want at least 3", runner.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after cancellation")
	}
}

func TestEngineServiceSurvivesPassFailures(t *testing.T) {
	runner := &countingRunner{flaky: true}
	svc := NewEngineService(runner, 10*time.Millisecond, ops.NewHealth())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// With every other pass failing, reaching four passes proves the
	// scheduler keeps going after a failure.
	deadline := time.After(2 * time.Second)
	for runner.count() < 4 {
		select {
		case <-deadline:
			t.Fatalf("only %d passes ran before the deadline, want at least 4", runner.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	select {
	case err := <-done:
		t.Fatalf("Serve() returned %v while passes were still scheduled", err)
	default:
	}
}
