// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/eventops/regsync/internal/cache"
	"github.com/eventops/regsync/internal/models"
	"github.com/eventops/regsync/internal/source"
)

// fakeSource serves a fixed user list, optionally failing the first
// failures calls.
type fakeSource struct {
	users    []models.User
	failures int
	calls    int
}

func (f *fakeSource) Fetch(ctx context.Context) ([]models.User, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, source.ErrUnavailable
	}
	return f.users, nil
}

func (f *fakeSource) Name() string { return "fake" }

// fakeDestination records submitted batches, optionally failing from the
// failAfter-th batch on.
type fakeDestination struct {
	batches   [][]models.User
	failAfter int
}

func (f *fakeDestination) Submit(ctx context.Context, batch []models.User) error {
	if f.failAfter > 0 && len(f.batches) >= f.failAfter {
		return errors.New("destination rejected batch")
	}
	f.batches = append(f.batches, append([]models.User(nil), batch...))
	return nil
}

func openTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(cache.Options{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("store.Close() error = %v", err)
		}
	})
	return store
}

func makeUsers(n int) []models.User {
	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, models.User{
			Name:    fmt.Sprintf("USER%02d", i),
			Surname: "TEST",
			Email:   fmt.Sprintf("USER%02d@EXAMPLE.COM", i),
			Country: "IT",
		})
	}
	return users
}

// fastConfig keeps retry and pacing delays negligible for tests.
func fastConfig() Config {
	return Config{
		BatchPace:  time.Millisecond,
		RetryDelay: time.Millisecond,
	}
}

func checkCached(t *testing.T, store *cache.Store, user models.User, want bool) {
	t.Helper()
	known, err := store.Contains(user.CacheKey())
	if err != nil {
		t.Fatalf("Contains(%q) error = %v", user.CacheKey(), err)
	}
	if known != want {
		t.Errorf("Contains(%q) = %v, want %v", user.CacheKey(), known, want)
	}
}

func TestRunPassSubmitsAndCaches(t *testing.T) {
	users := makeUsers(3)
	src := &fakeSource{users: users}
	dst := &fakeDestination{}
	store := openTestStore(t)

	eng := New(src, dst, store, fastConfig())
	got, err := eng.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass() error = %v, want nil", err)
	}

	if len(got) != 3 {
		t.Fatalf("RunPass() returned %d users, want 3", len(got))
	}
	if len(dst.batches) != 1 || len(dst.batches[0]) != 3 {
		t.Fatalf("destination received %d batches, want one batch of 3", len(dst.batches))
	}
	for _, user := range users {
		checkCached(t, store, user, true)
	}
}

func TestRunPassIsIdempotent(t *testing.T) {
	src := &fakeSource{users: makeUsers(3)}
	dst := &fakeDestination{}
	store := openTestStore(t)
	eng := New(src, dst, store, fastConfig())

	if _, err := eng.RunPass(context.Background()); err != nil {
		t.Fatalf("first RunPass() error = %v", err)
	}

	got, err := eng.RunPass(context.Background())
	if err != nil {
		t.Fatalf("second RunPass() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("second RunPass() returned %d users, want 0", len(got))
	}
	if len(dst.batches) != 1 {
		t.Errorf("destination received %d batches across both passes, want 1", len(dst.batches))
	}
}

func TestRunPassBatching(t *testing.T) {
	src := &fakeSource{users: makeUsers(20)}
	dst := &fakeDestination{}
	store := openTestStore(t)
	eng := New(src, dst, store, fastConfig())

	if _, err := eng.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	if len(dst.batches) != 2 {
		t.Fatalf("destination received %d batches, want 2", len(dst.batches))
	}
	if len(dst.batches[0]) != 15 {
		t.Errorf("first batch size = %d, want 15", len(dst.batches[0]))
	}
	if len(dst.batches[1]) != 5 {
		t.Errorf("second batch size = %d, want 5", len(dst.batches[1]))
	}
}

func TestRunPassPartialBatchFailure(t *testing.T) {
	users := makeUsers(20)
	src := &fakeSource{users: users}
	dst := &fakeDestination{failAfter: 1}
	store := openTestStore(t)
	cfg := fastConfig()
	cfg.RetryAttempts = 1
	eng := New(src, dst, store, cfg)

	got, err := eng.RunPass(context.Background())
	if err == nil {
		t.Fatal("RunPass() error = nil, want batch failure")
	}
	if len(got) != 20 {
		t.Errorf("RunPass() returned %d users, want the full new set of 20", len(got))
	}

	// The delivered batch stays cached, the failed tail does not.
	for _, user := range users[:15] {
		checkCached(t, store, user, true)
	}
	for _, user := range users[15:] {
		checkCached(t, store, user, false)
	}

	// The next pass picks up exactly the undelivered tail.
	dst.failAfter = 0
	got, err = eng.RunPass(context.Background())
	if err != nil {
		t.Fatalf("recovery RunPass() error = %v", err)
	}
	if len(got) != 5 {
		t.Errorf("recovery RunPass() returned %d users, want 5", len(got))
	}
}

func TestRunPassEmailFilter(t *testing.T) {
	users := []models.User{
		{Name: "A", Surname: "A", Email: "A@MEMBERS.EXAMPLE.COM"},
		{Name: "B", Surname: "B", Email: "B@OTHER.ORG"},
		{Name: "C", Surname: "C", Email: "C@MEMBERS.EXAMPLE.COM"},
	}
	src := &fakeSource{users: users}
	dst := &fakeDestination{}
	store := openTestStore(t)
	cfg := fastConfig()
	cfg.EmailFilter = regexp.MustCompile(`(?i)@members\.example\.com$`)
	eng := New(src, dst, store, cfg)

	got, err := eng.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RunPass() returned %d users, want 2 matching the filter", len(got))
	}

	// Filtered users must never enter the cache, so a later filter change
	// can still pick them up.
	checkCached(t, store, users[1], false)

	cfg.EmailFilter = nil
	eng = New(src, dst, store, cfg)
	got, err = eng.RunPass(context.Background())
	if err != nil {
		t.Fatalf("unfiltered RunPass() error = %v", err)
	}
	if len(got) != 1 || got[0].Email != "B@OTHER.ORG" {
		t.Errorf("unfiltered RunPass() returned %v, want the previously filtered user", got)
	}
}

func TestRunPassRetriesSourceFetch(t *testing.T) {
	src := &fakeSource{users: makeUsers(1), failures: 2}
	dst := &fakeDestination{}
	store := openTestStore(t)
	cfg := fastConfig()
	cfg.RetryAttempts = 3
	eng := New(src, dst, store, cfg)

	got, err := eng.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass() error = %v, want success after retries", err)
	}
	if len(got) != 1 {
		t.Errorf("RunPass() returned %d users, want 1", len(got))
	}
	if src.calls != 3 {
		t.Errorf("source fetched %d times, want 3", src.calls)
	}
}

func TestRunPassSourceFailureExhaustsRetries(t *testing.T) {
	src := &fakeSource{users: makeUsers(1), failures: 100}
	dst := &fakeDestination{}
	store := openTestStore(t)
	cfg := fastConfig()
	cfg.RetryAttempts = 2
	eng := New(src, dst, store, cfg)

	got, err := eng.RunPass(context.Background())
	if !errors.Is(err, source.ErrUnavailable) {
		t.Fatalf("RunPass() error = %v, want wrapped ErrUnavailable", err)
	}
	if got != nil {
		t.Errorf("RunPass() returned %v, want nil on fetch failure", got)
	}
	if len(dst.batches) != 0 {
		t.Errorf("destination received %d batches, want 0", len(dst.batches))
	}
	if src.calls != 2 {
		t.Errorf("source fetched %d times, want 2", src.calls)
	}
}

func TestRunPassCancelledContext(t *testing.T) {
	src := &fakeSource{users: makeUsers(1), failures: 100}
	dst := &fakeDestination{}
	store := openTestStore(t)
	eng := New(src, dst, store, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := eng.RunPass(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunPass() error = %v, want context.Canceled", err)
	}
}
