// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

// Package ops serves the operational HTTP surface: a health endpoint
// reporting the last pass outcome and the Prometheus metrics endpoint.
package ops

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventops/regsync/internal/logging"
)

// Health tracks pass outcomes for the health endpoint. Safe for
// concurrent use.
type Health struct {
	mu        sync.RWMutex
	lastPass  time.Time
	lastError string
	passes    uint64
	failures  uint64
}

// NewHealth creates an empty pass outcome tracker.
func NewHealth() *Health {
	return &Health{}
}

// RecordSuccess notes a completed pass.
func (h *Health) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPass = time.Now().UTC()
	h.lastError = ""
	h.passes++
}

// RecordFailure notes a failed pass.
func (h *Health) RecordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPass = time.Now().UTC()
	h.lastError = err.Error()
	h.failures++
}

// healthResponse is the health endpoint body.
type healthResponse struct {
	Status    string `json:"status"`
	LastPass  string `json:"last_pass,omitempty"`
	LastError string `json:"last_error,omitempty"`
	Passes    uint64 `json:"passes"`
	Failures  uint64 `json:"failures"`
}

func (h *Health) snapshot() healthResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := healthResponse{
		Status:    "ok",
		LastError: h.lastError,
		Passes:    h.passes,
		Failures:  h.failures,
	}
	if !h.lastPass.IsZero() {
		resp.LastPass = h.lastPass.Format(time.RFC3339)
	}
	if h.lastError != "" {
		resp.Status = "degraded"
	}
	return resp
}

// Server exposes the operational endpoints over HTTP. It implements
// suture.Service; Serve blocks until the context is cancelled.
type Server struct {
	addr   string
	health *Health
	router chi.Router
}

// NewServer creates the operational HTTP server listening on addr.
func NewServer(addr string, health *Health) *Server {
	s := &Server{
		addr:   addr,
		health: health,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router = r

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := s.health.snapshot()

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode health response")
	}
}

// Serve implements suture.Service. The listener shuts down gracefully
// when the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("Operational endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Join(ctx.Err(), err)
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Server) String() string {
	return "ops-server"
}
