// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

// Package source implements the registration source adapters. Each adapter
// translates one provider's wire format (Eventbrite's paginated attendee
// API, a form builder's CSV export, the Pretino JSON API) into the
// canonical user model, deduplicating within a single fetch and applying
// the shared text and ASN normalization rules.
//
// A record that fails field-level validation is logged and dropped; it
// never aborts the fetch. A transport failure or non-2xx status surfaces
// ErrUnavailable, an undecodable body ErrMalformed.
package source

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/eventops/regsync/internal/models"
)

var (
	// ErrUnavailable indicates a transport failure or non-2xx response from
	// the provider. Recoverable at the pass level.
	ErrUnavailable = errors.New("source: unavailable")

	// ErrMalformed indicates the response body did not match the expected
	// shape. Recoverable at the pass level.
	ErrMalformed = errors.New("source: malformed response")
)

// requestTimeout bounds every provider request so a hung endpoint cannot
// block the process indefinitely.
const requestTimeout = 30 * time.Second

// Source fetches the full, deduplicated registrant list from one provider.
type Source interface {
	// Fetch materializes every registered (non-cancelled) user, fully
	// paginated and deduplicated by normalized email.
	Fetch(ctx context.Context) ([]models.User, error)

	// Name identifies the provider for logging and metrics.
	Name() string
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// dedupeByEmail drops records whose normalized email was already seen,
// keeping the first occurrence and preserving source order.
func dedupeByEmail(users []models.User) []models.User {
	seen := make(map[string]struct{}, len(users))
	out := users[:0]
	for _, u := range users {
		key := u.CacheKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	return out
}
