// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/eventops/regsync/internal/logging"
	"github.com/eventops/regsync/internal/metrics"
	"github.com/eventops/regsync/internal/models"
)

// pretinoKeyHeader authenticates requests to the Pretino API.
const pretinoKeyHeader = "x-pretino-key"

// pretinoCountry is the country code applied to every Pretino registrant.
const pretinoCountry = "IT"

// Pretino fetches registrants from the Pretino registration API, a single
// unpaginated JSON array endpoint.
type Pretino struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// Ensure Pretino implements Source
var _ Source = (*Pretino)(nil)

// NewPretino creates a Pretino source adapter.
func NewPretino(url, apiKey string) *Pretino {
	return &Pretino{
		url:        url,
		apiKey:     apiKey,
		httpClient: newHTTPClient(),
	}
}

// Name implements Source.
func (p *Pretino) Name() string { return "pretino" }

type pretinoAttendee struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Company  string `json:"company"`
	JobTitle string `json:"job_title"`
	Email    string `json:"email"`
	ASN      string `json:"asn"`
}

// Fetch implements Source.
func (p *Pretino) Fetch(ctx context.Context) ([]models.User, error) {
	logging.Debug().Str("url", p.url).Msg("Fetching Pretino registrants")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	req.Header.Set(pretinoKeyHeader, p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(p.Name(), "failure").Inc()
		return nil, fmt.Errorf("%w: pretino request failed: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.SourceRequestsTotal.WithLabelValues(p.Name(), "failure").Inc()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("%w: pretino returned status %d (failed to read body)", ErrUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: pretino returned status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var attendees []pretinoAttendee
	if err := json.NewDecoder(resp.Body).Decode(&attendees); err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(p.Name(), "failure").Inc()
		return nil, fmt.Errorf("%w: failed to decode pretino response: %v", ErrMalformed, err)
	}

	var users []models.User
	for i := range attendees {
		user, ok := p.mapAttendee(&attendees[i])
		if !ok {
			metrics.MalformedRecordsTotal.WithLabelValues(p.Name()).Inc()
			logging.Error().Interface("attendee", attendees[i]).Msg("Skipping malformed Pretino attendee")
			continue
		}
		users = append(users, user)
	}

	metrics.SourceRequestsTotal.WithLabelValues(p.Name(), "success").Inc()
	return dedupeByEmail(users), nil
}

// mapAttendee converts one attendee to the canonical model. Returns false
// when required fields are missing.
func (p *Pretino) mapAttendee(attendee *pretinoAttendee) (models.User, bool) {
	if attendee.Email == "" || attendee.Name == "" || attendee.Surname == "" {
		return models.User{}, false
	}

	user := models.User{
		Name:    models.NormalizeText(attendee.Name),
		Surname: models.NormalizeText(attendee.Surname),
		Company: models.NormalizeText(attendee.Company),
		Title:   models.NormalizeText(attendee.JobTitle),
		Email:   models.NormalizeEmail(attendee.Email),
		ASN:     models.NormalizeASN(attendee.ASN),
		Country: pretinoCountry,
	}

	if user.Company == "" {
		user.Company = models.FallbackCompany(user.Name, user.Surname)
	}

	return user, true
}
