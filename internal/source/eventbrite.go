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
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/eventops/regsync/internal/logging"
	"github.com/eventops/regsync/internal/metrics"
	"github.com/eventops/regsync/internal/models"
)

// DefaultEventbriteBaseURL is the production Eventbrite API endpoint.
const DefaultEventbriteBaseURL = "https://www.eventbriteapi.com"

// asnQuestion is the registration form question carrying the attendee's
// autonomous system number.
const asnQuestion = "ASN"

// Eventbrite fetches registered attendees for one event through the
// Eventbrite v3 attendees API, paging until pagination.page_count is
// exhausted.
type Eventbrite struct {
	baseURL    string
	event      string
	token      string
	httpClient *http.Client
}

// Ensure Eventbrite implements Source
var _ Source = (*Eventbrite)(nil)

// NewEventbrite creates an Eventbrite source adapter.
//
// Parameters:
//   - baseURL: API endpoint; empty means DefaultEventbriteBaseURL
//   - event: Eventbrite event ID
//   - token: Eventbrite API token
func NewEventbrite(baseURL, event, token string) *Eventbrite {
	if baseURL == "" {
		baseURL = DefaultEventbriteBaseURL
	}
	return &Eventbrite{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		event:      event,
		token:      token,
		httpClient: newHTTPClient(),
	}
}

// Name implements Source.
func (e *Eventbrite) Name() string { return "eventbrite" }

type eventbriteAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type eventbriteProfile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	JobTitle  string `json:"job_title"`
}

type eventbriteAttendee struct {
	Cancelled bool               `json:"cancelled"`
	Profile   eventbriteProfile  `json:"profile"`
	Answers   []eventbriteAnswer `json:"answers"`
}

type eventbritePage struct {
	Attendees  []eventbriteAttendee `json:"attendees"`
	Pagination struct {
		PageCount int `json:"page_count"`
	} `json:"pagination"`
}

// Fetch implements Source. It walks every attendee page, skipping
// cancelled registrations and records missing required profile fields.
func (e *Eventbrite) Fetch(ctx context.Context) ([]models.User, error) {
	var users []models.User

	page := 1
	for {
		body, err := e.fetchPage(ctx, page)
		if err != nil {
			metrics.SourceRequestsTotal.WithLabelValues(e.Name(), "failure").Inc()
			return nil, err
		}

		for i := range body.Attendees {
			attendee := &body.Attendees[i]
			if attendee.Cancelled {
				continue
			}

			user, ok := e.mapAttendee(attendee)
			if !ok {
				metrics.MalformedRecordsTotal.WithLabelValues(e.Name()).Inc()
				logging.Error().Interface("attendee", attendee).Msg("Skipping malformed Eventbrite attendee")
				continue
			}
			users = append(users, user)
		}

		if page >= body.Pagination.PageCount {
			break
		}
		page++
	}

	metrics.SourceRequestsTotal.WithLabelValues(e.Name(), "success").Inc()
	return dedupeByEmail(users), nil
}

// fetchPage retrieves and decodes a single attendee page.
func (e *Eventbrite) fetchPage(ctx context.Context, page int) (*eventbritePage, error) {
	params := url.Values{}
	params.Set("token", e.token)
	params.Set("page", fmt.Sprintf("%d", page))
	requestURL := fmt.Sprintf("%s/v3/events/%s/attendees/?%s", e.baseURL, e.event, params.Encode())

	logging.Debug().Str("event", e.event).Int("page", page).Msg("Fetching Eventbrite attendees")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: eventbrite request failed: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("%w: eventbrite returned status %d (failed to read body)", ErrUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: eventbrite returned status %d: %s", ErrUnavailable, resp.StatusCode, string(respBody))
	}

	var body eventbritePage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode eventbrite page: %v", ErrMalformed, err)
	}
	return &body, nil
}

// mapAttendee converts one attendee to the canonical model. Returns false
// when required profile fields are missing.
func (e *Eventbrite) mapAttendee(attendee *eventbriteAttendee) (models.User, bool) {
	profile := attendee.Profile
	if profile.Email == "" || profile.FirstName == "" || profile.LastName == "" {
		return models.User{}, false
	}

	user := models.User{
		Name:    models.NormalizeText(profile.FirstName),
		Surname: models.NormalizeText(profile.LastName),
		Company: models.NormalizeText(profile.Company),
		Email:   models.NormalizeEmail(profile.Email),
		Title:   models.NormalizeText(profile.JobTitle),
	}

	for _, answer := range attendee.Answers {
		if answer.Question == asnQuestion {
			user.ASN = models.NormalizeASN(answer.Answer)
			break
		}
	}

	return user, true
}
