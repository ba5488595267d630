// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

// Package meetingtool implements the client for the meeting tool
// registration import API, the destination side of every synchronization
// pass.
package meetingtool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/eventops/regsync/internal/logging"
	"github.com/eventops/regsync/internal/models"
)

// ErrRejected indicates the meeting tool answered a batch submission with a
// non-2xx status. The wrapped error text carries the status code and the
// response body verbatim for diagnostics.
var ErrRejected = errors.New("meetingtool: submission rejected")

const (
	importPath     = "/api/registrations/import/"
	requestTimeout = 30 * time.Second
)

// Client submits canonical users to the meeting tool. Batching and pacing
// are the engine's responsibility; Submit performs exactly one request.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a meeting tool client for the given instance hostname
// and API bearer token. A bare hostname is addressed over HTTPS; a full
// URL (scheme included) is used as-is.
func NewClient(hostname, token string) *Client {
	baseURL := hostname
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// registration is the meeting tool's wire representation of one user.
type registration struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Company   string `json:"company"`
	// Mail has to be lowercase; the meeting tool rejects uppercase addresses.
	Mail        string `json:"mail"`
	JobTitle    string `json:"jobTitle"`
	ASN         *int   `json:"asn"`
	CountryCode string `json:"countryCode"`
}

// Submit sends one batch of users to the registration import endpoint.
// A non-2xx response fails the whole batch with ErrRejected.
func (c *Client) Submit(ctx context.Context, batch []models.User) error {
	if len(batch) == 0 {
		return nil
	}

	payload := make([]registration, 0, len(batch))
	for _, user := range batch {
		payload = append(payload, registration{
			FirstName:   user.Name,
			LastName:    user.Surname,
			Company:     user.Company,
			Mail:        strings.ToLower(user.Email),
			JobTitle:    user.Title,
			ASN:         user.ASN,
			CountryCode: user.Country,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("meetingtool: marshal batch: %w", err)
	}

	logging.Debug().Int("batch_size", len(batch)).Msg("Submitting registration batch")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+importPath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("meetingtool: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", ErrRejected, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("%w: status %d (failed to read body)", ErrRejected, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, string(body))
	}

	return nil
}
