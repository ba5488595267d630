// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/eventops/regsync/internal/logging"
	"github.com/eventops/regsync/internal/metrics"
	"github.com/eventops/regsync/internal/models"
)

// CSV column layout of the form builder registration export.
const (
	fbColName    = 2
	fbColSurname = 3
	fbColCompany = 4
	fbColTitle   = 5
	fbColEmail   = 6
	fbColASN     = 9
	fbMinColumns = 10
)

// formBuilderCountry is the country code applied to every form builder
// registrant; the form is only served for the Italian event.
const formBuilderCountry = "IT"

// FormBuilder fetches registrants from a form builder's CSV export URL.
type FormBuilder struct {
	url        string
	httpClient *http.Client
}

// Ensure FormBuilder implements Source
var _ Source = (*FormBuilder)(nil)

// NewFormBuilder creates a form builder source adapter for the given
// CSV export URL.
func NewFormBuilder(url string) *FormBuilder {
	return &FormBuilder{
		url:        url,
		httpClient: newHTTPClient(),
	}
}

// Name implements Source.
func (f *FormBuilder) Name() string { return "formbuilder" }

// Fetch implements Source. Rows that are too short or carry no plausible
// email address (header rows included) are logged and dropped.
func (f *FormBuilder) Fetch(ctx context.Context) ([]models.User, error) {
	logging.Debug().Str("url", f.url).Msg("Fetching form builder CSV")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(f.Name(), "failure").Inc()
		return nil, fmt.Errorf("%w: form builder request failed: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.SourceRequestsTotal.WithLabelValues(f.Name(), "failure").Inc()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("%w: form builder returned status %d (failed to read body)", ErrUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: form builder returned status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	reader := csv.NewReader(resp.Body)
	// Rows may have trailing columns beyond the ones mapped here.
	reader.FieldsPerRecord = -1

	var users []models.User
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			metrics.SourceRequestsTotal.WithLabelValues(f.Name(), "failure").Inc()
			return nil, fmt.Errorf("%w: failed to parse CSV: %v", ErrMalformed, err)
		}

		user, ok := f.mapRow(row)
		if !ok {
			metrics.MalformedRecordsTotal.WithLabelValues(f.Name()).Inc()
			logging.Error().Strs("row", row).Msg("Skipping malformed form builder row")
			continue
		}
		users = append(users, user)
	}

	metrics.SourceRequestsTotal.WithLabelValues(f.Name(), "success").Inc()
	return dedupeByEmail(users), nil
}

// mapRow converts one CSV row to the canonical model. Returns false for
// short rows and rows without an email address, which also drops the
// export's header row.
func (f *FormBuilder) mapRow(row []string) (models.User, bool) {
	if len(row) < fbMinColumns {
		return models.User{}, false
	}
	if !strings.Contains(row[fbColEmail], "@") {
		return models.User{}, false
	}

	user := models.User{
		Name:    models.NormalizeText(row[fbColName]),
		Surname: models.NormalizeText(row[fbColSurname]),
		Company: models.NormalizeText(row[fbColCompany]),
		Title:   models.NormalizeText(row[fbColTitle]),
		Email:   models.NormalizeEmail(row[fbColEmail]),
		ASN:     models.NormalizeASN(row[fbColASN]),
		Country: formBuilderCountry,
	}

	if user.Company == "" {
		user.Company = models.FallbackCompany(user.Name, user.Surname)
	}

	return user, true
}
