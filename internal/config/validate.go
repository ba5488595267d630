// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Schedule interval bounds. Anything under a second hammers the source;
// anything over a day means the daemon may as well be a cron job.
const (
	minSyncInterval = time.Second
	maxSyncInterval = 24 * time.Hour
)

// Validate checks struct tags and cross-field constraints. All failures
// here are startup-fatal; a daemon with a broken configuration must not
// enter the scheduling loop.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, verr := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q validation", verr.Namespace(), verr.Tag()))
			}
			return fmt.Errorf("invalid configuration: %v", msgs)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.validateSource(); err != nil {
		return err
	}

	if c.Sync.Interval < minSyncInterval || c.Sync.Interval > maxSyncInterval {
		return fmt.Errorf("sync.interval %s out of range [%s, %s]", c.Sync.Interval, minSyncInterval, maxSyncInterval)
	}
	if c.Sync.BatchPace <= 0 {
		return fmt.Errorf("sync.batch_pace must be positive, got %s", c.Sync.BatchPace)
	}
	if c.Sync.RetryDelay <= 0 {
		return fmt.Errorf("sync.retry_delay must be positive, got %s", c.Sync.RetryDelay)
	}

	if _, err := c.EmailFilter(); err != nil {
		return err
	}

	return nil
}

// validateSource checks that the selected source carries its required
// credentials. Credentials of unselected sources are ignored.
func (c *Config) validateSource() error {
	switch c.Source.Type {
	case SourceEventbrite:
		if c.Source.Eventbrite.Event == "" {
			return errors.New("source.eventbrite.event is required for the eventbrite source")
		}
		if c.Source.Eventbrite.Token == "" {
			return errors.New("source.eventbrite.token is required for the eventbrite source")
		}
	case SourceFormBuilder:
		if c.Source.FormBuilder.URL == "" {
			return errors.New("source.formbuilder.url is required for the formbuilder source")
		}
	case SourcePretino:
		if c.Source.Pretino.URL == "" {
			return errors.New("source.pretino.url is required for the pretino source")
		}
		if c.Source.Pretino.APIKey == "" {
			return errors.New("source.pretino.api_key is required for the pretino source")
		}
	default:
		return fmt.Errorf("unknown source type %q", c.Source.Type)
	}
	return nil
}
