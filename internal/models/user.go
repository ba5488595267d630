// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

// Package models defines the canonical registrant record shared by every
// source adapter, the dedup cache, and the meeting tool client.
package models

import (
	"strconv"
	"strings"
)

// User is the canonical registrant record.
//
// Text fields are normalized to uppercase by the source adapters before a
// User reaches the engine; the engine never re-normalizes them. Email is the
// identity key: dedup comparisons use the uppercase form (CacheKey), while
// the meeting tool submission uses the lowercase form (the destination API
// requires lowercase addresses).
type User struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Title   string `json:"title"`
	// ASN is nil for registrants without an autonomous system number.
	ASN     *int   `json:"asn"`
	Country string `json:"country"`
}

// CacheKey returns the normalized identity key for this user.
func (u User) CacheKey() string {
	return NormalizeEmail(u.Email)
}

// NormalizeEmail returns the canonical (uppercase, trimmed) form of an email
// address used as the dedup cache key.
func NormalizeEmail(email string) string {
	return strings.ToUpper(strings.TrimSpace(email))
}

// NormalizeText uppercases a free-text field the way all adapters must
// before emitting a User.
func NormalizeText(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeASN parses a raw autonomous system number, stripping an optional
// case-insensitive "AS" prefix. It returns nil (not zero, not an error) when
// the remainder does not parse as an integer.
//
//	"AS64496" -> 64496
//	"as64496" -> 64496
//	"64496"   -> 64496
//	"notanumber" -> nil
func NormalizeASN(raw string) *int {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && strings.EqualFold(s[:2], "AS") {
		s = s[2:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// FallbackCompany returns the company value to use when a source provides an
// empty company name: the registrant's own "NAME SURNAME".
func FallbackCompany(name, surname string) string {
	return name + " " + surname
}
