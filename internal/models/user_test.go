// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

package models

import "testing"

func TestNormalizeASN(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *int
	}{
		{name: "with AS prefix", raw: "AS64496", want: intPtr(64496)},
		{name: "with lowercase as prefix", raw: "as64496", want: intPtr(64496)},
		{name: "bare digits", raw: "64496", want: intPtr(64496)},
		{name: "surrounding whitespace", raw: "  AS64496 ", want: intPtr(64496)},
		{name: "not a number", raw: "notanumber", want: nil},
		{name: "prefix only", raw: "AS", want: nil},
		{name: "empty", raw: "", want: nil},
		{name: "zero is a valid ASN", raw: "AS0", want: intPtr(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeASN(tt.raw)
			if tt.want == nil {
				if got != nil {
					t.Errorf("NormalizeASN(%q) = %d, want nil", tt.raw, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("NormalizeASN(%q) = nil, want %d", tt.raw, *tt.want)
			}
			if *got != *tt.want {
				t.Errorf("NormalizeASN(%q) = %d, want %d", tt.raw, *got, *tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user@example.com", "USER@EXAMPLE.COM"},
		{"User@Example.Com", "USER@EXAMPLE.COM"},
		{"  user@example.com ", "USER@EXAMPLE.COM"},
	}

	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUserCacheKey(t *testing.T) {
	u := User{Email: "Someone@Example.COM"}
	if got := u.CacheKey(); got != "SOMEONE@EXAMPLE.COM" {
		t.Errorf("CacheKey() = %q, want %q", got, "SOMEONE@EXAMPLE.COM")
	}
}

func TestFallbackCompany(t *testing.T) {
	if got := FallbackCompany("JANE", "DOE"); got != "JANE DOE" {
		t.Errorf("FallbackCompany = %q, want %q", got, "JANE DOE")
	}
}

func intPtr(i int) *int {
	return &i
}
