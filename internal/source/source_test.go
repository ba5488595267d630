// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

package source

import (
	"testing"

	"github.com/eventops/regsync/internal/models"
)

// checkEmails asserts the fetched users carry exactly the expected
// normalized emails, in order.
func checkEmails(t *testing.T, users []models.User, want ...string) {
	t.Helper()
	if len(users) != len(want) {
		t.Fatalf("got %d users, want %d (%v)", len(users), len(want), want)
	}
	for i, email := range want {
		if users[i].Email != email {
			t.Errorf("users[%d].Email = %q, want %q", i, users[i].Email, email)
		}
	}
}

func checkASN(t *testing.T, user models.User, want int) {
	t.Helper()
	if user.ASN == nil {
		t.Fatalf("user %s ASN = nil, want %d", user.Email, want)
	}
	if *user.ASN != want {
		t.Errorf("user %s ASN = %d, want %d", user.Email, *user.ASN, want)
	}
}

func checkNoASN(t *testing.T, user models.User) {
	t.Helper()
	if user.ASN != nil {
		t.Errorf("user %s ASN = %d, want nil", user.Email, *user.ASN)
	}
}

func TestDedupeByEmail(t *testing.T) {
	users := []models.User{
		{Name: "FIRST", Email: "A@EXAMPLE.COM"},
		{Name: "SECOND", Email: "B@EXAMPLE.COM"},
		{Name: "THIRD", Email: "A@EXAMPLE.COM"},
		{Name: "FOURTH", Email: "C@EXAMPLE.COM"},
	}

	got := dedupeByEmail(users)

	checkEmails(t, got, "A@EXAMPLE.COM", "B@EXAMPLE.COM", "C@EXAMPLE.COM")
	if got[0].Name != "FIRST" {
		t.Errorf("duplicate resolution kept %q, want first occurrence FIRST", got[0].Name)
	}
}

func TestDedupeByEmailEmpty(t *testing.T) {
	if got := dedupeByEmail(nil); len(got) != 0 {
		t.Errorf("dedupeByEmail(nil) = %v, want empty", got)
	}
}
