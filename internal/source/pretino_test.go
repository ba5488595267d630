// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const pretinoBodyJSON = `[
	{
		"name": "mario",
		"surname": "rossi",
		"company": "example spa",
		"job_title": "network engineer",
		"email": "Mario.Rossi@Example.com",
		"asn": "AS64496"
	},
	{
		"name": "anna",
		"surname": "bianchi",
		"company": "",
		"job_title": "peering coordinator",
		"email": "anna@example.org",
		"asn": ""
	},
	{
		"name": "",
		"surname": "nobody",
		"email": "dropped@example.com"
	}
]`

func TestPretinoFetch(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-pretino-key")
		fmt.Fprint(w, pretinoBodyJSON)
	}))
	defer server.Close()

	src := NewPretino(server.URL, "test-key")
	users, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil", err)
	}

	if gotKey != "test-key" {
		t.Errorf("x-pretino-key header = %q, want %q", gotKey, "test-key")
	}

	// The third record has no name and is dropped.
	checkEmails(t, users, "MARIO.ROSSI@EXAMPLE.COM", "ANNA@EXAMPLE.ORG")

	mario := users[0]
	if mario.Company != "EXAMPLE SPA" {
		t.Errorf("user company = %q, want EXAMPLE SPA", mario.Company)
	}
	if mario.Country != "IT" {
		t.Errorf("user country = %q, want IT", mario.Country)
	}
	checkASN(t, mario, 64496)

	anna := users[1]
	if anna.Company != "ANNA BIANCHI" {
		t.Errorf("empty company = %q, want fallback ANNA BIANCHI", anna.Company)
	}
	checkNoASN(t, anna)
}

func TestPretinoFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "bad key")
	}))
	defer server.Close()

	src := NewPretino(server.URL, "wrong-key")
	if _, err := src.Fetch(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Fetch() error = %v, want ErrUnavailable", err)
	}
}

func TestPretinoFetchMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not": "an array"}`)
	}))
	defer server.Close()

	src := NewPretino(server.URL, "test-key")
	if _, err := src.Fetch(context.Background()); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Fetch() error = %v, want ErrMalformed", err)
	}
}
