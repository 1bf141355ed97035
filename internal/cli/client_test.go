package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"arena/internal/arena"
	"arena/internal/config"
)

func TestClientSendsTokenAndIdempotencyKey(t *testing.T) {
	var gotAuth, gotIdem string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotIdem = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(arena.TickResult{Day: "2024-03-04", Created: 6})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	res, err := c.Tick(context.Background(), "tok", "2024-03-04", 6, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 6 || gotAuth != "Bearer tok" {
		t.Fatalf("got %+v auth %q", res, gotAuth)
	}
	if gotBody["resolve_immediately"] != true {
		t.Fatalf("unexpected body %v", gotBody)
	}

	if _, err := c.RequestRematch(context.Background(), "bram", "ada", "idem-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotIdem != "idem-1" || gotBody["requester_id"] != "bram" {
		t.Fatalf("rematch sent idem %q body %v", gotIdem, gotBody)
	}
}

func TestClientErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"actor not found"}`))
	}))
	c := NewClient(srv.URL)
	_, err := c.Stats(context.Background(), "zed", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Message != "actor not found" {
		t.Fatalf("unexpected error %v", err)
	}
	if Unreachable(err) || !Permanent(err) {
		t.Fatalf("404 is a permanent api error")
	}
	srv.Close()

	_, err = c.Stats(context.Background(), "zed", "")
	if err == nil || !Unreachable(err) || Permanent(err) {
		t.Fatalf("closed server should be unreachable, got %v", err)
	}
	if Permanent(&APIError{Status: http.StatusConflict}) {
		t.Fatalf("conflicts are retryable")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := LoadSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := SaveSession(Session{OperatorToken: "  "}); err == nil {
		t.Fatalf("expected error for a blank token")
	}
	if err := SaveSession(Session{OperatorToken: "tok", APIBaseURL: "ftp://x"}); err == nil {
		t.Fatalf("expected error for a non-http base url")
	}
	if err := SaveSession(Session{OperatorToken: " tok ", APIBaseURL: "http://x:8080/"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	s, err := LoadSession()
	if err != nil || s.OperatorToken != "tok" || s.APIBaseURL != "http://x:8080" || s.SavedAt.IsZero() {
		t.Fatalf("got %+v %v", s, err)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, err := LoadSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}
}

func TestResolveProfilePrecedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	defaults := config.CLIConfig{APIBaseURL: "http://localhost:8080"}

	if p := ResolveProfile(defaults); p.APIBaseURL != "http://localhost:8080" || p.OperatorToken != "" {
		t.Fatalf("without a session got %+v", p)
	}

	if err := SaveSession(Session{OperatorToken: "saved", APIBaseURL: "https://arena.example"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	tests := []struct {
		name      string
		cfg       config.CLIConfig
		wantBase  string
		wantToken string
	}{
		{"session fills defaults", defaults, "https://arena.example", "saved"},
		{"explicit env url wins", config.CLIConfig{APIBaseURL: "http://env:9000", APIBaseURLSet: true}, "http://env:9000", "saved"},
		{"env token wins", config.CLIConfig{APIBaseURL: "http://localhost:8080", OperatorToken: "env"}, "https://arena.example", "env"},
	}
	for _, tc := range tests {
		p := ResolveProfile(tc.cfg)
		if p.APIBaseURL != tc.wantBase || p.OperatorToken != tc.wantToken {
			t.Fatalf("%s: got %+v", tc.name, p)
		}
	}
}
