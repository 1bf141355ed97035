package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: &pgconn.PgError{Code: "40001"}, want: true},
		{err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{err: &pgconn.PgError{Code: "23505"}, want: false},
		{err: errors.New("boom"), want: false},
	}
	for _, tc := range tests {
		if got := isRetryable(tc.err); got != tc.want {
			t.Fatalf("%v: got %v want %v", tc.err, got, tc.want)
		}
	}
}

func TestSleepWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepWithContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMigrationsEmbeddedInOrder(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) == 0 || names[0] != "0001_arena.sql" {
		t.Fatalf("unexpected migrations %v", names)
	}
	body, err := migrationFS.ReadFile("migrations/" + names[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, table := range []string{"arena.matches", "arena.participants", "arena.ratings", "arena.rematch_requests", "arena.recap_posts"} {
		if !strings.Contains(string(body), table) {
			t.Fatalf("schema missing %s", table)
		}
	}
	if !strings.Contains(string(body), "UNIQUE (season_code, day, slot)") {
		t.Fatalf("schema missing slot uniqueness")
	}
}
