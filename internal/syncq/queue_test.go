package syncq

import (
	"context"
	"errors"
	"testing"
)

var (
	errOffline  = errors.New("connection refused")
	errRejected = errors.New("api status 404")
)

func TestPushLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cmds, err := Load()
	if err != nil || len(cmds) != 0 {
		t.Fatalf("empty queue got %v %v", cmds, err)
	}
	if err := Push(Command{Method: "POST", Path: "/v1/rematches", IdempotencyKey: "k1"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	cmds, err = Load()
	if err != nil || len(cmds) != 1 || cmds[0].IdempotencyKey != "k1" || cmds[0].QueuedAt.IsZero() {
		t.Fatalf("unexpected queue %+v %v", cmds, err)
	}
}

func TestDrainStopsWhenOffline(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"a", "b", "c", "d"} {
		if err := Push(Command{Method: "POST", Path: "/v1/rematches", IdempotencyKey: k}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	var seen []string
	send := func(_ context.Context, cmd Command) error {
		seen = append(seen, cmd.IdempotencyKey)
		switch cmd.IdempotencyKey {
		case "b":
			return errRejected
		case "c":
			return errOffline
		}
		return nil
	}
	permanent := func(err error) bool { return errors.Is(err, errRejected) }

	res, err := Drain(context.Background(), send, permanent)
	if !errors.Is(err, errOffline) {
		t.Fatalf("expected offline error, got %v", err)
	}
	if res.Sent != 1 || len(res.Rejected) != 1 || res.Pending != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(seen) != 3 {
		t.Fatalf("drain should stop at the first transport failure, saw %v", seen)
	}

	left, _ := Load()
	if len(left) != 2 || left[0].IdempotencyKey != "c" || left[1].IdempotencyKey != "d" {
		t.Fatalf("unexpected remainder %+v", left)
	}

	res, err = Drain(context.Background(), func(context.Context, Command) error { return nil }, permanent)
	if err != nil || res.Sent != 2 || res.Pending != 0 {
		t.Fatalf("second drain got %+v %v", res, err)
	}
}
