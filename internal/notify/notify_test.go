package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arena/internal/arena"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

type fakePublisher struct {
	channels []string
	payloads []string
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channels = append(f.channels, channel)
	if b, ok := message.([]byte); ok {
		f.payloads = append(f.payloads, string(b))
	}
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublisherChannels(t *testing.T) {
	fp := &fakePublisher{}
	p := &RedisPublisher{rdb: fp}
	ctx := context.Background()

	if err := p.Notify(ctx, arena.Notification{Kind: "match_resolved", ActorID: "cleo", MatchID: "m1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Notify(ctx, arena.Notification{Kind: "match_created", MatchID: "m2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fp.channels) != 2 || fp.channels[0] != "arena:actors:cleo" || fp.channels[1] != BroadcastChannel {
		t.Fatalf("unexpected channels %v", fp.channels)
	}
	var n arena.Notification
	if err := json.Unmarshal([]byte(fp.payloads[0]), &n); err != nil || n.MatchID != "m1" {
		t.Fatalf("unexpected payload %q: %v", fp.payloads[0], err)
	}

	fp.err = errors.New("down")
	if err := p.Notify(ctx, arena.Notification{Kind: "match_created"}); err == nil {
		t.Fatalf("expected publish error")
	}
}

type sinkFunc func(arena.Notification) error

func (f sinkFunc) Notify(_ context.Context, n arena.Notification) error { return f(n) }

func TestFanoutContinuesPastFailures(t *testing.T) {
	var delivered int
	f := Fanout{
		sinkFunc(func(arena.Notification) error { return errors.New("first sink down") }),
		nil,
		sinkFunc(func(arena.Notification) error { delivered++; return nil }),
	}
	err := f.Notify(context.Background(), arena.Notification{Kind: "match_created"})
	if err == nil || !strings.Contains(err.Error(), "first sink down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if delivered != 1 {
		t.Fatalf("later sink not reached")
	}
}

func TestHubBroadcastsToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := hub.Notify(ctx, arena.Notification{Kind: "match_created", MatchID: "m1", Mode: arena.ModeMathRace}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var n arena.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.Kind != "match_created" || n.MatchID != "m1" {
		t.Fatalf("unexpected notification %+v", n)
	}
}

type fakeGetter struct {
	keys []string
	val  string
	err  error
}

func (f *fakeGetter) Get(_ context.Context, key string) *redis.StringCmd {
	f.keys = append(f.keys, key)
	return redis.NewStringResult(f.val, f.err)
}

func TestRedisCrowdGauge(t *testing.T) {
	ctx := context.Background()
	fg := &fakeGetter{val: "0.25"}
	g := &RedisCrowdGauge{rdb: fg}

	delta, err := g.CrowdDelta(ctx, "2024-03-04")
	if err != nil || delta == nil || *delta != 0.25 {
		t.Fatalf("got %v, %v", delta, err)
	}
	if fg.keys[0] != "arena:crowd:2024-03-04" {
		t.Fatalf("unexpected key %q", fg.keys[0])
	}

	fg.val, fg.err = "", redis.Nil
	if delta, err := g.CrowdDelta(ctx, "2024-03-05"); err != nil || delta != nil {
		t.Fatalf("missing key should be no reading, got %v, %v", delta, err)
	}

	fg.val, fg.err = "loud", nil
	if _, err := g.CrowdDelta(ctx, "2024-03-06"); err == nil {
		t.Fatalf("expected parse error")
	}
}
