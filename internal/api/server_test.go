package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arena/internal/arena"
	"arena/internal/config"
	"arena/internal/metrics"
)

const testToken = "op-secret"

var testNow = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	store := arena.NewMemoryStore()
	arena.SeedDemo(store, 100)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := arena.NewService(store, logger, arena.DefaultSettings(),
		arena.WithClock(func() time.Time { return testNow }))
	srv := New(config.APIConfig{OperatorToken: token}, logger, svc, nil, metrics.New())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, testToken)
	var health map[string]any
	if code := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil, &health); code != http.StatusOK || health["ok"] != true {
		t.Fatalf("healthz got %d %v", code, health)
	}
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", resp.StatusCode)
	}
}

func TestTickRequiresOperatorToken(t *testing.T) {
	ts := newTestServer(t, testToken)
	if code := doJSON(t, http.MethodPost, ts.URL+"/v1/tick", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("missing token got %d", code)
	}
	if code := doJSON(t, http.MethodPost, ts.URL+"/v1/tick", "wrong", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("wrong token got %d", code)
	}

	disabled := newTestServer(t, "")
	if code := doJSON(t, http.MethodPost, disabled.URL+"/v1/tick", testToken, nil, nil); code != http.StatusForbidden {
		t.Fatalf("disabled operator endpoints got %d", code)
	}
}

func TestTickThenReadAndResolve(t *testing.T) {
	ts := newTestServer(t, testToken)

	var tick arena.TickResult
	code := doJSON(t, http.MethodPost, ts.URL+"/v1/tick", testToken, map[string]any{"day": "2024-03-04"}, &tick)
	if code != http.StatusOK {
		t.Fatalf("tick got %d", code)
	}
	if tick.Created == 0 || tick.Created+tick.Skipped != arena.DefaultMatchesPerDay || tick.Season != "S2024W10" {
		t.Fatalf("unexpected tick result %+v", tick)
	}

	var again arena.TickResult
	doJSON(t, http.MethodPost, ts.URL+"/v1/tick", testToken, map[string]any{"day": "2024-03-04"}, &again)
	if again.Created != 0 {
		t.Fatalf("second tick created %d matches", again.Created)
	}

	var list struct {
		Day     string        `json:"day"`
		Matches []arena.Match `json:"matches"`
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/v1/matches", "", nil, &list); code != http.StatusOK {
		t.Fatalf("matches got %d", code)
	}
	if list.Day != "2024-03-04" || len(list.Matches) != tick.Created {
		t.Fatalf("got %d matches for %s, want %d", len(list.Matches), list.Day, tick.Created)
	}

	id := list.Matches[0].ID
	var res arena.ResolveResult
	if code := doJSON(t, http.MethodPost, ts.URL+"/v1/matches/"+id+"/resolve", testToken, nil, &res); code != http.StatusOK {
		t.Fatalf("resolve got %d", code)
	}
	if res.Status != arena.StatusResolved || res.WinnerID == "" || res.AlreadyResolved {
		t.Fatalf("unexpected resolve result %+v", res)
	}
	doJSON(t, http.MethodPost, ts.URL+"/v1/matches/"+id+"/resolve", testToken, nil, &res)
	if !res.AlreadyResolved {
		t.Fatalf("second resolve should report already resolved: %+v", res)
	}

	var detail arena.MatchDetail
	if code := doJSON(t, http.MethodGet, ts.URL+"/v1/matches/"+id, "", nil, &detail); code != http.StatusOK {
		t.Fatalf("detail got %d", code)
	}
	if len(detail.Participants) != 2 || detail.Match.Meta.Resolution == nil || detail.Match.Meta.Resolution.Narrative == nil {
		t.Fatalf("detail missing resolution: %+v", detail)
	}

	var board struct {
		Rows []arena.LeaderboardRow `json:"rows"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/v1/leaderboard", "", nil, &board)
	if len(board.Rows) != 2 || board.Rows[0].Rank != 1 || board.Rows[0].ActorID != res.WinnerID {
		t.Fatalf("unexpected leaderboard %+v", board.Rows)
	}

	var hist struct {
		Rows []arena.HistoryRow `json:"rows"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/v1/actors/"+res.WinnerID+"/history", "", nil, &hist)
	if len(hist.Rows) != 1 || hist.Rows[0].Outcome != arena.OutcomeWin {
		t.Fatalf("unexpected history %+v", hist.Rows)
	}

	var stats arena.ActorStats
	doJSON(t, http.MethodGet, ts.URL+"/v1/actors/"+res.WinnerID+"/stats", "", nil, &stats)
	if stats.Matches != 1 || stats.Entry.Wins != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRematchEndpoint(t *testing.T) {
	ts := newTestServer(t, testToken)
	body := map[string]any{"requester_id": "bram", "target_id": "ada"}

	var out struct {
		Request arena.RematchRequest `json:"request"`
		Created bool                 `json:"created"`
	}
	if code := doJSON(t, http.MethodPost, ts.URL+"/v1/rematches", "", body, &out); code != http.StatusCreated || !out.Created {
		t.Fatalf("first request got %d %+v", code, out)
	}
	first := out.Request.ID
	if code := doJSON(t, http.MethodPost, ts.URL+"/v1/rematches", "", body, &out); code != http.StatusOK || out.Created || out.Request.ID != first {
		t.Fatalf("duplicate request got %d %+v", code, out)
	}

	tests := []struct {
		name string
		body any
		want int
	}{
		{"same actor", map[string]any{"requester_id": "ada", "target_id": "ada"}, http.StatusBadRequest},
		{"unknown actor", map[string]any{"requester_id": "ada", "target_id": "zed"}, http.StatusNotFound},
		{"bad id", map[string]any{"requester_id": "ada", "target_id": "no spaces"}, http.StatusBadRequest},
		{"unknown field", map[string]any{"requester_id": "ada", "target_id": "bram", "stake": 9}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		if code := doJSON(t, http.MethodPost, ts.URL+"/v1/rematches", "", tc.body, nil); code != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, code, tc.want)
		}
	}
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	ts := newTestServer(t, testToken)
	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/v1/matches?day=2024-13-40", http.StatusBadRequest},
		{http.MethodGet, "/v1/matches/not-a-uuid", http.StatusNotFound},
		{http.MethodGet, "/v1/leaderboard?season=week10", http.StatusBadRequest},
		{http.MethodGet, "/v1/actors/zed/history", http.StatusNotFound},
		{http.MethodGet, "/v1/actors/zed/stats", http.StatusNotFound},
		{http.MethodPost, "/v1/matches/00000000-0000-0000-0000-000000000000/resolve", http.StatusNotFound},
	}
	for _, tc := range tests {
		var out map[string]any
		if code := doJSON(t, tc.method, ts.URL+tc.path, testToken, nil, &out); code != tc.want {
			t.Fatalf("%s %s: got %d want %d (%v)", tc.method, tc.path, code, tc.want, out)
		}
		if _, ok := out["error"]; !ok {
			t.Fatalf("%s %s: missing error body", tc.method, tc.path)
		}
	}

	var tick map[string]any
	if code := doJSON(t, http.MethodPost, ts.URL+"/v1/tick", testToken, map[string]any{"matches_per_day": 99}, &tick); code != http.StatusBadRequest {
		t.Fatalf("oversized tick got %d", code)
	}
}

func TestRematchLogsClientIdempotencyKey(t *testing.T) {
	var logs bytes.Buffer
	store := arena.NewMemoryStore()
	arena.SeedDemo(store, 100)
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	svc := arena.NewService(store, logger, arena.DefaultSettings(),
		arena.WithClock(func() time.Time { return testNow }))
	ts := httptest.NewServer(New(config.APIConfig{}, logger, svc, nil, nil).Handler())
	defer ts.Close()

	post := func(key string) {
		raw, _ := json.Marshal(map[string]any{"requester_id": "bram", "target_id": "ada"})
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/rematches", bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		resp.Body.Close()
	}

	post("")
	if strings.Contains(logs.String(), "idempotency_key") {
		t.Fatalf("server minted a key for a request without one: %s", logs.String())
	}
	logs.Reset()
	post("replay-7")
	if !strings.Contains(logs.String(), `"idempotency_key":"replay-7"`) {
		t.Fatalf("client key not logged: %s", logs.String())
	}
}
