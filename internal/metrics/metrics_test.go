package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arena/internal/arena"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	m := New()
	m.MatchCreated(arena.ModeMathRace)
	m.MatchCreated(arena.ModeMathRace)
	m.MatchResolved(arena.ModeReflexDuel, true)
	m.SideEffect("xp", false)
	m.SlotFailed()
	m.CoinsBurned(3)
	m.CoinsBurned(-1)
	m.TickDuration(40 * time.Millisecond)

	if got := testutil.ToFloat64(m.MatchesCreated.WithLabelValues("MATH_RACE")); got != 2 {
		t.Fatalf("created got %v", got)
	}
	if got := testutil.ToFloat64(m.MatchesResolved.WithLabelValues("REFLEX_DUEL", "true")); got != 1 {
		t.Fatalf("resolved got %v", got)
	}
	if got := testutil.ToFloat64(m.SideEffects.WithLabelValues("xp", "false")); got != 1 {
		t.Fatalf("side effects got %v", got)
	}
	if got := testutil.ToFloat64(m.CoinsBurnedTotal); got != 3 {
		t.Fatalf("burned got %v", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/matches/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/matches/abc", nil))
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/v1/matches/{id}", "418")); got != 1 {
		t.Fatalf("expected one request under the route pattern, got %v", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "arena_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}
}
