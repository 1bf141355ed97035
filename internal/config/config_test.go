package config

import (
	"os"
	"testing"
	"time"

	"arena/internal/arena"
)

func TestLoadAPIFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "")
	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("PORT should override addr, got %q", cfg.Addr)
	}
	if cfg.Engine.MatchesPerDay != 6 || cfg.Engine.LiveWindow != 20*time.Minute || cfg.Engine.RematchMultiplier != 1.25 {
		t.Fatalf("unexpected engine defaults %+v", cfg.Engine)
	}
	s, err := cfg.Engine.Settings()
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if s.FeePct != 15 || s.ModeWeights[arena.ModeMathRace] != 3 {
		t.Fatalf("unexpected settings %+v", s)
	}
}

func TestLoadAPIFromEnvRejectsBadEngine(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"ARENA_MATCHES_PER_DAY", "0"},
		{"ARENA_MATCHES_PER_DAY", "49"},
		{"ARENA_FEE_PCT", "120"},
		{"ARENA_REMATCH_MULTIPLIER", "2"},
		{"ARENA_MODE_WEIGHTS", "CHESS:3"},
		{"ARENA_LIVE_WINDOW", "soon"},
	}
	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := LoadAPIFromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoadWorkerFromEnv(t *testing.T) {
	t.Setenv("ARENA_TICK_EVERY", "90s")
	t.Setenv("ARENA_RESOLVE_IMMEDIATELY", "true")
	cfg, err := LoadWorkerFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TickEvery != 90*time.Second || !cfg.ResolveImmediately {
		t.Fatalf("unexpected worker config %+v", cfg)
	}

	t.Setenv("ARENA_TICK_EVERY", "10ms")
	if _, err := LoadWorkerFromEnv(); err == nil {
		t.Fatalf("expected error for sub-second tick")
	}
}

func TestLoadCLIFromEnvTrimsBaseURL(t *testing.T) {
	t.Setenv("ARENA_API_BASE_URL", " http://arena.local:8080/ ")
	cfg := LoadCLIFromEnv()
	if cfg.APIBaseURL != "http://arena.local:8080" || !cfg.APIBaseURLSet {
		t.Fatalf("got %+v", cfg)
	}

	os.Unsetenv("ARENA_API_BASE_URL")
	cfg = LoadCLIFromEnv()
	if cfg.APIBaseURL != "http://localhost:8080" || cfg.APIBaseURLSet {
		t.Fatalf("default base url should not count as set: %+v", cfg)
	}
}

func TestParseModeWeights(t *testing.T) {
	w, err := ParseModeWeights("math_race:3, REFLEX_DUEL:0.5,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w) != 2 || w[arena.ModeMathRace] != 3 || w[arena.ModeReflexDuel] != 0.5 {
		t.Fatalf("unexpected weights %v", w)
	}
	for _, bad := range []string{"MATH_RACE", "MATH_RACE:-1", "MATH_RACE:0", "MATH_RACE:x"} {
		if _, err := ParseModeWeights(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
