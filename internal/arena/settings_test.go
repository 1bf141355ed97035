package arena

import (
	"context"
	"testing"
)

func TestSettingsWithDefaults(t *testing.T) {
	got := Settings{}.withDefaults()
	d := DefaultSettings()
	if got.MatchesPerDay != d.MatchesPerDay || got.LiveWindow != d.LiveWindow || got.KFactor != d.KFactor {
		t.Fatalf("counts and durations should default: %+v", got)
	}
	if len(got.ModeWeights) != len(d.ModeWeights) || got.RematchTTL != d.RematchTTL {
		t.Fatalf("weights and ttl should default: %+v", got)
	}
	if got.BaseWager != 0 || got.XPWin != 0 || got.LossPenaltyCoins != 0 {
		t.Fatalf("amounts must stay as given: %+v", got)
	}

	clamped := Settings{MatchesPerDay: MaxMatchesPerDay + 1, FeePct: 150, RematchMultiplier: 3, BaseWager: -4}.withDefaults()
	if clamped.MatchesPerDay != d.MatchesPerDay || clamped.FeePct != d.FeePct {
		t.Fatalf("out of range knobs not reset: %+v", clamped)
	}
	if clamped.RematchMultiplier != MaxRematchMultiplier || clamped.BaseWager != 0 {
		t.Fatalf("multiplier or wager not clamped: %+v", clamped)
	}
}

func TestZeroWagerSettlesAsForfeit(t *testing.T) {
	store := NewMemoryStore()
	store.SetBalance("a", 50)
	store.SetBalance("b", 50)
	m := stageMatch(t, store, 1, ModeMathRace, strongSnapshot("a"), weakSnapshot("b"), 0)
	svc := newTestService(store)
	if _, err := svc.ResolveMatch(context.Background(), m.ID, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	st := detail(t, svc, m.ID).Match.Meta.Resolution.Settlement
	if !st.Forfeit || st.Stake != 0 || st.Fee != 0 {
		t.Fatalf("expected a stake-free forfeit, got %+v", st)
	}
	if store.BalanceOf("a") != 50 {
		t.Fatalf("winner balance moved without a stake: %d", store.BalanceOf("a"))
	}
}
