package arena

import (
	"reflect"
	"testing"
	"time"
)

func planInput(actors ...Actor) PlanInput {
	season, _ := SeasonForDay("2024-03-04")
	return PlanInput{
		Season: season,
		Day:    "2024-03-04",
		Slot:   1,
		Now:    testNow,
		Actors: actors,
	}
}

func TestPlanSlotNeedsTwoActors(t *testing.T) {
	if _, ok := PlanSlot(planInput(), DefaultSettings(), nil); ok {
		t.Fatalf("expected no match without actors")
	}
	if _, ok := PlanSlot(planInput(Actor{ID: "ada", Active: true}, Actor{ID: "bram"}), DefaultSettings(), nil); ok {
		t.Fatalf("expected no match with a single active actor")
	}
}

func TestPlanSlotDeterministic(t *testing.T) {
	in := planInput(DemoRoster()...)
	a, okA := PlanSlot(in, DefaultSettings(), NewRegexClassifier())
	b, okB := PlanSlot(in, DefaultSettings(), NewRegexClassifier())
	if !okA || !okB {
		t.Fatalf("expected a pairing from the demo roster")
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("plans differ:\n%+v\n%+v", a, b)
	}
	cast, err := a.Cast()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cast[0].ActorID == cast[1].ActorID {
		t.Fatalf("actor paired with itself: %s", cast[0].ActorID)
	}
	if a.Status != StatusLive || !a.EndsAt.After(testNow) {
		t.Fatalf("expected live match ending after now, got %+v", a)
	}
	if a.ID != MatchID("S2024W10", "2024-03-04", 1) {
		t.Fatalf("match id not derived from slot key")
	}
	if a.Seed != DeriveSeed("S2024W10", "2024-03-04", 1, a.Mode, "match") {
		t.Fatalf("seed not derived from slot and mode")
	}
}

func TestPlanSlotSkipsPairsUsedToday(t *testing.T) {
	in := planInput(Actor{ID: "ada", Active: true}, Actor{ID: "bram", Active: true})
	first, ok := PlanSlot(in, DefaultSettings(), nil)
	if !ok {
		t.Fatalf("expected first pairing")
	}
	in.Slot = 2
	in.Today = []Match{first}
	if _, ok := PlanSlot(in, DefaultSettings(), nil); ok {
		t.Fatalf("expected the only pair to be skipped once used today")
	}
}

func TestPlanSlotRevengeRaisesWager(t *testing.T) {
	in := planInput(Actor{ID: "ada", Active: true}, Actor{ID: "bram", Active: true})
	in.Rematches = []RematchRequest{{
		ID:          "r1",
		RequesterID: "bram",
		TargetID:    "ada",
		CreatedAt:   testNow.Add(-1),
		ExpiresAt:   testNow.Add(1e12),
	}}
	m, ok := PlanSlot(in, DefaultSettings(), nil)
	if !ok {
		t.Fatalf("expected pairing")
	}
	c := m.Meta.Creation
	if !c.Revenge || c.RematchID != "r1" {
		t.Fatalf("expected revenge pairing, got %+v", c)
	}
	if c.Stake.Wager != 7 || c.Stake.FeePct != 15 {
		t.Fatalf("unexpected stake plan %+v", c.Stake)
	}
}

func TestPlanSlotHonorsSharedPreferences(t *testing.T) {
	for slot := 1; slot <= 10; slot++ {
		in := planInput(
			Actor{ID: "ada", Active: true, Preferences: []Mode{ModeReflexDuel, ModeCourtTrial}},
			Actor{ID: "bram", Active: true, Preferences: []Mode{ModeReflexDuel}},
		)
		in.Slot = slot
		m, ok := PlanSlot(in, DefaultSettings(), nil)
		if !ok {
			t.Fatalf("expected pairing")
		}
		if m.Mode != ModeReflexDuel {
			t.Fatalf("slot %d: got mode %s", slot, m.Mode)
		}
	}

	in := planInput(
		Actor{ID: "ada", Active: true, Preferences: []Mode{ModeCourtTrial}},
		Actor{ID: "bram", Active: true, Preferences: []Mode{ModeReflexDuel}},
	)
	m, ok := PlanSlot(in, DefaultSettings(), nil)
	if !ok {
		t.Fatalf("expected pairing with disjoint preferences")
	}
	if _, err := SimulatorFor(m.Mode); err != nil {
		t.Fatalf("fallback picked unknown mode %s", m.Mode)
	}
}

func TestPlanSlotSnapshotsHints(t *testing.T) {
	in := planInput(
		Actor{ID: "ada", Active: true, Directives: []string{"stay calm"}},
		Actor{ID: "bram", Active: true},
	)
	m, ok := PlanSlot(in, DefaultSettings(), NewRegexClassifier())
	if !ok {
		t.Fatalf("expected pairing")
	}
	for _, snap := range m.Meta.Creation.Cast {
		if snap.ActorID == "ada" && snap.Hints.Calm == 0 {
			t.Fatalf("expected calm hint in ada's snapshot: %+v", snap.Hints)
		}
		if snap.ActorID == "bram" && snap.Hints != (HintVector{}) {
			t.Fatalf("bram has no directives: %+v", snap.Hints)
		}
	}
}

func pairedMatch(slot int, a, b string) Match {
	return Match{
		ID:   MatchID("S2024W10", "2024-03-04", slot),
		Slot: slot,
		Meta: MatchMeta{Creation: &CreationInfo{Cast: []Snapshot{{ActorID: a}, {ActorID: b}}}},
	}
}

func castIDs(t *testing.T, m Match) (string, string) {
	t.Helper()
	cast, err := m.Cast()
	if err != nil {
		t.Fatalf("cast: %v", err)
	}
	return cast[0].ActorID, cast[1].ActorID
}

func isPair(a, b, x, y string) bool {
	return (a == x && b == y) || (a == y && b == x)
}

func activeActors(ids ...string) []Actor {
	out := make([]Actor, 0, len(ids))
	for _, id := range ids {
		out = append(out, Actor{ID: id, Active: true})
	}
	return out
}

func TestPlanSlotCooldown(t *testing.T) {
	tests := []struct {
		name      string
		rematches []RematchRequest
		wantPair  bool
	}{
		{"recent pair is kept apart", nil, false},
		{"revenge ignores the cooldown", []RematchRequest{{
			ID:          "r1",
			RequesterID: "bram",
			TargetID:    "ada",
			CreatedAt:   testNow.Add(-time.Hour),
			ExpiresAt:   testNow.Add(time.Hour),
		}}, true},
	}
	for _, tc := range tests {
		for slot := 2; slot <= 20; slot++ {
			in := planInput(activeActors("ada", "bram", "cyd", "dov")...)
			in.Slot = slot
			// cyd and dov already played today, so ada or bram anchors.
			in.Today = []Match{pairedMatch(1, "cyd", "dov")}
			in.Recent = []Match{pairedMatch(1, "ada", "bram")}
			in.Rematches = tc.rematches
			m, ok := PlanSlot(in, DefaultSettings(), nil)
			if !ok {
				t.Fatalf("%s: slot %d: expected a pairing", tc.name, slot)
			}
			a, b := castIDs(t, m)
			if got := isPair(a, b, "ada", "bram"); got != tc.wantPair {
				t.Fatalf("%s: slot %d paired %s vs %s", tc.name, slot, a, b)
			}
			if tc.wantPair && !m.Meta.Creation.Revenge {
				t.Fatalf("%s: slot %d not flagged as revenge", tc.name, slot)
			}
		}
	}
}

func TestPlanSlotAnchorsLeastExposedActor(t *testing.T) {
	for slot := 5; slot <= 25; slot++ {
		in := planInput(activeActors("ada", "bram", "cyd", "dov", "eve")...)
		in.Slot = slot
		in.Today = []Match{
			pairedMatch(1, "ada", "bram"),
			pairedMatch(2, "cyd", "dov"),
			pairedMatch(3, "ada", "cyd"),
			pairedMatch(4, "bram", "dov"),
		}
		m, ok := PlanSlot(in, DefaultSettings(), nil)
		if !ok {
			t.Fatalf("slot %d: expected a pairing", slot)
		}
		if a, b := castIDs(t, m); a != "eve" && b != "eve" {
			t.Fatalf("slot %d: unexposed actor left out of %s vs %s", slot, a, b)
		}
	}
}

func TestPlanSlotPrefersRival(t *testing.T) {
	for slot := 3; slot <= 20; slot++ {
		in := planInput(activeActors("ada", "bram", "cyd", "dov")...)
		in.Slot = slot
		// ada is the only actor without a match today.
		in.Today = []Match{pairedMatch(1, "bram", "cyd"), pairedMatch(2, "bram", "dov")}
		in.Relations = []Relationship{{ActorID: "cyd", TargetID: "ada", Rivalry: 0.9}}
		m, ok := PlanSlot(in, DefaultSettings(), nil)
		if !ok {
			t.Fatalf("slot %d: expected a pairing", slot)
		}
		if a, b := castIDs(t, m); !isPair(a, b, "ada", "cyd") {
			t.Fatalf("slot %d: expected the rival pairing, got %s vs %s", slot, a, b)
		}
	}
}
