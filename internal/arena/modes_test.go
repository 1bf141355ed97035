package arena

import (
	"errors"
	"testing"
)

func TestEveryModeHasSimulator(t *testing.T) {
	if len(AllModes) < 6 {
		t.Fatalf("expected at least six modes, got %d", len(AllModes))
	}
	for _, m := range AllModes {
		if _, err := SimulatorFor(m); err != nil {
			t.Fatalf("mode %s: %v", m, err)
		}
	}
	if _, err := SimulatorFor(Mode("CHESS")); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" math_race ")
	if err != nil || m != ModeMathRace {
		t.Fatalf("got %q %v", m, err)
	}
	if _, err := ParseMode("CHESS"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestSimulatorsBoundedAndDeterministic(t *testing.T) {
	inputs := []SimInput{
		{Rating: 1000, Stats: Stats{Energy: 60, Mood: 50, Stress: 20, Curiosity: 50}},
		{Rating: 1900, Stats: Stats{Energy: 100, Mood: 100, Stress: 0, Curiosity: 100}, Role: "SCHOLAR",
			Hints: HintVector{Discipline: 1, Focus: 1, Calm: 1, Study: 1}},
		{Rating: 300, Stats: Stats{Energy: 0, Mood: 0, Stress: 100}, Hints: HintVector{Aggression: 1}},
	}
	for _, m := range AllModes {
		sim, _ := SimulatorFor(m)
		for seed := uint32(0); seed < 60; seed++ {
			for _, in := range inputs {
				in.MatchSeed = DeriveSeed("S2024W10", "2024-03-04", seed, m, "match")
				in.Seed = DeriveSeed(in.MatchSeed, "ada")
				a, b := sim.Simulate(in), sim.Simulate(in)
				if a != b {
					t.Fatalf("mode %s seed %d not deterministic: %+v vs %+v", m, seed, a, b)
				}
				if a.Score < 0 || a.Score > 10 {
					t.Fatalf("mode %s seed %d score out of range: %v", m, seed, a.Score)
				}
				if a.Artifact == "" {
					t.Fatalf("mode %s produced empty artifact", m)
				}
			}
		}
	}
}

func TestSkillShowsInMathRace(t *testing.T) {
	sim, _ := SimulatorFor(ModeMathRace)
	strong := SimInput{Rating: 1600, Role: "SCHOLAR", Stats: Stats{Energy: 100}, Hints: HintVector{Focus: 1, Discipline: 1}}
	weak := SimInput{Rating: 600, Stats: Stats{Stress: 100}}
	var strongTotal, weakTotal float64
	for i := uint32(0); i < 200; i++ {
		strong.MatchSeed, weak.MatchSeed = i, i
		strong.Seed, weak.Seed = DeriveSeed(i, "strong"), DeriveSeed(i, "weak")
		strongTotal += sim.Simulate(strong).Score
		weakTotal += sim.Simulate(weak).Score
	}
	if strongTotal <= weakTotal {
		t.Fatalf("expected the stronger profile to score more on average: %v vs %v", strongTotal, weakTotal)
	}
}

func TestPromptKeywordsSharedPerMatch(t *testing.T) {
	a, b := PromptKeywords(77), PromptKeywords(77)
	if len(a) != promptKeywords {
		t.Fatalf("got %d keywords", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("keywords differ for same seed: %v vs %v", a, b)
		}
	}
}

func TestRegexClassifier(t *testing.T) {
	c := NewRegexClassifier()

	if got := c.Classify(nil); got != (HintVector{}) {
		t.Fatalf("empty directives got %+v", got)
	}

	h := c.Classify([]string{"Stay calm and focus"})
	if h.Calm != 0.5 || h.Focus != 0.5 || h.Aggression != 0 {
		t.Fatalf("unexpected vector %+v", h)
	}

	h = c.Classify([]string{"calm calm calm calm"})
	if h.Calm != 1 {
		t.Fatalf("expected hits capped to a full channel, got %+v", h)
	}

	h = c.Classify([]string{"nothing relevant", "be aggressive"})
	if h.Aggression != 0.35 {
		t.Fatalf("expected decayed aggression 0.35, got %v", h.Aggression)
	}
}
