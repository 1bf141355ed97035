package arena

import (
	"reflect"
	"testing"
)

func TestSplitScorePartitionsExactly(t *testing.T) {
	totals := []float64{0, 0.01, 3.33, 7.5, 9.99, 10}
	for _, total := range totals {
		for seed := uint32(0); seed < 50; seed++ {
			parts := SplitScore(total, RoundCount, NewStream(seed))
			if len(parts) != RoundCount {
				t.Fatalf("got %d parts", len(parts))
			}
			sum := 0
			for _, p := range parts {
				if p < 0 {
					t.Fatalf("negative part %d for total %v seed %d", p, total, seed)
				}
				sum += p
			}
			if want := int(total*100 + 0.5); sum != want {
				t.Fatalf("total %v seed %d: parts sum %d want %d", total, seed, sum, want)
			}
		}
	}
}

func narrativeFixture() NarrativeInput {
	return NarrativeInput{
		Seed:     DeriveSeed("S2024W10", "2024-03-04", 1, ModeMathRace, "match"),
		A:        NarrativeSide{ActorID: "ada", Score: 7.42, Rating: 1000, PriorStreak: 2, Streak: 3},
		B:        NarrativeSide{ActorID: "bram", Score: 6.91, Rating: 1050, PriorStreak: -1, Streak: -2},
		WinnerID: "ada",
		Stake:    5,
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	a, b := Synthesize(narrativeFixture()), Synthesize(narrativeFixture())
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("narrative differs between runs:\n%+v\n%+v", a, b)
	}
	if len(a.Rounds) != RoundCount {
		t.Fatalf("got %d rounds", len(a.Rounds))
	}
	last := a.Rounds[len(a.Rounds)-1]
	if last.CumA != 7.42 || last.CumB != 6.91 {
		t.Fatalf("final cumulative scores %v/%v do not match totals", last.CumA, last.CumB)
	}
	if a.Gap != "+0.51" {
		t.Fatalf("gap got %q", a.Gap)
	}
}

func TestSynthesizeTags(t *testing.T) {
	in := narrativeFixture()
	n := Synthesize(in)
	if !hasTag(n, "close-match") || !hasTag(n, "mid-stakes") || !hasTag(n, "win-streak") {
		t.Fatalf("expected close-match, mid-stakes and win-streak in %v", n.Tags)
	}
	if hasTag(n, "upset") {
		t.Fatalf("50 points is not an upset: %v", n.Tags)
	}

	in = narrativeFixture()
	in.A.Rating, in.B.Rating = 900, 1300
	in.A.Score, in.B.Score = 9.5, 2.1
	in.Stake = 12
	n = Synthesize(in)
	if !hasTag(n, "upset") || !hasTag(n, "blowout") || !hasTag(n, "high-stakes") {
		t.Fatalf("expected upset, blowout and high-stakes in %v", n.Tags)
	}

	in = narrativeFixture()
	in.Stake, in.Forfeit = 0, true
	in.B.PriorStreak = 4
	crowd := -0.3
	in.CrowdDelta = &crowd
	n = Synthesize(in)
	if len(n.Tags) == 0 || n.Tags[0] != "forfeit" {
		t.Fatalf("forfeit should lead the tags: %v", n.Tags)
	}
	if !hasTag(n, "streak-snapped") || !hasTag(n, "crowd-stunned") {
		t.Fatalf("expected streak-snapped and crowd-stunned in %v", n.Tags)
	}
	for _, tag := range n.Tags {
		if tag == "low-stakes" || tag == "mid-stakes" || tag == "high-stakes" {
			t.Fatalf("forfeit carries no stake tag: %v", n.Tags)
		}
	}
}

func TestSynthesizeTieIsPhotoFinish(t *testing.T) {
	in := narrativeFixture()
	in.B.Score = in.A.Score
	n := Synthesize(in)
	if !hasTag(n, "photo-finish") || n.Gap != "+0.00" {
		t.Fatalf("got tags %v gap %q", n.Tags, n.Gap)
	}
}

func hasTag(n Narrative, tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
