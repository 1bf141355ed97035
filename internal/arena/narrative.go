package arena

import (
	"fmt"
	"math"
	"sort"
)

// roundProbScale converts accumulated points into rating points when
// projecting the running win probability.
const roundProbScale = 60.0

// upsetThreshold is the pre-match expected score under which a win counts
// as an upset.
const upsetThreshold = 0.35

type Round struct {
	Index    int     `json:"index"`
	PartA    float64 `json:"part_a"`
	PartB    float64 `json:"part_b"`
	CumA     float64 `json:"cum_a"`
	CumB     float64 `json:"cum_b"`
	WinProbA float64 `json:"win_prob_a"`
	Leader   string  `json:"leader,omitempty"`
	Label    string  `json:"label,omitempty"`
}

// Narrative is presentational output derived once from a computed outcome.
type Narrative struct {
	Tags       []string `json:"tags"`
	Gap        string   `json:"gap"`
	Rounds     []Round  `json:"rounds"`
	Highlights []string `json:"highlights,omitempty"`
}

// NarrativeSide is one actor's frozen pre-match rating and streak plus the
// score it produced. Ledger ratings at resolution time never enter here, so
// the narrative does not depend on the order matches resolve in.
type NarrativeSide struct {
	ActorID     string
	Score       float64
	Rating      int
	PriorStreak int
	Streak      int
}

type NarrativeInput struct {
	Seed       uint32
	A, B       NarrativeSide
	WinnerID   string
	Stake      int64
	Forfeit    bool
	CrowdDelta *float64
}

// SplitScore partitions total (rounded to hundredths) into parts
// non-negative integer hundredths summing exactly to the total. Cut points
// are random; the parts are shuffled so scoring is not front-loaded.
func SplitScore(total float64, parts int, rng *Stream) []int {
	if parts < 1 {
		parts = 1
	}
	cents := int(math.Round(total * 100))
	if cents < 0 {
		cents = 0
	}
	cuts := make([]int, parts-1)
	for i := range cuts {
		cuts[i] = rng.IntRange(0, cents)
	}
	sort.Ints(cuts)
	out := make([]int, parts)
	prev := 0
	for i, c := range cuts {
		out[i] = c - prev
		prev = c
	}
	out[parts-1] = cents - prev
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// BuildRounds derives the round-by-round breakdown for both sides.
func BuildRounds(in NarrativeInput, count int) []Round {
	partsA := SplitScore(in.A.Score, count, NewStream(DeriveSeed(in.Seed, "rounds", in.A.ActorID)))
	partsB := SplitScore(in.B.Score, count, NewStream(DeriveSeed(in.Seed, "rounds", in.B.ActorID)))

	rounds := make([]Round, 0, len(partsA))
	cumA, cumB := 0, 0
	prevP := ExpectedWin(float64(in.A.Rating), float64(in.B.Rating))
	prevLeader := ""
	for i := range partsA {
		cumA += partsA[i]
		cumB += partsB[i]
		r := Round{
			Index: i + 1,
			PartA: float64(partsA[i]) / 100,
			PartB: float64(partsB[i]) / 100,
			CumA:  float64(cumA) / 100,
			CumB:  float64(cumB) / 100,
		}
		r.WinProbA = round2(ExpectedWin(
			float64(in.A.Rating)+roundProbScale*r.CumA,
			float64(in.B.Rating)+roundProbScale*r.CumB,
		))
		switch {
		case cumA > cumB:
			r.Leader = in.A.ActorID
		case cumB > cumA:
			r.Leader = in.B.ActorID
		}
		switch {
		case prevLeader != "" && r.Leader != "" && r.Leader != prevLeader:
			r.Label = "lead-change"
		case math.Abs(r.WinProbA-prevP) >= 0.2:
			r.Label = "momentum-swing"
		}
		if r.Leader != "" {
			prevLeader = r.Leader
		}
		prevP = r.WinProbA
		rounds = append(rounds, r)
	}
	return rounds
}

// Synthesize produces the ordered tag set, gap descriptor and rounds.
func Synthesize(in NarrativeInput) Narrative {
	winner, loser := in.A, in.B
	if in.WinnerID == in.B.ActorID {
		winner, loser = in.B, in.A
	}
	gap := math.Abs(in.A.Score - in.B.Score)
	rounds := BuildRounds(in, RoundCount)

	var tags []string
	if in.Forfeit {
		tags = append(tags, "forfeit")
	}
	if ExpectedWin(float64(winner.Rating), float64(loser.Rating)) < upsetThreshold {
		tags = append(tags, "upset")
	}
	switch {
	case gap == 0:
		tags = append(tags, "photo-finish")
	case gap < 0.75:
		tags = append(tags, "close-match")
	case gap >= 4:
		tags = append(tags, "blowout")
	}
	switch {
	case in.Stake >= 10:
		tags = append(tags, "high-stakes")
	case in.Stake >= 5:
		tags = append(tags, "mid-stakes")
	case in.Stake > 0:
		tags = append(tags, "low-stakes")
	}

	leadChanges, winnerLedAll := 0, true
	var highlights []string
	for _, r := range rounds {
		if r.Label == "lead-change" {
			leadChanges++
		}
		if r.Leader != winner.ActorID {
			winnerLedAll = false
		}
		if r.Label != "" {
			highlights = append(highlights, fmt.Sprintf("round %d: %s (%.0f%% for %s)", r.Index, r.Label, 100*r.WinProbA, in.A.ActorID))
		}
	}
	if leadChanges > 0 {
		tags = append(tags, "momentum-swing")
	} else if winnerLedAll {
		tags = append(tags, "wire-to-wire")
	}
	if len(rounds) >= 2 {
		pen := rounds[len(rounds)-2]
		if pen.Leader != "" && pen.Leader == loser.ActorID {
			tags = append(tags, "comeback")
		}
	}
	if winner.Streak >= 3 {
		tags = append(tags, "win-streak")
	}
	if loser.PriorStreak >= 3 {
		tags = append(tags, "streak-snapped")
	}
	if in.CrowdDelta != nil {
		switch {
		case *in.CrowdDelta >= 0.15:
			tags = append(tags, "crowd-favorite")
		case *in.CrowdDelta <= -0.15:
			tags = append(tags, "crowd-stunned")
		}
	}

	return Narrative{
		Tags:       tags,
		Gap:        fmt.Sprintf("+%.2f", gap),
		Rounds:     rounds,
		Highlights: highlights,
	}
}
