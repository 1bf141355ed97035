package arena

import "math"

const (
	DefaultRating = 1000
	DefaultK      = 32

	MaxDelta        = 200
	MaxRematchDelta = 300

	MaxRematchMultiplier = 1.5
)

// ExpectedWin is the Elo expected score of a against b.
func ExpectedWin(ratingA, ratingB float64) float64 {
	return 1 / (1 + math.Pow(10, (ratingB-ratingA)/400))
}

// ActualScore maps an outcome to the Elo actual score.
func ActualScore(o Outcome) float64 {
	switch o {
	case OutcomeWin:
		return 1
	case OutcomeDraw:
		return 0.5
	default:
		return 0
	}
}

// RatingDelta is round(k*(actual-expected)) clamped to ±MaxDelta.
func RatingDelta(k int, rating, opponent int, o Outcome) int {
	if k <= 0 {
		k = DefaultK
	}
	expected := ExpectedWin(float64(rating), float64(opponent))
	d := int(math.Round(float64(k) * (ActualScore(o) - expected)))
	return clampInt(d, -MaxDelta, MaxDelta)
}

// PairDeltas returns the winner and loser deltas. The loser's delta is the
// exact negation of the winner's so the pair always sums to zero.
func PairDeltas(k, winnerRating, loserRating int) (winner, loser int) {
	winner = RatingDelta(k, winnerRating, loserRating, OutcomeWin)
	return winner, -winner
}

// ApplyRematch scales an already clamped delta by the rematch multiplier and
// clamps it to the wider ±MaxRematchDelta band.
func ApplyRematch(delta int, multiplier float64) int {
	if multiplier < 1 {
		multiplier = 1
	}
	if multiplier > MaxRematchMultiplier {
		multiplier = MaxRematchMultiplier
	}
	d := int(math.Round(float64(delta) * multiplier))
	return clampInt(d, -MaxRematchDelta, MaxRematchDelta)
}

// Closeness is 1 for an even pairing and 0 for a certain result.
func Closeness(ratingA, ratingB int) float64 {
	e := ExpectedWin(float64(ratingA), float64(ratingB))
	return 1 - math.Abs(e-0.5)*2
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clampFloat(v, 0, 1)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
