package arena

import "time"

func NewRatingEntry(season, actorID string) RatingEntry {
	return RatingEntry{SeasonCode: season, ActorID: actorID, Rating: DefaultRating}
}

// NextStreak continues a streak while the outcome sign matches, flips to ±1
// on a sign change and resets to 0 on a draw. Forfeits count as losses.
func NextStreak(prev int, o Outcome) int {
	switch o {
	case OutcomeWin:
		if prev > 0 {
			return prev + 1
		}
		return 1
	case OutcomeLose, OutcomeForfeit:
		if prev < 0 {
			return prev - 1
		}
		return -1
	default:
		return 0
	}
}

// Apply folds one resolved outcome into the season aggregate.
func (e RatingEntry) Apply(o Outcome, delta int, now time.Time) RatingEntry {
	e.Rating += delta
	switch o {
	case OutcomeWin:
		e.Wins++
	case OutcomeLose, OutcomeForfeit:
		e.Losses++
	}
	e.Streak = NextStreak(e.Streak, o)
	e.UpdatedAt = now
	return e
}

// StreakMultiplier nudges a performance by 2% per streak step, capped at 5.
func StreakMultiplier(streak int) float64 {
	return 1 + 0.02*float64(clampInt(streak, -5, 5))
}

// ConditionMultiplier maps a 0..100 condition score onto 0.85..1.15.
func ConditionMultiplier(condition float64) float64 {
	return 0.85 + 0.3*pct(condition)
}

// ModifiedScore applies the condition multiplier first, then the streak
// multiplier, and clamps to the 0..10 scale.
func ModifiedScore(raw, condition float64, streak int) float64 {
	return round2(clampFloat(raw*ConditionMultiplier(condition)*StreakMultiplier(streak), 0, 10))
}
