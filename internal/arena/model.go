package arena

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DayLayout = "2006-01-02"

	DefaultMatchesPerDay = 6
	MaxMatchesPerDay     = 48
	DefaultLiveWindow    = 20 * time.Minute

	RoundCount = 5

	// WorldActorID authors world-scoped facts such as recap posts.
	WorldActorID = "world"
)

var (
	ErrInvalidDay        = errors.New("day must be formatted YYYY-MM-DD")
	ErrInvalidActor      = errors.New("actor id must be 1-64 chars of [a-zA-Z0-9_-]")
	ErrInvalidSlotCount  = errors.New("matches per day out of range")
	ErrInvalidSeason     = errors.New("season code must look like S2024W10")
	ErrSameActor         = errors.New("actors must be distinct")
	ErrActorNotFound     = errors.New("actor not found")
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchNotDue       = errors.New("match is still live")
	ErrUnknownMode       = errors.New("unknown mode")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTxConflict        = errors.New("transaction conflict, retry later")
	ErrStatusRegression  = errors.New("resolved match cannot return to live")
)

type Status string

const (
	StatusLive     Status = "live"
	StatusResolved Status = "resolved"
)

type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLose    Outcome = "lose"
	OutcomeForfeit Outcome = "forfeit"
	OutcomeDraw    Outcome = "draw"
)

var (
	actorIDRE    = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	seasonCodeRE = regexp.MustCompile(`^S\d{4}W\d{2}$`)
)

func ValidateSeasonCode(code string) error {
	if !seasonCodeRE.MatchString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidSeason, code)
	}
	return nil
}

func ValidateActorID(id string) error {
	if !actorIDRE.MatchString(strings.TrimSpace(id)) {
		return ErrInvalidActor
	}
	return nil
}

// ParseDay validates a calendar day in DayLayout.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(DayLayout, strings.TrimSpace(day))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	return t, nil
}

// SeasonForDay maps a day to its ISO-week season (S2024W10 for 2024-03-04).
func SeasonForDay(day string) (Season, error) {
	t, err := ParseDay(day)
	if err != nil {
		return Season{}, err
	}
	year, week := t.ISOWeek()
	offset := (int(t.Weekday()) + 6) % 7
	start := t.AddDate(0, 0, -offset)
	return Season{
		Code:     fmt.Sprintf("S%04dW%02d", year, week),
		StartDay: start.Format(DayLayout),
		EndDay:   start.AddDate(0, 0, 6).Format(DayLayout),
	}, nil
}

// ShiftDay returns day moved by n calendar days. day must already be valid.
func ShiftDay(day string, n int) string {
	t, err := ParseDay(day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, n).Format(DayLayout)
}
