package arena

import (
	"context"
	"log/slog"
	"time"
)

// Settings are the engine knobs. Unset counts, durations, K factor and mode
// weights fall back to DefaultSettings. Coin and XP amounts are taken as
// given: a zero BaseWager schedules stake-free matches, which settle as
// forfeits, and zero XP awards disable the progression step. Start from
// DefaultSettings and override fields rather than from a zero value.
type Settings struct {
	MatchesPerDay     int
	LiveWindow        time.Duration
	BaseWager         int64
	FeePct            int
	PrizeBonusPct     int
	RevengeWagerPct   int
	RematchMultiplier float64
	RematchTTL        time.Duration
	CooldownDays      int
	KFactor           int
	LossPenaltyCoins  int64
	LossPenaltyCap    int64
	LossPenaltyXP     int64
	XPWin             int64
	XPLoss            int64
	ModeWeights       map[Mode]float64
	DueBatch          int
}

func DefaultSettings() Settings {
	return Settings{
		MatchesPerDay:     DefaultMatchesPerDay,
		LiveWindow:        DefaultLiveWindow,
		BaseWager:         5,
		FeePct:            15,
		PrizeBonusPct:     0,
		RevengeWagerPct:   50,
		RematchMultiplier: 1.25,
		RematchTTL:        72 * time.Hour,
		CooldownDays:      2,
		KFactor:           DefaultK,
		LossPenaltyCoins:  2,
		LossPenaltyCap:    5,
		LossPenaltyXP:     5,
		XPWin:             20,
		XPLoss:            5,
		ModeWeights: map[Mode]float64{
			ModeMathRace:     3,
			ModeAuctionDuel:  2,
			ModePromptBattle: 2,
			ModeCourtTrial:   1,
			ModeMemoryChain:  2,
			ModeReflexDuel:   2,
		},
		DueBatch: 100,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MatchesPerDay <= 0 || s.MatchesPerDay > MaxMatchesPerDay {
		s.MatchesPerDay = d.MatchesPerDay
	}
	if s.LiveWindow <= 0 {
		s.LiveWindow = d.LiveWindow
	}
	if s.BaseWager < 0 {
		s.BaseWager = 0
	}
	if s.FeePct < 0 || s.FeePct > 100 {
		s.FeePct = d.FeePct
	}
	if s.PrizeBonusPct < 0 {
		s.PrizeBonusPct = 0
	}
	if s.RevengeWagerPct < 0 {
		s.RevengeWagerPct = 0
	}
	if s.RematchMultiplier < 1 {
		s.RematchMultiplier = 1
	}
	if s.RematchMultiplier > MaxRematchMultiplier {
		s.RematchMultiplier = MaxRematchMultiplier
	}
	if s.RematchTTL <= 0 {
		s.RematchTTL = d.RematchTTL
	}
	if s.CooldownDays < 0 {
		s.CooldownDays = 0
	}
	if s.KFactor <= 0 {
		s.KFactor = d.KFactor
	}
	if len(s.ModeWeights) == 0 {
		s.ModeWeights = d.ModeWeights
	}
	if s.DueBatch <= 0 {
		s.DueBatch = d.DueBatch
	}
	return s
}

// WorldContext is resolved once per tick and passed to every operation
// that needs world-scoped facts.
type WorldContext struct {
	Season        Season
	Day           string
	Now           time.Time
	AuthorID      string
	PrizeBonusPct int
	CrowdDelta    *float64
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithClassifier(c DirectiveClassifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.rec = r
		}
	}
}

func WithCrowdGauge(g CrowdGauge) Option {
	return func(s *Service) { s.crowd = g }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// World builds the WorldContext for day.
func (s *Service) World(ctx context.Context, day string) (WorldContext, error) {
	t, err := ParseDay(day)
	if err != nil {
		return WorldContext{}, err
	}
	day = t.Format(DayLayout)
	season, err := SeasonForDay(day)
	if err != nil {
		return WorldContext{}, err
	}
	w := WorldContext{
		Season:        season,
		Day:           day,
		Now:           s.now().UTC(),
		AuthorID:      WorldActorID,
		PrizeBonusPct: s.settings.PrizeBonusPct,
	}
	if s.crowd != nil {
		delta, err := s.crowd.CrowdDelta(ctx, w.Day)
		if err != nil {
			s.log.Warn("crowd gauge unavailable", slog.String("day", w.Day), slog.Any("err", err))
		} else {
			w.CrowdDelta = delta
		}
	}
	return w, nil
}
