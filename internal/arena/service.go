package arena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	store      Store
	log        *slog.Logger
	settings   Settings
	classifier DirectiveClassifier
	notifier   Notifier
	rec        Recorder
	crowd      CrowdGauge
	now        func() time.Time
}

func NewService(store Store, logger *slog.Logger, settings Settings, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:      store,
		log:        logger,
		settings:   settings.withDefaults(),
		classifier: NewRegexClassifier(),
		notifier:   nopNotifier{},
		rec:        nopRecorder{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Settings() Settings { return s.settings }

// Today is the current day in DayLayout.
func (s *Service) Today() string {
	return s.now().UTC().Format(DayLayout)
}

// TickDay is the scheduling and resolution entry point. It resolves live
// matches whose window has elapsed, fills up to matchesPerDay slots for day
// and, when resolveImmediately is set, force-resolves what it created.
// A failing slot is logged and counted without aborting the tick.
func (s *Service) TickDay(ctx context.Context, day string, matchesPerDay int, resolveImmediately bool) (TickResult, error) {
	started := time.Now()
	if matchesPerDay == 0 {
		matchesPerDay = s.settings.MatchesPerDay
	}
	if matchesPerDay < 0 || matchesPerDay > MaxMatchesPerDay {
		return TickResult{}, fmt.Errorf("%w: %d", ErrInvalidSlotCount, matchesPerDay)
	}
	world, err := s.World(ctx, day)
	if err != nil {
		return TickResult{}, err
	}

	res := TickResult{Day: world.Day, Season: world.Season.Code, MatchIDs: []string{}}
	if err := s.store.WithTx(ctx, func(tx Tx) error {
		return tx.EnsureSeason(ctx, world.Season)
	}); err != nil {
		return res, fmt.Errorf("ensure season: %w", err)
	}

	due, err := s.dueMatchIDs(ctx, world.Now)
	if err != nil {
		return res, err
	}
	for _, id := range due {
		r, err := s.resolve(ctx, world, id, false)
		if err != nil {
			if errors.Is(err, ErrMatchNotDue) {
				continue
			}
			res.Failed++
			s.log.Error("arena resolve failed", slog.String("match_id", id), slog.Any("err", err))
			continue
		}
		if !r.AlreadyResolved {
			res.ResolvedLive++
		}
	}

	var created []Match
	for slot := 1; slot <= matchesPerDay; slot++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		m, ok, err := s.scheduleSlot(ctx, world, slot)
		if err != nil {
			res.Failed++
			s.rec.SlotFailed()
			s.log.Error("arena slot failed",
				slog.String("season", world.Season.Code),
				slog.String("day", world.Day),
				slog.Int("slot", slot),
				slog.Any("err", err),
			)
			continue
		}
		if !ok {
			res.Skipped++
			continue
		}
		res.Created++
		res.MatchIDs = append(res.MatchIDs, m.ID)
		created = append(created, m)
		s.rec.MatchCreated(m.Mode)
	}
	for _, m := range created {
		s.dispatch(ctx, Notification{
			Kind:    "match_created",
			MatchID: m.ID,
			Day:     m.Day,
			Mode:    m.Mode,
			Message: fmt.Sprintf("slot %d: %s", m.Slot, castLabel(m)),
		})
	}

	if resolveImmediately {
		for _, m := range created {
			r, err := s.resolve(ctx, world, m.ID, true)
			if err != nil {
				res.Failed++
				s.log.Error("arena resolve failed", slog.String("match_id", m.ID), slog.Any("err", err))
				continue
			}
			if !r.AlreadyResolved {
				res.ResolvedNow++
			}
		}
	}

	s.rec.TickDuration(time.Since(started))
	s.log.Info("arena tick complete",
		slog.String("season", res.Season),
		slog.String("day", res.Day),
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
		slog.Int("resolved_live", res.ResolvedLive),
		slog.Int("resolved_now", res.ResolvedNow),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Service) dueMatchIDs(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.store.WithTx(ctx, func(tx Tx) error {
		due, err := tx.DueMatches(ctx, now, s.settings.DueBatch)
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, m := range due {
			ids = append(ids, m.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list due matches: %w", err)
	}
	return ids, nil
}

// scheduleSlot plans and inserts one slot in its own transaction. An
// existing match for the slot, of any status, makes it a no-op.
func (s *Service) scheduleSlot(ctx context.Context, world WorldContext, slot int) (Match, bool, error) {
	var (
		out     Match
		created bool
	)
	err := s.store.WithTx(ctx, func(tx Tx) error {
		created = false
		taken, err := tx.SlotTaken(ctx, world.Season.Code, world.Day, slot)
		if err != nil || taken {
			return err
		}
		in := PlanInput{Season: world.Season, Day: world.Day, Slot: slot, Now: world.Now}
		if in.Actors, err = tx.EligibleActors(ctx); err != nil {
			return err
		}
		if in.Ratings, err = tx.SeasonRatings(ctx, world.Season.Code); err != nil {
			return err
		}
		if in.Relations, err = tx.Relationships(ctx); err != nil {
			return err
		}
		if in.Rematches, err = tx.ActiveRematches(ctx, world.Now); err != nil {
			return err
		}
		if in.Today, err = tx.MatchesBetween(ctx, world.Day, world.Day); err != nil {
			return err
		}
		if s.settings.CooldownDays > 0 {
			from, to := ShiftDay(world.Day, -s.settings.CooldownDays), ShiftDay(world.Day, -1)
			if in.Recent, err = tx.MatchesBetween(ctx, from, to); err != nil {
				return err
			}
		}

		m, ok := PlanSlot(in, s.settings, s.classifier)
		if !ok {
			return nil
		}
		inserted, err := tx.InsertMatchIfAbsent(ctx, m)
		if err != nil {
			return err
		}
		out, created = m, inserted
		return nil
	})
	if err != nil {
		return Match{}, false, err
	}
	return out, created, nil
}

func (s *Service) RequestRematch(ctx context.Context, requesterID, targetID string) (RematchRequest, bool, error) {
	requesterID, targetID = strings.TrimSpace(requesterID), strings.TrimSpace(targetID)
	if err := ValidateActorID(requesterID); err != nil {
		return RematchRequest{}, false, err
	}
	if err := ValidateActorID(targetID); err != nil {
		return RematchRequest{}, false, err
	}
	if requesterID == targetID {
		return RematchRequest{}, false, ErrSameActor
	}

	now := s.now().UTC()
	var (
		out     RematchRequest
		created bool
	)
	err := s.store.WithTx(ctx, func(tx Tx) error {
		for _, id := range []string{requesterID, targetID} {
			if _, err := tx.Actor(ctx, id); err != nil {
				return err
			}
		}
		var err error
		out, created, err = tx.InsertRematch(ctx, RematchRequest{
			ID:          uuid.NewString(),
			RequesterID: requesterID,
			TargetID:    targetID,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.settings.RematchTTL),
		}, now)
		return err
	})
	if err != nil {
		return RematchRequest{}, false, err
	}
	return out, created, nil
}

func (s *Service) Matches(ctx context.Context, day string) ([]Match, error) {
	t, err := ParseDay(day)
	if err != nil {
		return nil, err
	}
	day = t.Format(DayLayout)
	var out []Match
	err = s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.MatchesBetween(ctx, day, day)
		return err
	})
	if out == nil {
		out = []Match{}
	}
	return out, err
}

func (s *Service) MatchDetail(ctx context.Context, id string) (MatchDetail, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return MatchDetail{}, fmt.Errorf("%w: %q", ErrMatchNotFound, id)
	}
	var out MatchDetail
	err := s.store.WithTx(ctx, func(tx Tx) error {
		m, err := tx.GetMatch(ctx, id)
		if err != nil {
			return err
		}
		ps, err := tx.Participants(ctx, id)
		if err != nil {
			return err
		}
		out = MatchDetail{Match: m, Participants: ps}
		return nil
	})
	if out.Participants == nil {
		out.Participants = []Participant{}
	}
	return out, err
}

// Leaderboard ranks a season by rating, then wins. An empty season means
// the current one.
func (s *Service) Leaderboard(ctx context.Context, season string, limit int) ([]LeaderboardRow, error) {
	season, err := s.seasonOrCurrent(season)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []RatingEntry
	err = s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		entries, err = tx.SeasonRatings(ctx, season)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Rating != entries[j].Rating {
			return entries[i].Rating > entries[j].Rating
		}
		if entries[i].Wins != entries[j].Wins {
			return entries[i].Wins > entries[j].Wins
		}
		return entries[i].ActorID < entries[j].ActorID
	})

	out := make([]LeaderboardRow, 0, limit)
	var rank int64 = 1
	for _, e := range entries {
		if len(out) == limit {
			break
		}
		out = append(out, LeaderboardRow{Rank: rank, RatingEntry: e})
		rank++
	}
	return out, nil
}

func (s *Service) History(ctx context.Context, actorID string, limit int) ([]HistoryRow, error) {
	actorID = strings.TrimSpace(actorID)
	if err := ValidateActorID(actorID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var out []HistoryRow
	err := s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Actor(ctx, actorID); err != nil {
			return err
		}
		var err error
		out, err = tx.History(ctx, actorID, limit)
		return err
	})
	if out == nil {
		out = []HistoryRow{}
	}
	return out, err
}

func (s *Service) Stats(ctx context.Context, actorID, season string) (ActorStats, error) {
	actorID = strings.TrimSpace(actorID)
	if err := ValidateActorID(actorID); err != nil {
		return ActorStats{}, err
	}
	season, err := s.seasonOrCurrent(season)
	if err != nil {
		return ActorStats{}, err
	}
	out := ActorStats{ActorID: actorID, Season: season}
	err = s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Actor(ctx, actorID); err != nil {
			return err
		}
		entry, err := tx.Rating(ctx, season, actorID)
		if err != nil {
			return err
		}
		ps, err := tx.SeasonParticipation(ctx, season, actorID)
		if err != nil {
			return err
		}
		out.Entry = entry
		out.Matches, out.Forfeits, out.NetCoins, out.FeeBurned = 0, 0, 0, 0
		for _, p := range ps {
			out.Matches++
			if p.Outcome == OutcomeForfeit {
				out.Forfeits++
			}
			out.NetCoins += p.NetCoins
			out.FeeBurned += p.FeeBurned
		}
		return nil
	})
	return out, err
}

func (s *Service) seasonOrCurrent(season string) (string, error) {
	season = strings.ToUpper(strings.TrimSpace(season))
	if season == "" {
		cur, err := SeasonForDay(s.Today())
		if err != nil {
			return "", err
		}
		return cur.Code, nil
	}
	if err := ValidateSeasonCode(season); err != nil {
		return "", err
	}
	return season, nil
}

func (s *Service) dispatch(ctx context.Context, n Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("arena notification dropped",
			slog.String("kind", n.Kind),
			slog.String("match_id", n.MatchID),
			slog.String("actor_id", n.ActorID),
			slog.Any("err", err),
		)
	}
}

func castLabel(m Match) string {
	cast, err := m.Cast()
	if err != nil {
		return m.ID
	}
	return displayName(cast[0]) + " vs " + displayName(cast[1])
}

func displayName(s Snapshot) string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return s.ActorID
}
