package arena

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	rivalryLoserDelta  = 0.08
	rivalryWinnerDelta = 0.03
	rivalsMark         = 0.5
	nemesisMark        = 0.8

	scandalMinStake = 5
	scandalChance   = 0.25
)

type resolution struct {
	result       ResolveResult
	match        Match
	participants []Participant
	fresh        bool
	burned       int64
}

// ResolveMatch resolves one match. Without force a match whose live window
// has not elapsed returns ErrMatchNotDue. Resolving a resolved match is a
// successful no-op.
func (s *Service) ResolveMatch(ctx context.Context, id string, force bool) (ResolveResult, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return ResolveResult{}, fmt.Errorf("%w: %q", ErrMatchNotFound, id)
	}
	world, err := s.World(ctx, s.Today())
	if err != nil {
		return ResolveResult{}, err
	}
	return s.resolve(ctx, world, id, force)
}

func (s *Service) resolve(ctx context.Context, world WorldContext, id string, force bool) (ResolveResult, error) {
	var out resolution
	err := s.store.WithTx(ctx, func(tx Tx) error {
		r, err := s.resolveTx(ctx, tx, world, id, force)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return ResolveResult{}, err
	}
	if out.fresh {
		forfeit := false
		if info := out.match.Meta.Resolution; info != nil {
			forfeit = info.Settlement.Forfeit
		}
		s.rec.MatchResolved(out.match.Mode, forfeit)
		s.rec.CoinsBurned(out.burned)
		s.log.Info("arena match resolved",
			slog.String("match_id", out.match.ID),
			slog.String("season", out.match.SeasonCode),
			slog.String("day", out.match.Day),
			slog.Int("slot", out.match.Slot),
			slog.String("winner", out.result.WinnerID),
			slog.Bool("backfilled", out.result.Backfilled),
		)
		s.announce(ctx, out)
	}
	return out.result, nil
}

func (s *Service) resolveTx(ctx context.Context, tx Tx, world WorldContext, id string, force bool) (resolution, error) {
	m, err := tx.LockMatch(ctx, id)
	if err != nil {
		return resolution{}, err
	}
	if m.Status == StatusResolved {
		return s.repairTx(ctx, tx, world, m)
	}
	if !force && world.Now.Before(m.EndsAt) {
		return resolution{}, fmt.Errorf("%w: ends at %s", ErrMatchNotDue, m.EndsAt.Format("15:04:05"))
	}
	parts, err := tx.Participants(ctx, m.ID)
	if err != nil {
		return resolution{}, err
	}
	if len(parts) >= 2 {
		return s.backfillTx(ctx, tx, world, m, parts)
	}
	return s.computeTx(ctx, tx, world, m)
}

// repairTx handles a match already resolved under lock. The only write is a
// missing recap reference.
func (s *Service) repairTx(ctx context.Context, tx Tx, world WorldContext, m Match) (resolution, error) {
	res := ResolveResult{MatchID: m.ID, Status: m.Status, AlreadyResolved: true}
	info := m.Meta.Resolution
	if info == nil {
		return resolution{result: res, match: m}, nil
	}
	res.WinnerID = info.WinnerID
	if info.RecapPostID != "" {
		return resolution{result: res, match: m}, nil
	}
	r := s.publishRecap(ctx, tx, world, m, info)
	if r.OK {
		if err := tx.SaveMatch(ctx, m); err != nil {
			return resolution{}, err
		}
	}
	return resolution{result: res, match: m}, nil
}

// backfillTx finishes a match whose participant rows were written by an
// earlier run. Scores and ratings are taken as recorded.
func (s *Service) backfillTx(ctx context.Context, tx Tx, world WorldContext, m Match, parts []Participant) (resolution, error) {
	var win, lose *Participant
	for i := range parts {
		if parts[i].Outcome == OutcomeWin {
			win = &parts[i]
		} else {
			lose = &parts[i]
		}
	}
	if win == nil || lose == nil {
		return resolution{}, fmt.Errorf("match %s: participant rows have no winner and loser", m.ID)
	}

	info := m.Meta.Resolution
	if info == nil {
		info = &ResolutionInfo{
			WinnerID: win.ActorID,
			LoserID:  lose.ActorID,
			Settlement: Settlement{
				Stake:   lose.Wager,
				Fee:     lose.FeeBurned,
				Prize:   win.NetCoins,
				Forfeit: lose.Outcome == OutcomeForfeit,
			},
		}
	}
	info.Backfilled = true
	info.ResolvedAt = world.Now
	if info.Narrative == nil {
		a, b := sideFromParticipant(*win), sideFromParticipant(*lose)
		if cast, err := m.Cast(); err == nil {
			a, b = narrativeSides(cast, map[string]float64{win.ActorID: win.Score, lose.ActorID: lose.Score}, win.ActorID)
		}
		n := Synthesize(NarrativeInput{
			Seed:       m.Seed,
			A:          a,
			B:          b,
			WinnerID:   win.ActorID,
			Stake:      lose.Wager,
			Forfeit:    lose.Outcome == OutcomeForfeit,
			CrowdDelta: world.CrowdDelta,
		})
		info.Narrative = &n
	}
	if info.RecapPostID == "" {
		info.SideEffects = append(info.SideEffects, s.publishRecap(ctx, tx, world, m, info))
	}

	now := world.Now
	m.Status = StatusResolved
	m.ResolvedAt = &now
	m.Meta.Resolution = info
	if err := tx.SaveMatch(ctx, m); err != nil {
		return resolution{}, err
	}
	return resolution{
		result:       ResolveResult{MatchID: m.ID, Status: m.Status, Backfilled: true, WinnerID: win.ActorID},
		match:        m,
		participants: []Participant{*win, *lose},
		fresh:        true,
	}, nil
}

// sideFromParticipant is the fallback for a match whose cast metadata is
// unreadable.
func sideFromParticipant(p Participant) NarrativeSide {
	return NarrativeSide{
		ActorID: p.ActorID,
		Score:   p.Score,
		Rating:  p.RatingBefore,
	}
}

// narrativeSides builds both sides in cast order from the frozen snapshots.
func narrativeSides(cast []Snapshot, scores map[string]float64, winnerID string) (a, b NarrativeSide) {
	sides := make([]NarrativeSide, len(cast))
	for i, snap := range cast {
		outcome := OutcomeLose
		if snap.ActorID == winnerID {
			outcome = OutcomeWin
		}
		sides[i] = NarrativeSide{
			ActorID:     snap.ActorID,
			Score:       scores[snap.ActorID],
			Rating:      snap.Rating,
			PriorStreak: snap.Streak,
			Streak:      NextStreak(snap.Streak, outcome),
		}
	}
	return sides[0], sides[1]
}

func (s *Service) computeTx(ctx context.Context, tx Tx, world WorldContext, m Match) (resolution, error) {
	cast, err := m.Cast()
	if err != nil {
		return resolution{}, err
	}
	sim, err := SimulatorFor(m.Mode)
	if err != nil {
		return resolution{}, err
	}

	perfs := make([]PerformanceRecord, len(cast))
	for i, snap := range cast {
		p := sim.Simulate(SimInput{
			MatchSeed: m.Seed,
			Seed:      DeriveSeed(m.Seed, snap.ActorID),
			Rating:    snap.Rating,
			Stats:     snap.Stats,
			Role:      snap.Role,
			Hints:     snap.Hints,
		})
		perfs[i] = PerformanceRecord{
			ActorID:   snap.ActorID,
			Raw:       p.Score,
			Modified:  ModifiedScore(p.Score, snap.Condition, snap.Streak),
			Correct:   p.Correct,
			ElapsedMs: p.ElapsedMs,
			Artifact:  p.Artifact,
		}
	}
	w, l, tieBreak := decideWinner(m.Seed, cast, perfs)
	winner, loser := cast[w], cast[l]

	// Economics. The stake and fee move together in one savepoint so either
	// both land or neither does.
	plan := StakePlan{}
	if m.Meta.Creation != nil {
		plan = m.Meta.Creation.Stake
	}
	balance, err := tx.Balance(ctx, loser.ActorID)
	if err != nil {
		return resolution{}, fmt.Errorf("loser balance: %w", err)
	}
	st := Settle(plan, balance, world.PrizeBonusPct)
	var sides []SideResult
	if !st.Forfeit {
		r := s.sideCall(ctx, tx, m, "settlement", func(tx Tx) error {
			txID, err := tx.Transfer(ctx, TransferInput{
				From:      loser.ActorID,
				To:        winner.ActorID,
				Amount:    st.Prize,
				Type:      TransferPrize,
				Memo:      fmt.Sprintf("%s prize", m.Mode),
				Reference: m.ID,
			})
			if err != nil {
				return err
			}
			if st.Fee > 0 {
				if _, err := tx.Transfer(ctx, TransferInput{
					From:      loser.ActorID,
					Amount:    st.Fee,
					Type:      TransferFeeBurn,
					Memo:      fmt.Sprintf("%s fee", m.Mode),
					Reference: m.ID,
				}); err != nil {
					return err
				}
			}
			st.TransferID = txID
			return nil
		})
		sides = append(sides, r)
		if !r.OK {
			st = st.Void()
		} else if st.Bonus > 0 {
			rb := s.sideCall(ctx, tx, m, "bonus", func(tx Tx) error {
				txID, err := tx.Transfer(ctx, TransferInput{
					To:        winner.ActorID,
					Amount:    st.Bonus,
					Type:      TransferBonus,
					Memo:      fmt.Sprintf("%s bonus", m.Mode),
					Reference: m.ID,
				})
				if err != nil {
					return err
				}
				st.BonusTransferID = txID
				return nil
			})
			sides = append(sides, rb)
			if !rb.OK {
				st.Bonus, st.BonusTransferID = 0, ""
			}
		}
	}
	burned := st.Fee
	loserOutcome := OutcomeLose
	if st.Forfeit {
		loserOutcome = OutcomeForfeit
	}

	// Ratings.
	entryW, err := tx.Rating(ctx, m.SeasonCode, winner.ActorID)
	if err != nil {
		return resolution{}, err
	}
	entryL, err := tx.Rating(ctx, m.SeasonCode, loser.ActorID)
	if err != nil {
		return resolution{}, err
	}
	dW, dL := PairDeltas(s.settings.KFactor, entryW.Rating, entryL.Rating)
	rematchApplied := false
	var scheduledRematch string
	if m.Meta.Creation != nil {
		scheduledRematch = m.Meta.Creation.RematchID
	}
	req, consumed, err := tx.ConsumeRematch(ctx, winner.ActorID, loser.ActorID, scheduledRematch, world.Now)
	if err != nil {
		return resolution{}, fmt.Errorf("consume rematch: %w", err)
	}
	if consumed && req.RequesterID == winner.ActorID {
		dW = ApplyRematch(dW, s.settings.RematchMultiplier)
		dL = -dW
		rematchApplied = true
	}
	newW := entryW.Apply(OutcomeWin, dW, world.Now)
	newL := entryL.Apply(loserOutcome, dL, world.Now)
	if err := tx.UpsertRating(ctx, newW); err != nil {
		return resolution{}, err
	}
	if err := tx.UpsertRating(ctx, newL); err != nil {
		return resolution{}, err
	}

	byActor := map[string]Participant{
		winner.ActorID: {
			MatchID:      m.ID,
			ActorID:      winner.ActorID,
			Score:        perfs[w].Modified,
			Outcome:      OutcomeWin,
			Wager:        st.Stake,
			NetCoins:     st.Prize,
			RatingBefore: entryW.Rating,
			RatingAfter:  newW.Rating,
			RatingDelta:  dW,
			CreatedAt:    world.Now,
		},
		loser.ActorID: {
			MatchID:      m.ID,
			ActorID:      loser.ActorID,
			Score:        perfs[l].Modified,
			Outcome:      loserOutcome,
			Wager:        st.Stake,
			FeeBurned:    st.Fee,
			NetCoins:     -st.Stake,
			RatingBefore: entryL.Rating,
			RatingAfter:  newL.Rating,
			RatingDelta:  dL,
			CreatedAt:    world.Now,
		},
	}
	participants := make([]Participant, 0, 2)
	for _, snap := range cast {
		p := byActor[snap.ActorID]
		if _, err := tx.InsertParticipant(ctx, p); err != nil {
			return resolution{}, fmt.Errorf("insert participant %s: %w", p.ActorID, err)
		}
		participants = append(participants, p)
	}

	// Best-effort collaborators.
	sides = append(sides, s.sideCall(ctx, tx, m, "relationship", func(tx Tx) error {
		change, err := tx.AdjustMutual(ctx, loser.ActorID, winner.ActorID, rivalryLoserDelta, rivalryWinnerDelta)
		if err != nil {
			return err
		}
		pairs := [2][2]Snapshot{{loser, winner}, {winner, loser}}
		for i, pair := range pairs {
			label := rivalryMilestone(change.Before[i], change.After[i])
			if label == "" {
				continue
			}
			if err := tx.RecordEvent(ctx, WorldEvent{
				Day:      m.Day,
				Category: "rivalry",
				ActorID:  pair[0].ActorID,
				MatchID:  m.ID,
				Summary:  fmt.Sprintf("%s now counts %s as a %s", displayName(pair[0]), displayName(pair[1]), label),
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	if loser.Human && (s.settings.LossPenaltyCoins > 0 || s.settings.LossPenaltyXP > 0) {
		var penalty int64
		r := s.sideCall(ctx, tx, m, "loss_penalty", func(tx Tx) error {
			bal, err := tx.Balance(ctx, loser.ActorID)
			if err != nil {
				return err
			}
			penalty = LossPenalty(s.settings.LossPenaltyCoins, s.settings.LossPenaltyCap, bal)
			if penalty > 0 {
				if _, err := tx.Transfer(ctx, TransferInput{
					From:      loser.ActorID,
					Amount:    penalty,
					Type:      TransferPenalty,
					Memo:      "arena loss penalty",
					Reference: m.ID,
				}); err != nil {
					return err
				}
			}
			if s.settings.LossPenaltyXP > 0 {
				return tx.AwardXP(ctx, loser.ActorID, -s.settings.LossPenaltyXP, TransferPenalty)
			}
			return nil
		})
		sides = append(sides, r)
		if r.OK {
			burned += penalty
		}
	}

	if s.settings.XPWin > 0 || s.settings.XPLoss > 0 {
		sides = append(sides, s.sideCall(ctx, tx, m, "xp", func(tx Tx) error {
			if s.settings.XPWin > 0 {
				if err := tx.AwardXP(ctx, winner.ActorID, s.settings.XPWin, "arena_win"); err != nil {
					return err
				}
			}
			if s.settings.XPLoss > 0 {
				return tx.AwardXP(ctx, loser.ActorID, s.settings.XPLoss, "arena_loss")
			}
			return nil
		}))
	}

	upset := ExpectedWin(float64(winner.Rating), float64(loser.Rating)) < upsetThreshold
	if upset && st.Stake >= scandalMinStake && NewStream(DeriveSeed(m.Seed, "scandal")).Chance(scandalChance) {
		sides = append(sides, s.sideCall(ctx, tx, m, "scandal", func(tx Tx) error {
			return tx.RecordEvent(ctx, WorldEvent{
				Day:      m.Day,
				Category: "scandal",
				ActorID:  winner.ActorID,
				MatchID:  m.ID,
				Summary:  fmt.Sprintf("whispers of a fix after %s upset %s for %d coins", displayName(winner), displayName(loser), st.Stake),
			})
		}))
	}

	scores := map[string]float64{winner.ActorID: perfs[w].Modified, loser.ActorID: perfs[l].Modified}
	sideA, sideB := narrativeSides(cast, scores, winner.ActorID)
	narrative := Synthesize(NarrativeInput{
		Seed:       m.Seed,
		A:          sideA,
		B:          sideB,
		WinnerID:   winner.ActorID,
		Stake:      st.Stake,
		Forfeit:    st.Forfeit,
		CrowdDelta: world.CrowdDelta,
	})

	info := &ResolutionInfo{
		WinnerID:       winner.ActorID,
		LoserID:        loser.ActorID,
		TieBreak:       tieBreak,
		Performances:   perfs,
		Settlement:     st,
		RematchApplied: rematchApplied,
		Narrative:      &narrative,
		ResolvedAt:     world.Now,
	}
	info.SideEffects = append(sides, s.publishRecap(ctx, tx, world, m, info))

	now := world.Now
	m.Status = StatusResolved
	m.ResolvedAt = &now
	m.Meta.Resolution = info
	if err := tx.SaveMatch(ctx, m); err != nil {
		return resolution{}, err
	}
	return resolution{
		result:       ResolveResult{MatchID: m.ID, Status: m.Status, WinnerID: winner.ActorID},
		match:        m,
		participants: participants,
		fresh:        true,
		burned:       burned,
	}, nil
}

// decideWinner returns the winner and loser indexes into cast. An exact tie
// goes to the lower pre-match rating; equal ratings fall to a seeded coin.
func decideWinner(seed uint32, cast []Snapshot, perfs []PerformanceRecord) (winner, loser int, tieBreak string) {
	switch {
	case perfs[0].Modified > perfs[1].Modified:
		return 0, 1, ""
	case perfs[1].Modified > perfs[0].Modified:
		return 1, 0, ""
	case cast[0].Rating < cast[1].Rating:
		return 0, 1, "underdog"
	case cast[1].Rating < cast[0].Rating:
		return 1, 0, "underdog"
	}
	if NewStream(DeriveSeed(seed, "tiebreak")).Chance(0.5) {
		return 0, 1, "coin"
	}
	return 1, 0, "coin"
}

func rivalryMilestone(before, after float64) string {
	switch {
	case before < nemesisMark && after >= nemesisMark:
		return "nemesis"
	case before < rivalsMark && after >= rivalsMark:
		return "rival"
	}
	return ""
}

// publishRecap ensures the recap post and stores its id on info.
func (s *Service) publishRecap(ctx context.Context, tx Tx, world WorldContext, m Match, info *ResolutionInfo) SideResult {
	meta := recapMeta(m, info)
	return s.sideCall(ctx, tx, m, "recap", func(tx Tx) error {
		postID, err := tx.EnsureRecapPost(ctx, m.ID, world.AuthorID, meta)
		if err != nil {
			return err
		}
		info.RecapPostID = postID
		return nil
	})
}

func recapMeta(m Match, info *ResolutionInfo) RecapMeta {
	winner, loser := info.WinnerID, info.LoserID
	if cast, err := m.Cast(); err == nil {
		for _, snap := range cast {
			switch snap.ActorID {
			case info.WinnerID:
				winner = displayName(snap)
			case info.LoserID:
				loser = displayName(snap)
			}
		}
	}
	var body strings.Builder
	fmt.Fprintf(&body, "%s beat %s in %s on %s", winner, loser, m.Mode, m.Day)
	if n := info.Narrative; n != nil {
		fmt.Fprintf(&body, " (%s)", n.Gap)
		if len(n.Tags) > 0 {
			fmt.Fprintf(&body, ". Tags: %s", strings.Join(n.Tags, ", "))
		}
		for _, h := range n.Highlights {
			fmt.Fprintf(&body, "\n- %s", h)
		}
	}
	if st := info.Settlement; st.Forfeit {
		body.WriteString("\nThe loser could not cover the stake and forfeited.")
	} else if st.Stake > 0 {
		fmt.Fprintf(&body, "\nStake %d, prize %d, fee burned %d.", st.Stake, st.Prize, st.Fee)
	}
	return RecapMeta{
		Title: fmt.Sprintf("%s vs %s: %s", winner, loser, m.Mode),
		Slug:  slug.Make(fmt.Sprintf("%s vs %s %s %s", winner, loser, m.Mode, m.Day)),
		Body:  body.String(),
	}
}

// announce runs after commit. Every dispatch is best-effort.
func (s *Service) announce(ctx context.Context, r resolution) {
	info := r.match.Meta.Resolution
	if info == nil {
		return
	}
	cast, _ := r.match.Cast()
	human := make(map[string]bool, len(cast))
	for _, snap := range cast {
		human[snap.ActorID] = snap.Human
	}
	summary := recapMeta(r.match, info).Title
	for _, p := range r.participants {
		if !human[p.ActorID] {
			continue
		}
		s.dispatch(ctx, Notification{
			Kind:    "match_resolved",
			ActorID: p.ActorID,
			MatchID: r.match.ID,
			Day:     r.match.Day,
			Mode:    r.match.Mode,
			Outcome: string(p.Outcome),
			Message: fmt.Sprintf("%s (%+d rating, %+d coins)", summary, p.RatingDelta, p.NetCoins),
		})
	}
	s.dispatch(ctx, Notification{
		Kind:    "match_resolved",
		MatchID: r.match.ID,
		Day:     r.match.Day,
		Mode:    r.match.Mode,
		Message: summary,
	})
}
