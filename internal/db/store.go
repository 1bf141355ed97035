package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"arena/internal/arena"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the PostgreSQL implementation of arena.Store.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, log: logger}
}

// WithTx runs fn in a serializable transaction, retrying on serialization
// failures and deadlocks with a doubling backoff.
func (s *Store) WithTx(ctx context.Context, fn func(tx arena.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(&pgTx{tx: tx})
		})
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return arena.ErrTxConflict
		}
		s.log.Debug("retrying transaction", "attempt", attempt+1, "delay", retryDelay, "err", err)
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return arena.ErrTxConflict
}

// SeedActors upserts actors and opens a wallet for each. Existing balances
// are left alone.
func (s *Store) SeedActors(ctx context.Context, actors []arena.Actor, balance int64) error {
	return s.WithTx(ctx, func(atx arena.Tx) error {
		tx := atx.(*pgTx).tx
		for _, a := range actors {
			prefs := make([]string, 0, len(a.Preferences))
			for _, p := range a.Preferences {
				prefs = append(prefs, string(p))
			}
			directives := a.Directives
			if directives == nil {
				directives = []string{}
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO arena.actors (id, name, role, condition, energy, mood, stress, curiosity, human, preferences, directives, active)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					role = EXCLUDED.role,
					condition = EXCLUDED.condition,
					energy = EXCLUDED.energy,
					mood = EXCLUDED.mood,
					stress = EXCLUDED.stress,
					curiosity = EXCLUDED.curiosity,
					human = EXCLUDED.human,
					preferences = EXCLUDED.preferences,
					directives = EXCLUDED.directives,
					active = EXCLUDED.active,
					updated_at = now()
			`, a.ID, a.Name, a.Role, a.Condition, a.Stats.Energy, a.Stats.Mood, a.Stats.Stress, a.Stats.Curiosity,
				a.Human, prefs, directives, a.Active); err != nil {
				return fmt.Errorf("seed actor %s: %w", a.ID, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO arena.wallets (actor_id, balance) VALUES ($1, $2)
				ON CONFLICT (actor_id) DO NOTHING
			`, a.ID, balance); err != nil {
				return fmt.Errorf("seed wallet %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type pgTx struct {
	tx pgx.Tx
}

// Savepoint maps to a pgx nested transaction, which issues SAVEPOINT and
// ROLLBACK TO SAVEPOINT.
func (t *pgTx) Savepoint(ctx context.Context, fn func(tx arena.Tx) error) error {
	return pgx.BeginFunc(ctx, t.tx, func(sp pgx.Tx) error {
		return fn(&pgTx{tx: sp})
	})
}

func (t *pgTx) Balance(ctx context.Context, actorID string) (int64, error) {
	var balance int64
	err := t.tx.QueryRow(ctx, `SELECT balance FROM arena.wallets WHERE actor_id = $1`, actorID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (t *pgTx) Transfer(ctx context.Context, in arena.TransferInput) (string, error) {
	if in.Amount <= 0 {
		return "", fmt.Errorf("transfer amount must be positive")
	}
	if in.From != "" {
		tag, err := t.tx.Exec(ctx, `
			UPDATE arena.wallets SET balance = balance - $2, updated_at = now()
			WHERE actor_id = $1 AND balance >= $2
		`, in.From, in.Amount)
		if err != nil {
			return "", err
		}
		if tag.RowsAffected() == 0 {
			return "", arena.ErrInsufficientFunds
		}
	}
	if in.To != "" {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO arena.wallets (actor_id, balance) VALUES ($1, $2)
			ON CONFLICT (actor_id) DO UPDATE SET balance = arena.wallets.balance + EXCLUDED.balance, updated_at = now()
		`, in.To, in.Amount); err != nil {
			return "", err
		}
	}
	return appendLedgerEntries(ctx, t.tx, in)
}

// appendLedgerEntries writes the double entry for one transfer. Mints debit
// the mint account and burns credit the burn account.
func appendLedgerEntries(ctx context.Context, tx pgx.Tx, in arena.TransferInput) (string, error) {
	txID := uuid.NewString()
	fromAccount, toAccount := "wallet", "wallet"
	var fromActor, toActor any = in.From, in.To
	if in.From == "" {
		fromAccount, fromActor = "mint", nil
	}
	if in.To == "" {
		toAccount, toActor = "burn", nil
	}
	meta, _ := json.Marshal(map[string]any{"type": in.Type, "from": in.From, "to": in.To})
	_, err := tx.Exec(ctx, `
		INSERT INTO arena.ledger_entries (tx_group_id, actor_id, account, delta, type, memo, reference, metadata)
		VALUES
		($1, $2, $3, $4, $8, $9, $10, $11::jsonb),
		($1, $5, $6, $7, $8, $9, $10, $11::jsonb)
	`, txID, fromActor, fromAccount, -in.Amount, toActor, toAccount, in.Amount, in.Type, in.Memo, in.Reference, string(meta))
	if err != nil {
		return "", err
	}
	return txID, nil
}

func (t *pgTx) Relationships(ctx context.Context) ([]arena.Relationship, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT actor_id, target_id, rivalry, jealousy
		FROM arena.relationships
		ORDER BY actor_id, target_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arena.Relationship
	for rows.Next() {
		var r arena.Relationship
		if err := rows.Scan(&r.ActorID, &r.TargetID, &r.Rivalry, &r.Jealousy); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) AdjustMutual(ctx context.Context, aID, bID string, deltaA, deltaB float64) (arena.RelationshipChange, error) {
	var change arena.RelationshipChange
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO arena.relationships (actor_id, target_id) VALUES ($1, $2), ($2, $1)
		ON CONFLICT DO NOTHING
	`, aID, bID); err != nil {
		return change, err
	}
	var err error
	change.Before[0], change.After[0], err = bumpRivalry(ctx, t.tx, aID, bID, deltaA)
	if err != nil {
		return change, err
	}
	change.Before[1], change.After[1], err = bumpRivalry(ctx, t.tx, bID, aID, deltaB)
	return change, err
}

func bumpRivalry(ctx context.Context, tx pgx.Tx, actorID, targetID string, delta float64) (before, after float64, err error) {
	err = tx.QueryRow(ctx, `
		WITH prev AS (
			SELECT rivalry FROM arena.relationships
			WHERE actor_id = $1 AND target_id = $2
			FOR UPDATE
		)
		UPDATE arena.relationships r
		SET rivalry = LEAST(1, GREATEST(0, r.rivalry + $3)), updated_at = now()
		FROM prev
		WHERE r.actor_id = $1 AND r.target_id = $2
		RETURNING prev.rivalry, r.rivalry
	`, actorID, targetID, delta).Scan(&before, &after)
	return before, after, err
}

func (t *pgTx) EnsureRecapPost(ctx context.Context, matchID, authorID string, meta arena.RecapMeta) (string, error) {
	var id string
	err := t.tx.QueryRow(ctx, `
		INSERT INTO arena.recap_posts (id, match_id, author_id, title, slug, body)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id) DO NOTHING
		RETURNING id::text
	`, uuid.NewString(), matchID, authorID, meta.Title, meta.Slug, meta.Body).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = t.tx.QueryRow(ctx, `SELECT id::text FROM arena.recap_posts WHERE match_id = $1`, matchID).Scan(&id)
	}
	return id, err
}

func (t *pgTx) AwardXP(ctx context.Context, actorID string, amount int64, _ string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO arena.xp (actor_id, xp) VALUES ($1, GREATEST(0, $2::bigint))
		ON CONFLICT (actor_id) DO UPDATE SET xp = GREATEST(0, arena.xp.xp + $2::bigint), updated_at = now()
	`, actorID, amount)
	return err
}

func (t *pgTx) EnsureSeason(ctx context.Context, s arena.Season) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO arena.seasons (code, start_day, end_day) VALUES ($1, $2, $3)
		ON CONFLICT (code) DO NOTHING
	`, s.Code, s.StartDay, s.EndDay)
	return err
}

const actorColumns = `id, name, role, condition, energy, mood, stress, curiosity, human, preferences, directives, active`

func scanActor(row pgx.Row) (arena.Actor, error) {
	var a arena.Actor
	var prefs []string
	err := row.Scan(&a.ID, &a.Name, &a.Role, &a.Condition,
		&a.Stats.Energy, &a.Stats.Mood, &a.Stats.Stress, &a.Stats.Curiosity,
		&a.Human, &prefs, &a.Directives, &a.Active)
	if err != nil {
		return a, err
	}
	for _, p := range prefs {
		if m, err := arena.ParseMode(p); err == nil {
			a.Preferences = append(a.Preferences, m)
		}
	}
	return a, nil
}

func (t *pgTx) Actor(ctx context.Context, id string) (arena.Actor, error) {
	a, err := scanActor(t.tx.QueryRow(ctx, `SELECT `+actorColumns+` FROM arena.actors WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return a, arena.ErrActorNotFound
	}
	return a, err
}

func (t *pgTx) EligibleActors(ctx context.Context) ([]arena.Actor, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+actorColumns+` FROM arena.actors WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arena.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) RecordEvent(ctx context.Context, e arena.WorldEvent) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO arena.world_events (day, category, actor_id, match_id, summary)
		VALUES ($1, $2, $3, $4, $5)
	`, e.Day, e.Category, nullable(e.ActorID), nullable(e.MatchID), e.Summary)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (t *pgTx) Rating(ctx context.Context, season, actorID string) (arena.RatingEntry, error) {
	e := arena.RatingEntry{SeasonCode: season, ActorID: actorID}
	err := t.tx.QueryRow(ctx, `
		SELECT rating, wins, losses, streak, updated_at
		FROM arena.ratings WHERE season_code = $1 AND actor_id = $2
	`, season, actorID).Scan(&e.Rating, &e.Wins, &e.Losses, &e.Streak, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return arena.NewRatingEntry(season, actorID), nil
	}
	return e, err
}

func (t *pgTx) SeasonRatings(ctx context.Context, season string) ([]arena.RatingEntry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT season_code, actor_id, rating, wins, losses, streak, updated_at
		FROM arena.ratings WHERE season_code = $1
		ORDER BY actor_id
	`, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arena.RatingEntry
	for rows.Next() {
		var e arena.RatingEntry
		if err := rows.Scan(&e.SeasonCode, &e.ActorID, &e.Rating, &e.Wins, &e.Losses, &e.Streak, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) UpsertRating(ctx context.Context, e arena.RatingEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO arena.ratings (season_code, actor_id, rating, wins, losses, streak, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (season_code, actor_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			streak = EXCLUDED.streak,
			updated_at = EXCLUDED.updated_at
	`, e.SeasonCode, e.ActorID, e.Rating, e.Wins, e.Losses, e.Streak, e.UpdatedAt)
	return err
}

const rematchColumns = `id::text, requester_id, target_id, created_at, expires_at, consumed_at`

func scanRematch(row pgx.Row) (arena.RematchRequest, error) {
	var r arena.RematchRequest
	err := row.Scan(&r.ID, &r.RequesterID, &r.TargetID, &r.CreatedAt, &r.ExpiresAt, &r.ConsumedAt)
	return r, err
}

func (t *pgTx) ActiveRematches(ctx context.Context, now time.Time) ([]arena.RematchRequest, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+rematchColumns+` FROM arena.rematch_requests
		WHERE consumed_at IS NULL AND expires_at > $1
		ORDER BY created_at, id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arena.RematchRequest
	for rows.Next() {
		r, err := scanRematch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertRematch(ctx context.Context, r arena.RematchRequest, now time.Time) (arena.RematchRequest, bool, error) {
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, r.RequesterID+">"+r.TargetID); err != nil {
		return r, false, err
	}
	existing, err := scanRematch(t.tx.QueryRow(ctx, `
		SELECT `+rematchColumns+` FROM arena.rematch_requests
		WHERE requester_id = $1 AND target_id = $2 AND consumed_at IS NULL AND expires_at > $3
		ORDER BY created_at
		LIMIT 1
	`, r.RequesterID, r.TargetID, now))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return r, false, err
	}
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO arena.rematch_requests (id, requester_id, target_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, r.RequesterID, r.TargetID, r.CreatedAt, r.ExpiresAt); err != nil {
		return r, false, err
	}
	return r, true, nil
}

func (t *pgTx) ConsumeRematch(ctx context.Context, winnerID, loserID, preferID string, now time.Time) (arena.RematchRequest, bool, error) {
	r, err := scanRematch(t.tx.QueryRow(ctx, `
		UPDATE arena.rematch_requests SET consumed_at = $3
		WHERE id = (
			SELECT id FROM arena.rematch_requests
			WHERE ((requester_id = $1 AND target_id = $2) OR (requester_id = $2 AND target_id = $1))
				AND consumed_at IS NULL AND expires_at > $3
			ORDER BY (id::text = $4) DESC, (requester_id = $1) DESC, created_at
			LIMIT 1
			FOR UPDATE
		)
		RETURNING `+rematchColumns, winnerID, loserID, now, preferID))
	if errors.Is(err, pgx.ErrNoRows) {
		return arena.RematchRequest{}, false, nil
	}
	if err != nil {
		return r, false, err
	}
	return r, true, nil
}

func (t *pgTx) SlotTaken(ctx context.Context, season, day string, slot int) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM arena.matches WHERE season_code = $1 AND day = $2 AND slot = $3)
	`, season, day, slot).Scan(&taken)
	return taken, err
}

func (t *pgTx) InsertMatchIfAbsent(ctx context.Context, m arena.Match) (bool, error) {
	meta, err := arena.EncodeMeta(m.Meta)
	if err != nil {
		return false, err
	}
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO arena.matches (id, season_code, day, slot, mode, status, seed, ends_at, created_at, resolved_at, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		ON CONFLICT DO NOTHING
	`, m.ID, m.SeasonCode, m.Day, m.Slot, string(m.Mode), string(m.Status), int64(m.Seed),
		m.EndsAt, m.CreatedAt, m.ResolvedAt, string(meta))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const matchColumns = `id::text, season_code, day, slot, mode, status, seed, ends_at, created_at, resolved_at, meta`

func scanMatch(row pgx.Row) (arena.Match, error) {
	var m arena.Match
	var mode, status string
	var seed int64
	var meta []byte
	if err := row.Scan(&m.ID, &m.SeasonCode, &m.Day, &m.Slot, &mode, &status, &seed,
		&m.EndsAt, &m.CreatedAt, &m.ResolvedAt, &meta); err != nil {
		return m, err
	}
	m.Mode, m.Status, m.Seed = arena.Mode(mode), arena.Status(status), uint32(seed)
	decoded, err := arena.DecodeMeta(meta)
	if err != nil {
		return m, err
	}
	m.Meta = decoded
	return m, nil
}

func (t *pgTx) queryMatches(ctx context.Context, sql string, args ...any) ([]arena.Match, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arena.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *pgTx) MatchesBetween(ctx context.Context, fromDay, toDay string) ([]arena.Match, error) {
	return t.queryMatches(ctx, `
		SELECT `+matchColumns+` FROM arena.matches
		WHERE day BETWEEN $1 AND $2
		ORDER BY day, slot
	`, fromDay, toDay)
}

func (t *pgTx) DueMatches(ctx context.Context, now time.Time, limit int) ([]arena.Match, error) {
	return t.queryMatches(ctx, `
		SELECT `+matchColumns+` FROM arena.matches
		WHERE status = 'live' AND ends_at <= $1
		ORDER BY ends_at, id
		LIMIT $2
	`, now, limit)
}

func (t *pgTx) GetMatch(ctx context.Context, id string) (arena.Match, error) {
	m, err := scanMatch(t.tx.QueryRow(ctx, `SELECT `+matchColumns+` FROM arena.matches WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return m, arena.ErrMatchNotFound
	}
	return m, err
}

func (t *pgTx) LockMatch(ctx context.Context, id string) (arena.Match, error) {
	m, err := scanMatch(t.tx.QueryRow(ctx, `SELECT `+matchColumns+` FROM arena.matches WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return m, arena.ErrMatchNotFound
	}
	return m, err
}

func (t *pgTx) SaveMatch(ctx context.Context, m arena.Match) error {
	meta, err := arena.EncodeMeta(m.Meta)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE arena.matches
		SET status = $2, resolved_at = $3, meta = $4::jsonb
		WHERE id = $1 AND (status = 'live' OR $2 = 'resolved')
	`, m.ID, string(m.Status), m.ResolvedAt, string(meta))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM arena.matches WHERE id = $1)`, m.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return arena.ErrMatchNotFound
	}
	return arena.ErrStatusRegression
}

const participantColumns = `p.match_id::text, p.actor_id, p.score, p.outcome, p.wager, p.fee_burned, p.net_coins,
	p.rating_before, p.rating_after, p.rating_delta, p.created_at`

func scanParticipant(dest *arena.Participant, extra ...any) []any {
	return append([]any{&dest.MatchID, &dest.ActorID, &dest.Score, (*string)(&dest.Outcome),
		&dest.Wager, &dest.FeeBurned, &dest.NetCoins,
		&dest.RatingBefore, &dest.RatingAfter, &dest.RatingDelta, &dest.CreatedAt}, extra...)
}

func (t *pgTx) Participants(ctx context.Context, matchID string) ([]arena.Participant, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+participantColumns+` FROM arena.participants p
		WHERE p.match_id = $1
		ORDER BY p.created_at, p.actor_id
	`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arena.Participant
	for rows.Next() {
		var p arena.Participant
		if err := rows.Scan(scanParticipant(&p)...); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertParticipant(ctx context.Context, p arena.Participant) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO arena.participants
			(match_id, actor_id, score, outcome, wager, fee_burned, net_coins, rating_before, rating_after, rating_delta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (match_id, actor_id) DO NOTHING
	`, p.MatchID, p.ActorID, p.Score, string(p.Outcome), p.Wager, p.FeeBurned, p.NetCoins,
		p.RatingBefore, p.RatingAfter, p.RatingDelta, p.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) History(ctx context.Context, actorID string, limit int) ([]arena.HistoryRow, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := t.tx.Query(ctx, `
		SELECT `+participantColumns+`, m.day, m.slot, m.mode, COALESCE(o.actor_id, '')
		FROM arena.participants p
		JOIN arena.matches m ON m.id = p.match_id
		LEFT JOIN arena.participants o ON o.match_id = p.match_id AND o.actor_id <> p.actor_id
		WHERE p.actor_id = $1
		ORDER BY m.day DESC, m.slot DESC
		LIMIT $2
	`, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arena.HistoryRow
	for rows.Next() {
		var h arena.HistoryRow
		if err := rows.Scan(scanParticipant(&h.Participant, &h.Day, &h.Slot, (*string)(&h.Mode), &h.OpponentID)...); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (t *pgTx) SeasonParticipation(ctx context.Context, season, actorID string) ([]arena.Participant, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+participantColumns+`
		FROM arena.participants p
		JOIN arena.matches m ON m.id = p.match_id
		WHERE m.season_code = $1 AND p.actor_id = $2
		ORDER BY p.created_at
	`, season, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arena.Participant
	for rows.Next() {
		var p arena.Participant
		if err := rows.Scan(scanParticipant(&p)...); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ arena.Store = (*Store)(nil)
var _ arena.Tx = (*pgTx)(nil)
