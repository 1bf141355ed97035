package arena

import (
	"context"
	"log/slog"
)

// SideResult is the outcome of one best-effort step. Callers may record or
// discard it; the critical path never branches on it.
type SideResult struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	Err  string `json:"err,omitempty"`
}

// sideCall runs fn in its own savepoint. A failure rolls back only fn's
// writes and is logged, counted and returned as a value.
func (s *Service) sideCall(ctx context.Context, tx Tx, m Match, name string, fn func(tx Tx) error) SideResult {
	err := tx.Savepoint(ctx, fn)
	s.rec.SideEffect(name, err == nil)
	if err != nil {
		s.log.Warn("arena side effect failed",
			slog.String("match_id", m.ID),
			slog.String("season", m.SeasonCode),
			slog.String("day", m.Day),
			slog.Int("slot", m.Slot),
			slog.String("step", name),
			slog.Any("err", err),
		)
		return SideResult{Name: name, Err: err.Error()}
	}
	return SideResult{Name: name, OK: true}
}
