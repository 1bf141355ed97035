package arena

import (
	"context"
	"time"
)

// Store is the transactional boundary of the engine. Every mutation runs
// inside WithTx; the store provides the only synchronization between
// concurrent schedulers and resolvers.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Ledger is the economic collaborator. Empty From mints, empty To burns.
type Ledger interface {
	Balance(ctx context.Context, actorID string) (int64, error)
	Transfer(ctx context.Context, in TransferInput) (string, error)
}

type Relations interface {
	Relationships(ctx context.Context) ([]Relationship, error)
	// AdjustMutual raises a→b by deltaA and b→a by deltaB, clamped to [0,1].
	AdjustMutual(ctx context.Context, aID, bID string, deltaA, deltaB float64) (RelationshipChange, error)
}

type Recaps interface {
	// EnsureRecapPost is idempotent per match and returns the post id.
	EnsureRecapPost(ctx context.Context, matchID, authorID string, meta RecapMeta) (string, error)
}

type Progression interface {
	AwardXP(ctx context.Context, actorID string, amount int64, reason string) error
}

// Tx is one open transaction.
type Tx interface {
	Ledger
	Relations
	Recaps
	Progression

	// Savepoint runs fn in a nested transaction. An error from fn rolls back
	// only the nested work.
	Savepoint(ctx context.Context, fn func(tx Tx) error) error

	EnsureSeason(ctx context.Context, s Season) error
	Actor(ctx context.Context, id string) (Actor, error)
	EligibleActors(ctx context.Context) ([]Actor, error)
	RecordEvent(ctx context.Context, e WorldEvent) error

	Rating(ctx context.Context, season, actorID string) (RatingEntry, error)
	SeasonRatings(ctx context.Context, season string) ([]RatingEntry, error)
	UpsertRating(ctx context.Context, e RatingEntry) error

	ActiveRematches(ctx context.Context, now time.Time) ([]RematchRequest, error)
	// InsertRematch stores r unless an active request for the same
	// requester and target exists, in which case that one is returned.
	InsertRematch(ctx context.Context, r RematchRequest, now time.Time) (RematchRequest, bool, error)
	// ConsumeRematch marks one active request between winner and loser
	// (either direction) consumed and returns it. The request with id
	// preferID goes first, then the winner's own request, then the oldest.
	ConsumeRematch(ctx context.Context, winnerID, loserID, preferID string, now time.Time) (RematchRequest, bool, error)

	SlotTaken(ctx context.Context, season, day string, slot int) (bool, error)
	InsertMatchIfAbsent(ctx context.Context, m Match) (bool, error)
	// MatchesBetween lists matches with fromDay <= day <= toDay.
	MatchesBetween(ctx context.Context, fromDay, toDay string) ([]Match, error)
	DueMatches(ctx context.Context, now time.Time, limit int) ([]Match, error)
	GetMatch(ctx context.Context, id string) (Match, error)
	// LockMatch loads the match holding an exclusive lock until the
	// transaction ends.
	LockMatch(ctx context.Context, id string) (Match, error)
	SaveMatch(ctx context.Context, m Match) error

	Participants(ctx context.Context, matchID string) ([]Participant, error)
	InsertParticipant(ctx context.Context, p Participant) (bool, error)
	History(ctx context.Context, actorID string, limit int) ([]HistoryRow, error)
	SeasonParticipation(ctx context.Context, season, actorID string) ([]Participant, error)
}

// Notifier receives best-effort notifications after a commit.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// CrowdGauge reports an optional crowd sentiment delta for a day.
type CrowdGauge interface {
	CrowdDelta(ctx context.Context, day string) (*float64, error)
}

// Recorder receives engine counters. The metrics package implements it.
type Recorder interface {
	MatchCreated(mode Mode)
	MatchResolved(mode Mode, forfeit bool)
	SideEffect(step string, ok bool)
	SlotFailed()
	CoinsBurned(n int64)
	TickDuration(d time.Duration)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) error { return nil }

type nopRecorder struct{}

func (nopRecorder) MatchCreated(Mode)          {}
func (nopRecorder) MatchResolved(Mode, bool)   {}
func (nopRecorder) SideEffect(string, bool)    {}
func (nopRecorder) SlotFailed()                {}
func (nopRecorder) CoinsBurned(int64)          {}
func (nopRecorder) TickDuration(time.Duration) {}
