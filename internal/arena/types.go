package arena

import (
	"encoding/json"
	"fmt"
	"time"
)

type Season struct {
	Code     string `json:"code"`
	StartDay string `json:"start_day"`
	EndDay   string `json:"end_day"`
}

// Stats are the actor's mutable needs, each in 0..100.
type Stats struct {
	Energy    float64 `json:"energy"`
	Mood      float64 `json:"mood"`
	Stress    float64 `json:"stress"`
	Curiosity float64 `json:"curiosity"`
}

type Actor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Stats       Stats    `json:"stats"`
	Role        string   `json:"role"`
	Condition   float64  `json:"condition"`
	Human       bool     `json:"human"`
	Preferences []Mode   `json:"preferences,omitempty"`
	Directives  []string `json:"directives,omitempty"`
	Active      bool     `json:"active"`
}

// Snapshot is the actor as captured at scheduling time. It is frozen for
// replay and never mutated after capture.
type Snapshot struct {
	ActorID   string     `json:"actor_id"`
	Name      string     `json:"name"`
	Rating    int        `json:"rating"`
	Streak    int        `json:"streak"`
	Stats     Stats      `json:"stats"`
	Role      string     `json:"role"`
	Condition float64    `json:"condition"`
	Human     bool       `json:"human"`
	Hints     HintVector `json:"hints"`
}

type StakePlan struct {
	Wager  int64 `json:"wager"`
	FeePct int   `json:"fee_pct"`
}

const MatchMetaVersion = 1

// MatchMeta is the single structured record persisted with a match. Each
// lifecycle stage owns one optional section.
type MatchMeta struct {
	Version    int             `json:"version"`
	Creation   *CreationInfo   `json:"creation,omitempty"`
	Live       *LiveInfo       `json:"live,omitempty"`
	Resolution *ResolutionInfo `json:"resolution,omitempty"`
}

type CreationInfo struct {
	Cast        []Snapshot `json:"cast"`
	Stake       StakePlan  `json:"stake"`
	Revenge     bool       `json:"revenge"`
	RematchID   string     `json:"rematch_id,omitempty"`
	PairScore   float64    `json:"pair_score"`
	ScheduledAt time.Time  `json:"scheduled_at"`
}

type LiveInfo struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type PerformanceRecord struct {
	ActorID   string  `json:"actor_id"`
	Raw       float64 `json:"raw"`
	Modified  float64 `json:"modified"`
	Correct   bool    `json:"correct"`
	ElapsedMs int     `json:"elapsed_ms"`
	Artifact  string  `json:"artifact"`
}

type ResolutionInfo struct {
	WinnerID       string              `json:"winner_id"`
	LoserID        string              `json:"loser_id"`
	TieBreak       string              `json:"tie_break,omitempty"`
	Performances   []PerformanceRecord `json:"performances,omitempty"`
	Settlement     Settlement          `json:"settlement"`
	RematchApplied bool                `json:"rematch_applied"`
	Narrative      *Narrative          `json:"narrative,omitempty"`
	RecapPostID    string              `json:"recap_post_id,omitempty"`
	SideEffects    []SideResult        `json:"side_effects,omitempty"`
	Backfilled     bool                `json:"backfilled,omitempty"`
	ResolvedAt     time.Time           `json:"resolved_at"`
}

type Match struct {
	ID         string     `json:"id"`
	SeasonCode string     `json:"season_code"`
	Day        string     `json:"day"`
	Slot       int        `json:"slot"`
	Mode       Mode       `json:"mode"`
	Status     Status     `json:"status"`
	Seed       uint32     `json:"seed"`
	EndsAt     time.Time  `json:"ends_at"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Meta       MatchMeta  `json:"meta"`
}

// Cast returns the two frozen snapshots in arrival order.
func (m Match) Cast() ([]Snapshot, error) {
	if m.Meta.Creation == nil || len(m.Meta.Creation.Cast) != 2 {
		return nil, fmt.Errorf("match %s: cast missing", m.ID)
	}
	return m.Meta.Creation.Cast, nil
}

// EncodeMeta serializes match metadata at the storage boundary.
func EncodeMeta(meta MatchMeta) ([]byte, error) {
	if meta.Version == 0 {
		meta.Version = MatchMetaVersion
	}
	return json.Marshal(meta)
}

func DecodeMeta(raw []byte) (MatchMeta, error) {
	var meta MatchMeta
	if len(raw) == 0 {
		return MatchMeta{Version: MatchMetaVersion}, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("decode match meta: %w", err)
	}
	if meta.Version > MatchMetaVersion {
		return meta, fmt.Errorf("match meta version %d not supported", meta.Version)
	}
	return meta, nil
}

type Participant struct {
	MatchID      string    `json:"match_id"`
	ActorID      string    `json:"actor_id"`
	Score        float64   `json:"score"`
	Outcome      Outcome   `json:"outcome"`
	Wager        int64     `json:"wager"`
	FeeBurned    int64     `json:"fee_burned"`
	NetCoins     int64     `json:"net_coins"`
	RatingBefore int       `json:"rating_before"`
	RatingAfter  int       `json:"rating_after"`
	RatingDelta  int       `json:"rating_delta"`
	CreatedAt    time.Time `json:"created_at"`
}

type RatingEntry struct {
	SeasonCode string    `json:"season_code"`
	ActorID    string    `json:"actor_id"`
	Rating     int       `json:"rating"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Streak     int       `json:"streak"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Relationship struct {
	ActorID  string  `json:"actor_id"`
	TargetID string  `json:"target_id"`
	Rivalry  float64 `json:"rivalry"`
	Jealousy float64 `json:"jealousy"`
}

// Intensity is the pairing pull of the edge.
func (r Relationship) Intensity() float64 {
	if r.Jealousy > r.Rivalry {
		return r.Jealousy
	}
	return r.Rivalry
}

type RelationshipChange struct {
	Before [2]float64 `json:"before"`
	After  [2]float64 `json:"after"`
}

type RematchRequest struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	TargetID    string     `json:"target_id"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty"`
}

func (r RematchRequest) ActiveAt(now time.Time) bool {
	return r.ConsumedAt == nil && now.Before(r.ExpiresAt)
}

type TransferInput struct {
	From      string
	To        string
	Amount    int64
	Type      string
	Memo      string
	Reference string
}

type RecapMeta struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Body  string `json:"body"`
}

type WorldEvent struct {
	Day      string `json:"day"`
	Category string `json:"category"`
	ActorID  string `json:"actor_id,omitempty"`
	MatchID  string `json:"match_id,omitempty"`
	Summary  string `json:"summary"`
}

type Notification struct {
	Kind    string `json:"kind"`
	ActorID string `json:"actor_id,omitempty"`
	MatchID string `json:"match_id"`
	Day     string `json:"day"`
	Mode    Mode   `json:"mode"`
	Outcome string `json:"outcome,omitempty"`
	Message string `json:"message"`
}

type TickResult struct {
	Day          string   `json:"day"`
	Season       string   `json:"season"`
	Created      int      `json:"created"`
	Skipped      int      `json:"skipped"`
	ResolvedLive int      `json:"resolved_live"`
	ResolvedNow  int      `json:"resolved_now"`
	Failed       int      `json:"failed"`
	MatchIDs     []string `json:"match_ids"`
}

type ResolveResult struct {
	MatchID         string `json:"match_id"`
	Status          Status `json:"status"`
	AlreadyResolved bool   `json:"already_resolved"`
	Backfilled      bool   `json:"backfilled"`
	WinnerID        string `json:"winner_id,omitempty"`
}

type MatchDetail struct {
	Match        Match         `json:"match"`
	Participants []Participant `json:"participants"`
}

type LeaderboardRow struct {
	Rank int64 `json:"rank"`
	RatingEntry
}

type HistoryRow struct {
	Participant
	Day        string `json:"day"`
	Slot       int    `json:"slot"`
	Mode       Mode   `json:"mode"`
	OpponentID string `json:"opponent_id"`
}

type ActorStats struct {
	ActorID   string      `json:"actor_id"`
	Season    string      `json:"season"`
	Entry     RatingEntry `json:"entry"`
	Matches   int         `json:"matches"`
	Forfeits  int         `json:"forfeits"`
	NetCoins  int64       `json:"net_coins"`
	FeeBurned int64       `json:"fee_burned"`
}
