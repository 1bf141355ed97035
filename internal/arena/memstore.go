package arena

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with in-memory maps. A transaction holds the
// store mutex for its whole duration and restores a snapshot on error, so
// it behaves like a serializable database for tests and development.
type MemoryStore struct {
	mu     sync.Mutex
	st     *memState
	faults map[string]error
}

type LedgerRecord struct {
	ID        string
	From      string
	To        string
	Amount    int64
	Type      string
	Memo      string
	Reference string
}

type RecapPost struct {
	ID       string
	MatchID  string
	AuthorID string
	Meta     RecapMeta
}

type storedMatch struct {
	match Match
	meta  []byte
}

type memState struct {
	seasons      map[string]Season
	actors       map[string]Actor
	balances     map[string]int64
	relations    map[[2]string]Relationship
	rematches    []RematchRequest
	matches      map[string]storedMatch
	slots        map[string]string
	participants map[string][]Participant
	ratings      map[[2]string]RatingEntry
	ledger       []LedgerRecord
	posts        map[string]RecapPost
	xp           map[string]int64
	events       []WorldEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		st: &memState{
			seasons:      make(map[string]Season),
			actors:       make(map[string]Actor),
			balances:     make(map[string]int64),
			relations:    make(map[[2]string]Relationship),
			matches:      make(map[string]storedMatch),
			slots:        make(map[string]string),
			participants: make(map[string][]Participant),
			ratings:      make(map[[2]string]RatingEntry),
			posts:        make(map[string]RecapPost),
			xp:           make(map[string]int64),
		},
		faults: make(map[string]error),
	}
}

func (st *memState) clone() *memState {
	out := &memState{
		seasons:      make(map[string]Season, len(st.seasons)),
		actors:       make(map[string]Actor, len(st.actors)),
		balances:     make(map[string]int64, len(st.balances)),
		relations:    make(map[[2]string]Relationship, len(st.relations)),
		rematches:    append([]RematchRequest(nil), st.rematches...),
		matches:      make(map[string]storedMatch, len(st.matches)),
		slots:        make(map[string]string, len(st.slots)),
		participants: make(map[string][]Participant, len(st.participants)),
		ratings:      make(map[[2]string]RatingEntry, len(st.ratings)),
		ledger:       append([]LedgerRecord(nil), st.ledger...),
		posts:        make(map[string]RecapPost, len(st.posts)),
		xp:           make(map[string]int64, len(st.xp)),
		events:       append([]WorldEvent(nil), st.events...),
	}
	for k, v := range st.seasons {
		out.seasons[k] = v
	}
	for k, v := range st.actors {
		out.actors[k] = v
	}
	for k, v := range st.balances {
		out.balances[k] = v
	}
	for k, v := range st.relations {
		out.relations[k] = v
	}
	for k, v := range st.matches {
		out.matches[k] = v
	}
	for k, v := range st.slots {
		out.slots[k] = v
	}
	for k, v := range st.participants {
		out.participants[k] = append([]Participant(nil), v...)
	}
	for k, v := range st.ratings {
		out.ratings[k] = v
	}
	for k, v := range st.posts {
		out.posts[k] = v
	}
	for k, v := range st.xp {
		out.xp[k] = v
	}
	return out
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.st.clone()
	if err := fn(&memTx{store: s}); err != nil {
		s.st = saved
		return err
	}
	return nil
}

// InjectFault makes the named collaborator call fail with err until cleared
// with a nil err. Names: transfer, adjust, recap, xp, event.
func (s *MemoryStore) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *MemoryStore) PutActor(a Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Preferences = append([]Mode(nil), a.Preferences...)
	a.Directives = append([]string(nil), a.Directives...)
	s.st.actors[a.ID] = a
}

func (s *MemoryStore) SetBalance(actorID string, coins int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.balances[actorID] = coins
}

func (s *MemoryStore) BalanceOf(actorID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.balances[actorID]
}

func (s *MemoryStore) SetRelationship(r Relationship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.relations[[2]string{r.ActorID, r.TargetID}] = r
}

func (s *MemoryStore) LedgerRecords() []LedgerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LedgerRecord(nil), s.st.ledger...)
}

func (s *MemoryStore) Events() []WorldEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WorldEvent(nil), s.st.events...)
}

func (s *MemoryStore) XP(actorID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.xp[actorID]
}

func (s *MemoryStore) RecapPosts() []RecapPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecapPost, 0, len(s.st.posts))
	for _, p := range s.st.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out
}

// PutParticipants writes participant rows directly. It exists to stage the
// partially resolved state a crashed writer leaves behind.
func (s *MemoryStore) PutParticipants(ps ...Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range ps {
		s.st.participants[p.MatchID] = append(s.st.participants[p.MatchID], p)
	}
}

type memTx struct {
	store *MemoryStore
}

func (t *memTx) state() *memState { return t.store.st }

func (t *memTx) fault(op string) error { return t.store.faults[op] }

func (t *memTx) Savepoint(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	saved := t.store.st.clone()
	if err := fn(t); err != nil {
		t.store.st = saved
		return err
	}
	return nil
}

func (t *memTx) Balance(_ context.Context, actorID string) (int64, error) {
	return t.state().balances[actorID], nil
}

func (t *memTx) Transfer(_ context.Context, in TransferInput) (string, error) {
	if err := t.fault("transfer"); err != nil {
		return "", err
	}
	if in.Amount <= 0 {
		return "", fmt.Errorf("transfer amount must be positive")
	}
	st := t.state()
	if in.From != "" {
		if st.balances[in.From] < in.Amount {
			return "", ErrInsufficientFunds
		}
		st.balances[in.From] -= in.Amount
	}
	if in.To != "" {
		st.balances[in.To] += in.Amount
	}
	rec := LedgerRecord{
		ID:        uuid.NewString(),
		From:      in.From,
		To:        in.To,
		Amount:    in.Amount,
		Type:      in.Type,
		Memo:      in.Memo,
		Reference: in.Reference,
	}
	st.ledger = append(st.ledger, rec)
	return rec.ID, nil
}

func (t *memTx) Relationships(_ context.Context) ([]Relationship, error) {
	st := t.state()
	out := make([]Relationship, 0, len(st.relations))
	for _, r := range st.relations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActorID != out[j].ActorID {
			return out[i].ActorID < out[j].ActorID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out, nil
}

func (t *memTx) AdjustMutual(_ context.Context, aID, bID string, deltaA, deltaB float64) (RelationshipChange, error) {
	if err := t.fault("adjust"); err != nil {
		return RelationshipChange{}, err
	}
	st := t.state()
	ab := st.relations[[2]string{aID, bID}]
	ba := st.relations[[2]string{bID, aID}]
	ab.ActorID, ab.TargetID = aID, bID
	ba.ActorID, ba.TargetID = bID, aID

	var change RelationshipChange
	change.Before = [2]float64{ab.Rivalry, ba.Rivalry}
	ab.Rivalry = clamp01(ab.Rivalry + deltaA)
	ba.Rivalry = clamp01(ba.Rivalry + deltaB)
	change.After = [2]float64{ab.Rivalry, ba.Rivalry}

	st.relations[[2]string{aID, bID}] = ab
	st.relations[[2]string{bID, aID}] = ba
	return change, nil
}

func (t *memTx) EnsureRecapPost(_ context.Context, matchID, authorID string, meta RecapMeta) (string, error) {
	if err := t.fault("recap"); err != nil {
		return "", err
	}
	st := t.state()
	if p, ok := st.posts[matchID]; ok {
		return p.ID, nil
	}
	p := RecapPost{ID: uuid.NewString(), MatchID: matchID, AuthorID: authorID, Meta: meta}
	st.posts[matchID] = p
	return p.ID, nil
}

func (t *memTx) AwardXP(_ context.Context, actorID string, amount int64, _ string) error {
	if err := t.fault("xp"); err != nil {
		return err
	}
	st := t.state()
	st.xp[actorID] += amount
	if st.xp[actorID] < 0 {
		st.xp[actorID] = 0
	}
	return nil
}

func (t *memTx) EnsureSeason(_ context.Context, s Season) error {
	st := t.state()
	if _, ok := st.seasons[s.Code]; !ok {
		st.seasons[s.Code] = s
	}
	return nil
}

func (t *memTx) Actor(_ context.Context, id string) (Actor, error) {
	a, ok := t.state().actors[id]
	if !ok {
		return Actor{}, ErrActorNotFound
	}
	return a, nil
}

func (t *memTx) EligibleActors(_ context.Context) ([]Actor, error) {
	st := t.state()
	out := make([]Actor, 0, len(st.actors))
	for _, a := range st.actors {
		if a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) RecordEvent(_ context.Context, e WorldEvent) error {
	if err := t.fault("event"); err != nil {
		return err
	}
	st := t.state()
	st.events = append(st.events, e)
	return nil
}

func (t *memTx) Rating(_ context.Context, season, actorID string) (RatingEntry, error) {
	if e, ok := t.state().ratings[[2]string{season, actorID}]; ok {
		return e, nil
	}
	return NewRatingEntry(season, actorID), nil
}

func (t *memTx) SeasonRatings(_ context.Context, season string) ([]RatingEntry, error) {
	var out []RatingEntry
	for k, e := range t.state().ratings {
		if k[0] == season {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out, nil
}

func (t *memTx) UpsertRating(_ context.Context, e RatingEntry) error {
	t.state().ratings[[2]string{e.SeasonCode, e.ActorID}] = e
	return nil
}

func (t *memTx) ActiveRematches(_ context.Context, now time.Time) ([]RematchRequest, error) {
	var out []RematchRequest
	for _, r := range t.state().rematches {
		if r.ActiveAt(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memTx) InsertRematch(_ context.Context, r RematchRequest, now time.Time) (RematchRequest, bool, error) {
	st := t.state()
	for _, existing := range st.rematches {
		if existing.RequesterID == r.RequesterID && existing.TargetID == r.TargetID && existing.ActiveAt(now) {
			return existing, false, nil
		}
	}
	st.rematches = append(st.rematches, r)
	return r, true, nil
}

func (t *memTx) ConsumeRematch(_ context.Context, winnerID, loserID, preferID string, now time.Time) (RematchRequest, bool, error) {
	st := t.state()
	rank := func(r RematchRequest) int {
		switch {
		case preferID != "" && r.ID == preferID:
			return 0
		case r.RequesterID == winnerID:
			return 1
		}
		return 2
	}
	idx := -1
	for i, r := range st.rematches {
		if !r.ActiveAt(now) || newPairKey(r.RequesterID, r.TargetID) != newPairKey(winnerID, loserID) {
			continue
		}
		if idx < 0 {
			idx = i
			continue
		}
		best := st.rematches[idx]
		if rank(r) < rank(best) || (rank(r) == rank(best) && r.CreatedAt.Before(best.CreatedAt)) {
			idx = i
		}
	}
	if idx < 0 {
		return RematchRequest{}, false, nil
	}
	consumed := now
	st.rematches[idx].ConsumedAt = &consumed
	return st.rematches[idx], true, nil
}

func slotKey(season, day string, slot int) string {
	return SeedKey(season, day, slot)
}

func (t *memTx) SlotTaken(_ context.Context, season, day string, slot int) (bool, error) {
	_, ok := t.state().slots[slotKey(season, day, slot)]
	return ok, nil
}

func (t *memTx) InsertMatchIfAbsent(_ context.Context, m Match) (bool, error) {
	st := t.state()
	key := slotKey(m.SeasonCode, m.Day, m.Slot)
	if _, ok := st.slots[key]; ok {
		return false, nil
	}
	if _, ok := st.matches[m.ID]; ok {
		return false, nil
	}
	sm, err := toStored(m)
	if err != nil {
		return false, err
	}
	st.matches[m.ID] = sm
	st.slots[key] = m.ID
	return true, nil
}

func toStored(m Match) (storedMatch, error) {
	raw, err := EncodeMeta(m.Meta)
	if err != nil {
		return storedMatch{}, err
	}
	m.Meta = MatchMeta{}
	if m.ResolvedAt != nil {
		at := *m.ResolvedAt
		m.ResolvedAt = &at
	}
	return storedMatch{match: m, meta: raw}, nil
}

func (sm storedMatch) load() (Match, error) {
	m := sm.match
	if m.ResolvedAt != nil {
		at := *m.ResolvedAt
		m.ResolvedAt = &at
	}
	meta, err := DecodeMeta(sm.meta)
	if err != nil {
		return Match{}, err
	}
	m.Meta = meta
	return m, nil
}

func (t *memTx) MatchesBetween(_ context.Context, fromDay, toDay string) ([]Match, error) {
	var out []Match
	for _, sm := range t.state().matches {
		if sm.match.Day < fromDay || sm.match.Day > toDay {
			continue
		}
		m, err := sm.load()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sortMatches(out)
	return out, nil
}

func sortMatches(ms []Match) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Day != ms[j].Day {
			return ms[i].Day < ms[j].Day
		}
		return ms[i].Slot < ms[j].Slot
	})
}

func (t *memTx) DueMatches(_ context.Context, now time.Time, limit int) ([]Match, error) {
	var out []Match
	for _, sm := range t.state().matches {
		if sm.match.Status != StatusLive || sm.match.EndsAt.After(now) {
			continue
		}
		m, err := sm.load()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndsAt.Equal(out[j].EndsAt) {
			return out[i].EndsAt.Before(out[j].EndsAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) GetMatch(_ context.Context, id string) (Match, error) {
	sm, ok := t.state().matches[id]
	if !ok {
		return Match{}, ErrMatchNotFound
	}
	return sm.load()
}

func (t *memTx) LockMatch(ctx context.Context, id string) (Match, error) {
	return t.GetMatch(ctx, id)
}

func (t *memTx) SaveMatch(_ context.Context, m Match) error {
	st := t.state()
	prev, ok := st.matches[m.ID]
	if !ok {
		return ErrMatchNotFound
	}
	if prev.match.Status == StatusResolved && m.Status != StatusResolved {
		return ErrStatusRegression
	}
	sm, err := toStored(m)
	if err != nil {
		return err
	}
	st.matches[m.ID] = sm
	return nil
}

func (t *memTx) Participants(_ context.Context, matchID string) ([]Participant, error) {
	return append([]Participant(nil), t.state().participants[matchID]...), nil
}

func (t *memTx) InsertParticipant(_ context.Context, p Participant) (bool, error) {
	st := t.state()
	for _, existing := range st.participants[p.MatchID] {
		if existing.ActorID == p.ActorID {
			return false, nil
		}
	}
	st.participants[p.MatchID] = append(st.participants[p.MatchID], p)
	return true, nil
}

func (t *memTx) History(_ context.Context, actorID string, limit int) ([]HistoryRow, error) {
	st := t.state()
	var out []HistoryRow
	for matchID, ps := range st.participants {
		sm, ok := st.matches[matchID]
		if !ok {
			continue
		}
		var mine *Participant
		opponent := ""
		for i := range ps {
			if ps[i].ActorID == actorID {
				mine = &ps[i]
			} else {
				opponent = ps[i].ActorID
			}
		}
		if mine == nil {
			continue
		}
		out = append(out, HistoryRow{
			Participant: *mine,
			Day:         sm.match.Day,
			Slot:        sm.match.Slot,
			Mode:        sm.match.Mode,
			OpponentID:  opponent,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day > out[j].Day
		}
		return out[i].Slot > out[j].Slot
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) SeasonParticipation(_ context.Context, season, actorID string) ([]Participant, error) {
	st := t.state()
	var out []Participant
	for matchID, ps := range st.participants {
		sm, ok := st.matches[matchID]
		if !ok || sm.match.SeasonCode != season {
			continue
		}
		for _, p := range ps {
			if p.ActorID == actorID {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
