package arena

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	pairWeightIntensity = 0.7
	pairWeightCloseness = 0.2
	pairWeightJitter    = 0.25
	revengeBonus        = 0.35
	cooldownPenalty     = 0.4

	topRivals     = 3
	randomSample  = 4
	noOpponentIdx = -1
)

var matchNamespace = uuid.MustParse("6b1f0c8e-3d7a-4f4e-9a51-1c2d7e0b9a44")

// MatchID is stable for a scheduling key, so a replayed slot plans the
// same identity.
func MatchID(season, day string, slot int) string {
	return uuid.NewSHA1(matchNamespace, []byte(SeedKey(season, day, slot))).String()
}

// PlanInput is the world state a slot is planned against.
type PlanInput struct {
	Season    Season
	Day       string
	Slot      int
	Now       time.Time
	Actors    []Actor
	Ratings   []RatingEntry
	Relations []Relationship
	Rematches []RematchRequest
	// Today holds matches already scheduled for Day; Recent holds matches
	// inside the cooldown window before Day.
	Today  []Match
	Recent []Match
}

type pairKey struct{ a, b string }

func newPairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

type candidate struct {
	actor   Actor
	score   float64
	revenge bool
	rematch *RematchRequest
}

// PlanSlot pairs two actors and picks a mode for one slot. It returns false
// when fewer than two actors are eligible or no valid opponent remains.
func PlanSlot(in PlanInput, settings Settings, classifier DirectiveClassifier) (Match, bool) {
	settings = settings.withDefaults()
	actors := make([]Actor, 0, len(in.Actors))
	for _, a := range in.Actors {
		if a.Active {
			actors = append(actors, a)
		}
	}
	if len(actors) < 2 {
		return Match{}, false
	}
	sort.Slice(actors, func(i, j int) bool { return actors[i].ID < actors[j].ID })

	ratings := make(map[string]RatingEntry, len(in.Ratings))
	for _, r := range in.Ratings {
		ratings[r.ActorID] = r
	}
	rating := func(id string) RatingEntry {
		if r, ok := ratings[id]; ok {
			return r
		}
		return NewRatingEntry(in.Season.Code, id)
	}

	edges := make(map[[2]string]Relationship, len(in.Relations))
	for _, r := range in.Relations {
		edges[[2]string{r.ActorID, r.TargetID}] = r
	}
	intensity := func(a, b string) float64 {
		x := edges[[2]string{a, b}].Intensity()
		if y := edges[[2]string{b, a}].Intensity(); y > x {
			return y
		}
		return x
	}

	exposure := make(map[string]int, len(actors))
	usedToday := make(map[pairKey]bool)
	for _, m := range in.Today {
		cast, err := m.Cast()
		if err != nil {
			continue
		}
		exposure[cast[0].ActorID]++
		exposure[cast[1].ActorID]++
		usedToday[newPairKey(cast[0].ActorID, cast[1].ActorID)] = true
	}
	recent := make(map[pairKey]bool)
	for _, m := range in.Recent {
		if cast, err := m.Cast(); err == nil {
			recent[newPairKey(cast[0].ActorID, cast[1].ActorID)] = true
		}
	}
	revenge := make(map[pairKey]*RematchRequest)
	for i := range in.Rematches {
		r := &in.Rematches[i]
		if !r.ActiveAt(in.Now) {
			continue
		}
		k := newPairKey(r.RequesterID, r.TargetID)
		if prev, ok := revenge[k]; !ok || r.CreatedAt.Before(prev.CreatedAt) {
			revenge[k] = r
		}
	}

	rng := NewStream(DeriveSeed(in.Season.Code, in.Day, in.Slot, "pair"))

	anchors := append([]Actor(nil), actors...)
	rng.Shuffle(len(anchors), func(i, j int) { anchors[i], anchors[j] = anchors[j], anchors[i] })
	sort.SliceStable(anchors, func(i, j int) bool {
		return exposure[anchors[i].ID] < exposure[anchors[j].ID]
	})

	for _, anchor := range anchors {
		pool := candidatesFor(anchor, actors, revenge, intensity, rng)
		best := noOpponentIdx
		for i := range pool {
			c := &pool[i]
			if usedToday[newPairKey(anchor.ID, c.actor.ID)] {
				c.score = 0
				continue
			}
			ra, rb := rating(anchor.ID), rating(c.actor.ID)
			c.score = intensity(anchor.ID, c.actor.ID)*pairWeightIntensity +
				Closeness(ra.Rating, rb.Rating)*pairWeightCloseness +
				rng.Float()*pairWeightJitter
			if c.revenge {
				c.score += revengeBonus
			} else if recent[newPairKey(anchor.ID, c.actor.ID)] {
				c.score -= cooldownPenalty
			}
			if best == noOpponentIdx || c.score > pool[best].score {
				best = i
			}
		}
		if best == noOpponentIdx {
			continue
		}
		pick := pool[best]
		mode := pickMode(in, anchor, pick.actor, settings)
		return buildMatch(in, settings, classifier, mode, [2]Actor{anchor, pick.actor}, [2]RatingEntry{rating(anchor.ID), rating(pick.actor.ID)}, pick), true
	}
	return Match{}, false
}

// candidatesFor builds revenge targets, the strongest rivalries and a random
// sample of everyone else, in actor id order.
func candidatesFor(anchor Actor, actors []Actor, revenge map[pairKey]*RematchRequest, intensity func(a, b string) float64, rng *Stream) []candidate {
	picked := make(map[string]*candidate)
	var rest []Actor
	var rivals []Actor
	for _, a := range actors {
		if a.ID == anchor.ID {
			continue
		}
		if r, ok := revenge[newPairKey(anchor.ID, a.ID)]; ok {
			picked[a.ID] = &candidate{actor: a, revenge: true, rematch: r}
			continue
		}
		if intensity(anchor.ID, a.ID) > 0 {
			rivals = append(rivals, a)
			continue
		}
		rest = append(rest, a)
	}
	sort.SliceStable(rivals, func(i, j int) bool {
		return intensity(anchor.ID, rivals[i].ID) > intensity(anchor.ID, rivals[j].ID)
	})
	for i, a := range rivals {
		if i < topRivals {
			picked[a.ID] = &candidate{actor: a}
		} else {
			rest = append(rest, a)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })
	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	for i, a := range rest {
		if i >= randomSample {
			break
		}
		picked[a.ID] = &candidate{actor: a}
	}

	out := make([]candidate, 0, len(picked))
	for _, c := range picked {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].actor.ID < out[j].actor.ID })
	return out
}

// pickMode draws from the configured weights, restricted to the modes both
// actors prefer. Preferences that leave nothing to draw from are ignored.
func pickMode(in PlanInput, a, b Actor, settings Settings) Mode {
	allowed := restrictModes(restrictModes(allModeSet(), a.Preferences), b.Preferences)
	if len(allowed) == 0 {
		allowed = allModeSet()
	}

	weights := make([]float64, len(AllModes))
	for i, m := range AllModes {
		if allowed[m] {
			weights[i] = settings.ModeWeights[m]
		}
	}
	rng := NewStream(DeriveSeed(in.Season.Code, in.Day, in.Slot, "mode"))
	idx := rng.WeightedChoice(weights)
	if idx < 0 {
		for i, m := range AllModes {
			weights[i] = 0
			if allowed[m] {
				weights[i] = 1
			}
		}
		idx = rng.WeightedChoice(weights)
	}
	if idx < 0 {
		return ModeMathRace
	}
	return AllModes[idx]
}

func allModeSet() map[Mode]bool {
	out := make(map[Mode]bool, len(AllModes))
	for _, m := range AllModes {
		out[m] = true
	}
	return out
}

func restrictModes(set map[Mode]bool, prefs []Mode) map[Mode]bool {
	if len(prefs) == 0 {
		return set
	}
	out := make(map[Mode]bool)
	for _, m := range prefs {
		if set[m] {
			out[m] = true
		}
	}
	return out
}

func buildMatch(in PlanInput, settings Settings, classifier DirectiveClassifier, mode Mode, pair [2]Actor, entries [2]RatingEntry, pick candidate) Match {
	cast := make([]Snapshot, 2)
	for i, a := range pair {
		var hints HintVector
		if classifier != nil {
			hints = classifier.Classify(a.Directives)
		}
		cast[i] = Snapshot{
			ActorID:   a.ID,
			Name:      a.Name,
			Rating:    entries[i].Rating,
			Streak:    entries[i].Streak,
			Stats:     a.Stats,
			Role:      a.Role,
			Condition: a.Condition,
			Human:     a.Human,
			Hints:     hints,
		}
	}

	wager := settings.BaseWager
	if pick.revenge {
		wager += wager * int64(settings.RevengeWagerPct) / 100
	}
	creation := &CreationInfo{
		Cast:        cast,
		Stake:       StakePlan{Wager: wager, FeePct: settings.FeePct},
		Revenge:     pick.revenge,
		PairScore:   round2(pick.score),
		ScheduledAt: in.Now,
	}
	if pick.rematch != nil {
		creation.RematchID = pick.rematch.ID
	}
	ends := in.Now.Add(settings.LiveWindow)
	return Match{
		ID:         MatchID(in.Season.Code, in.Day, in.Slot),
		SeasonCode: in.Season.Code,
		Day:        in.Day,
		Slot:       in.Slot,
		Mode:       mode,
		Status:     StatusLive,
		Seed:       DeriveSeed(in.Season.Code, in.Day, in.Slot, mode, "match"),
		EndsAt:     ends,
		CreatedAt:  in.Now,
		Meta: MatchMeta{
			Version:  MatchMetaVersion,
			Creation: creation,
			Live:     &LiveInfo{StartsAt: in.Now, EndsAt: ends},
		},
	}
}
