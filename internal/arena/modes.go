package arena

import (
	"fmt"
	"math"
	"strings"
)

// Mode is the closed set of contest formats. Adding a mode means adding a
// constant here, an entry in AllModes and one simulator in simulators.
type Mode string

const (
	ModeMathRace     Mode = "MATH_RACE"
	ModeAuctionDuel  Mode = "AUCTION_DUEL"
	ModePromptBattle Mode = "PROMPT_BATTLE"
	ModeCourtTrial   Mode = "COURT_TRIAL"
	ModeMemoryChain  Mode = "MEMORY_CHAIN"
	ModeReflexDuel   Mode = "REFLEX_DUEL"
)

var AllModes = []Mode{
	ModeMathRace,
	ModeAuctionDuel,
	ModePromptBattle,
	ModeCourtTrial,
	ModeMemoryChain,
	ModeReflexDuel,
}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := simulators[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// SimInput is everything a simulator may look at. MatchSeed is shared by
// both actors (prompt, budget, case file); Seed is the actor's own stream.
type SimInput struct {
	MatchSeed uint32
	Seed      uint32
	Rating    int
	Stats     Stats
	Role      string
	Hints     HintVector
}

// Performance is normalized to the 0..10 scale for every mode.
type Performance struct {
	Score     float64 `json:"score"`
	Correct   bool    `json:"correct"`
	ElapsedMs int     `json:"elapsed_ms"`
	Artifact  string  `json:"artifact"`
}

type ModeSimulator interface {
	Simulate(in SimInput) Performance
}

type SimulatorFunc func(in SimInput) Performance

func (f SimulatorFunc) Simulate(in SimInput) Performance {
	p := f(in)
	p.Score = round2(clampFloat(p.Score, 0, 10))
	return p
}

var simulators = map[Mode]ModeSimulator{
	ModeMathRace:     SimulatorFunc(simulateMathRace),
	ModeAuctionDuel:  SimulatorFunc(simulateAuctionDuel),
	ModePromptBattle: SimulatorFunc(simulatePromptBattle),
	ModeCourtTrial:   SimulatorFunc(simulateCourtTrial),
	ModeMemoryChain:  SimulatorFunc(simulateMemoryChain),
	ModeReflexDuel:   SimulatorFunc(simulateReflexDuel),
}

func SimulatorFor(m Mode) (ModeSimulator, error) {
	sim, ok := simulators[m]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}
	return sim, nil
}

var roleAffinity = map[Mode][]string{
	ModeMathRace:     {"SCHOLAR", "ACCOUNTANT"},
	ModeAuctionDuel:  {"MERCHANT", "ACCOUNTANT"},
	ModePromptBattle: {"ARTIST", "SCHOLAR"},
	ModeCourtTrial:   {"JUDGE", "GUARD"},
	ModeMemoryChain:  {"SCHOLAR", "ARTIST"},
	ModeReflexDuel:   {"ATHLETE", "GUARD"},
}

func roleBonus(m Mode, role string) float64 {
	role = strings.ToUpper(strings.TrimSpace(role))
	for _, r := range roleAffinity[m] {
		if r == role {
			return 0.06
		}
	}
	return 0
}

func skillOf(rating int) float64 {
	return clamp01((float64(rating) - 600) / 1000)
}

func pct(v float64) float64 {
	return clamp01(v / 100)
}

func sharedStream(in SimInput, purpose string) *Stream {
	return NewStream(DeriveSeed(in.MatchSeed, purpose))
}

func simulateMathRace(in SimInput) Performance {
	const problems = 10
	const limitMs = 60_000
	rng := NewStream(in.Seed)
	sk, en, st := skillOf(in.Rating), pct(in.Stats.Energy), pct(in.Stats.Stress)

	pCorrect := clampFloat(0.45+0.3*sk+0.15*en-0.2*st+0.1*in.Hints.Focus+0.05*in.Hints.Study+roleBonus(ModeMathRace, in.Role), 0.05, 0.98)
	pace := clampFloat(1.3-0.4*en+0.3*st-0.2*in.Hints.Discipline-0.2*sk, 0.4, 2)

	correct, elapsed := 0, 0
	for i := 0; i < problems; i++ {
		elapsed += int(3000 * pace * (0.7 + 0.6*rng.Float()))
		if rng.Chance(pCorrect) {
			correct++
		}
	}
	speed := clamp01(1 - float64(elapsed)/limitMs)
	return Performance{
		Score:     0.8*float64(correct) + 2*speed,
		Correct:   correct >= 7,
		ElapsedMs: elapsed,
		Artifact:  fmt.Sprintf("%d/%d in %.1fs", correct, problems, float64(elapsed)/1000),
	}
}

func simulateAuctionDuel(in SimInput) Performance {
	budget := 40 + sharedStream(in, "budget").IntRange(0, 160)
	rng := NewStream(in.Seed)
	sk, st := skillOf(in.Rating), pct(in.Stats.Stress)

	spread := 0.35 * (1 - 0.5*sk - roleBonus(ModeAuctionDuel, in.Role)) * (1 + 0.5*st - 0.4*in.Hints.Calm)
	bias := 0.12*in.Hints.Aggression - 0.04*in.Hints.Discipline
	est := float64(budget) * (1 + bias + 0.5*spread*rng.Gaussian())
	bid := int(math.Max(1, math.Round(est)))

	diff := math.Abs(float64(bid-budget)) / float64(budget)
	score := 10 * (1 - clamp01(diff*2))
	if bid > budget {
		score *= 0.6
	}
	return Performance{
		Score:     score,
		Correct:   bid <= budget,
		ElapsedMs: int(4000 + 6000*rng.Float()*(1-0.5*in.Hints.Aggression)),
		Artifact:  fmt.Sprintf("bid %d vs budget %d", bid, budget),
	}
}

var promptVocabulary = []string{
	"lantern", "orbit", "harvest", "mirror", "tide", "ember", "compass", "archive",
	"thunder", "garden", "cipher", "voyage", "anchor", "meadow", "signal", "furnace",
	"glacier", "market", "riddle", "beacon", "canyon", "feather", "engine", "echo",
}

const promptKeywords = 6

// PromptKeywords is the generated prompt shared by both actors of a match.
func PromptKeywords(matchSeed uint32) []string {
	words := append([]string(nil), promptVocabulary...)
	NewStream(DeriveSeed(matchSeed, "prompt")).Shuffle(len(words), func(i, j int) {
		words[i], words[j] = words[j], words[i]
	})
	return words[:promptKeywords]
}

func simulatePromptBattle(in SimInput) Performance {
	keywords := PromptKeywords(in.MatchSeed)
	rng := NewStream(in.Seed)
	sk, st, cur, mood := skillOf(in.Rating), pct(in.Stats.Stress), pct(in.Stats.Curiosity), pct(in.Stats.Mood)

	p := clampFloat(0.35+0.35*sk+0.15*cur+0.1*in.Hints.Study-0.1*st+roleBonus(ModePromptBattle, in.Role), 0.05, 0.95)
	var covered []string
	for _, kw := range keywords {
		if rng.Chance(p) {
			covered = append(covered, kw)
		}
	}
	coverage := float64(len(covered)) / float64(len(keywords))
	fluency := clamp01(0.5*mood + 0.3*in.Hints.Calm + 0.2*rng.Float())
	return Performance{
		Score:     8.5*coverage + 1.5*fluency,
		Correct:   len(covered) >= 4,
		ElapsedMs: int(20_000 + 40_000*rng.Float()),
		Artifact:  fmt.Sprintf("covered %d/%d: %s", len(covered), len(keywords), strings.Join(covered, ", ")),
	}
}

func simulateCourtTrial(in SimInput) Performance {
	const clues = 5
	caseFile := sharedStream(in, "case")
	guilty := caseFile.Chance(0.5)
	truth := 1.0
	if !guilty {
		truth = -1
	}
	signs := make([]float64, clues)
	reliability := make([]float64, clues)
	for i := range signs {
		reliability[i] = 0.55 + 0.35*caseFile.Float()
		signs[i] = truth
		if !caseFile.Chance(reliability[i]) {
			signs[i] = -truth
		}
	}

	rng := NewStream(in.Seed)
	sk, st := skillOf(in.Rating), pct(in.Stats.Stress)
	pRead := clampFloat(0.5+0.3*sk+0.15*in.Hints.Focus+0.1*in.Hints.Calm-0.15*st+roleBonus(ModeCourtTrial, in.Role), 0.3, 0.97)

	sum, weight := 0.0, 0.0
	for i := range signs {
		perceived := signs[i]
		if !rng.Chance(pRead) {
			perceived = -perceived
		}
		sum += perceived * reliability[i]
		weight += reliability[i]
	}
	verdictGuilty := sum > 0
	if sum == 0 {
		verdictGuilty = rng.Chance(0.5)
	}
	confidence := math.Abs(sum) / weight
	correct := verdictGuilty == guilty
	score := 3 * (1 - confidence)
	if correct {
		score = 6 + 4*confidence
	}
	return Performance{
		Score:     score,
		Correct:   correct,
		ElapsedMs: int(30_000 + 30_000*rng.Float()*(1-0.5*in.Hints.Discipline)),
		Artifact:  fmt.Sprintf("verdict %s (truth %s)", verdictLabel(verdictGuilty), verdictLabel(guilty)),
	}
}

func verdictLabel(guilty bool) string {
	if guilty {
		return "guilty"
	}
	return "innocent"
}

func simulateMemoryChain(in SimInput) Performance {
	const maxLen = 12
	rng := NewStream(in.Seed)
	sk, st, en := skillOf(in.Rating), pct(in.Stats.Stress), pct(in.Stats.Energy)
	base := 0.8 + 0.15*sk + 0.05*in.Hints.Calm + 0.05*in.Hints.Focus + 0.03*in.Hints.Study - 0.1*st + 0.03*en + roleBonus(ModeMemoryChain, in.Role)

	reached, elapsed := 0, 0
	for i := 0; i < maxLen; i++ {
		elapsed += 800 + int(400*rng.Float()) + 150*i
		if !rng.Chance(clampFloat(base-0.035*float64(i), 0.05, 0.99)) {
			break
		}
		reached++
	}
	return Performance{
		Score:     10 * float64(reached) / maxLen,
		Correct:   reached >= 8,
		ElapsedMs: elapsed,
		Artifact:  fmt.Sprintf("recalled %d/%d", reached, maxLen),
	}
}

func simulateReflexDuel(in SimInput) Performance {
	const rounds = 5
	rng := NewStream(in.Seed)
	sk, st, en := skillOf(in.Rating), pct(in.Stats.Stress), pct(in.Stats.Energy)
	pFalse := clampFloat(0.04+0.12*in.Hints.Aggression-0.03*in.Hints.Calm, 0.01, 0.3)

	total, elapsed, falseStarts := 0.0, 0, 0
	for i := 0; i < rounds; i++ {
		if rng.Chance(pFalse) {
			falseStarts++
			elapsed += 150
			continue
		}
		reaction := 480 - 140*en + 120*st - 50*in.Hints.Focus - 60*sk - 500*roleBonus(ModeReflexDuel, in.Role) + 60*rng.Gaussian()
		reaction = clampFloat(reaction, 150, 900)
		elapsed += int(reaction)
		total += 10 * clamp01((700-reaction)/500)
	}
	return Performance{
		Score:     total / rounds,
		Correct:   falseStarts == 0,
		ElapsedMs: elapsed,
		Artifact:  fmt.Sprintf("avg %dms, %d false starts", elapsed/rounds, falseStarts),
	}
}
