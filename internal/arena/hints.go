package arena

import (
	"regexp"
	"strings"
)

// HintVector holds bounded [0,1] behavioral channels derived from an actor's
// recent directives. Simulators only ever see this vector, never the text.
type HintVector struct {
	Discipline float64 `json:"discipline"`
	Aggression float64 `json:"aggression"`
	Calm       float64 `json:"calm"`
	Focus      float64 `json:"focus"`
	Study      float64 `json:"study"`
}

func (h HintVector) clamped() HintVector {
	return HintVector{
		Discipline: clamp01(h.Discipline),
		Aggression: clamp01(h.Aggression),
		Calm:       clamp01(h.Calm),
		Focus:      clamp01(h.Focus),
		Study:      clamp01(h.Study),
	}
}

// DirectiveClassifier turns free-text directives (most recent first) into a
// hint vector.
type DirectiveClassifier interface {
	Classify(directives []string) HintVector
}

type channelRule struct {
	set func(*HintVector, float64)
	re  *regexp.Regexp
}

// RegexClassifier scores each channel independently by keyword hits, with
// older directives weighing less.
type RegexClassifier struct {
	rules []channelRule
	decay float64
	limit int
}

func NewRegexClassifier() *RegexClassifier {
	return &RegexClassifier{
		decay: 0.7,
		limit: 8,
		rules: []channelRule{
			{
				set: func(h *HintVector, v float64) { h.Discipline = v },
				re:  regexp.MustCompile(`(?i)\b(disciplin\w*|routine|practi[cs]e\w*|train\w*|consisten\w*|drill\w*)\b`),
			},
			{
				set: func(h *HintVector, v float64) { h.Aggression = v },
				re:  regexp.MustCompile(`(?i)\b(aggress\w*|attack\w*|crush\w*|dominat\w*|bold\w*|risk\w*|all[- ]in)\b`),
			},
			{
				set: func(h *HintVector, v float64) { h.Calm = v },
				re:  regexp.MustCompile(`(?i)\b(calm\w*|relax\w*|breath\w*|patien\w*|steady|compos\w*|meditat\w*)\b`),
			},
			{
				set: func(h *HintVector, v float64) { h.Focus = v },
				re:  regexp.MustCompile(`(?i)\b(focus\w*|concentrat\w*|precis\w*|careful\w*|accura\w*|sharp)\b`),
			},
			{
				set: func(h *HintVector, v float64) { h.Study = v },
				re:  regexp.MustCompile(`(?i)\b(stud(y|ies|ied|ying)|read\w*|learn\w*|research\w*|review\w*|prepar\w*)\b`),
			},
		},
	}
}

func (c *RegexClassifier) Classify(directives []string) HintVector {
	var out HintVector
	if len(directives) > c.limit {
		directives = directives[:c.limit]
	}
	for _, rule := range c.rules {
		score := 0.0
		weight := 1.0
		for _, d := range directives {
			d = strings.TrimSpace(d)
			if d != "" {
				hits := len(rule.re.FindAllStringIndex(d, -1))
				if hits > 2 {
					hits = 2
				}
				score += weight * float64(hits) * 0.5
			}
			weight *= c.decay
		}
		rule.set(&out, score)
	}
	return out.clamped()
}
