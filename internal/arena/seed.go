package arena

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Hash32 folds a composite key into a 32-bit seed (FNV-1a).
func Hash32(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32()
}

// SeedKey joins stable identifiers into a composite key. The same logical
// event must always produce the same key, so callers pass codes and ordinals,
// never timestamps.
func SeedKey(parts ...any) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, fmt.Sprint(p))
	}
	return strings.Join(out, "|")
}

// DeriveSeed is Hash32(SeedKey(parts...)).
func DeriveSeed(parts ...any) uint32 {
	return Hash32(SeedKey(parts...))
}

// Stream is a reproducible pseudo-random sequence (mulberry32). It is not
// safe for concurrent use; derive one stream per purpose instead of sharing.
type Stream struct {
	state uint32
}

func NewStream(seed uint32) *Stream {
	return &Stream{state: seed}
}

// PRNG returns a closure yielding doubles in [0,1) for the given seed.
func PRNG(seed uint32) func() float64 {
	return NewStream(seed).Float
}

func (s *Stream) Float() float64 {
	s.state += 0x6D2B79F5
	t := s.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// IntRange draws an integer in [lo, hi] inclusive.
func (s *Stream) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + int(s.Float()*float64(hi-lo+1))
}

// Chance reports true with probability p.
func (s *Stream) Chance(p float64) bool {
	return s.Float() < p
}

// WeightedChoice returns an index drawn proportionally to weights, or -1
// when no weight is positive.
func (s *Stream) WeightedChoice(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	r := s.Float() * total
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		if r < w {
			return i
		}
		r -= w
	}
	return last
}

// Shuffle is a Fisher-Yates shuffle driven by the stream.
func (s *Stream) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := int(s.Float() * float64(i+1))
		swap(i, j)
	}
}

// Gaussian approximates a standard normal draw (Irwin-Hall, 6 uniforms).
func (s *Stream) Gaussian() float64 {
	sum := 0.0
	for i := 0; i < 6; i++ {
		sum += s.Float()
	}
	return (sum - 3) / 0.7071067811865476
}
