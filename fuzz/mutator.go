package fuzz

import (
	"math/rand"
)

// Mutator applies biased edits to candidate pump strings. All randomness
// comes from the seeded source, so runs are reproducible.
type Mutator struct {
	rng  *rand.Rand
	pool []rune
}

// NewMutator builds a mutator drawing characters from the pattern's pool.
func NewMutator(seed int64, pool []rune) *Mutator {
	return &Mutator{
		rng:  rand.New(rand.NewSource(seed)),
		pool: pool,
	}
}

// Mutate derives a new candidate from one or two existing candidates.
func (m *Mutator) Mutate(s string, other string) string {
	if s == "" {
		s = string(m.pick())
	}
	runes := []rune(s)
	switch m.rng.Intn(5) {
	case 0:
		// Repeat one character in place.
		i := m.rng.Intn(len(runes))
		n := 1 + m.rng.Intn(3)
		out := append([]rune{}, runes[:i+1]...)
		for k := 0; k < n; k++ {
			out = append(out, runes[i])
		}
		out = append(out, runes[i+1:]...)
		return string(out)
	case 1:
		// Insert a pool character at a random position.
		i := m.rng.Intn(len(runes) + 1)
		out := append([]rune{}, runes[:i]...)
		out = append(out, m.pick())
		out = append(out, runes[i:]...)
		return string(out)
	case 2:
		// Prefix with a pool character.
		return string(m.pick()) + s
	case 3:
		// Suffix with a pool character.
		return s + string(m.pick())
	default:
		// Concatenate with another candidate.
		if other == "" {
			other = s
		}
		return s + other
	}
}

func (m *Mutator) pick() rune {
	return m.pool[m.rng.Intn(len(m.pool))]
}
