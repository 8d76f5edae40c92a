package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
)

// Outcome is the result of rolling a Notation.
type Outcome struct {
	Rolls []int `json:"rolls"`
	Total int   `json:"total"`
}

// Roller draws dice from a pseudo-random source. It is safe for concurrent use.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller returns a Roller whose sequence is fully determined by seed.
func NewRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// NewRandomRoller returns a Roller seeded from crypto/rand.
func NewRandomRoller() (*Roller, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewRoller(seed), nil
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Roll draws n.Count independent dice uniformly in [1, n.Sides] and adds
// n.Modifier to their sum. Count and Sides are assumed valid, as produced by
// Parse; a zero or negative Count yields no rolls.
func (r *Roller) Roll(n Notation) Outcome {
	rolls := make([]int, 0, max(n.Count, 0))
	sum := 0

	r.mu.Lock()
	for i := 0; i < n.Count; i++ {
		v := rollDie(r.rng, n.Sides)
		rolls = append(rolls, v)
		sum += v
	}
	r.mu.Unlock()

	return Outcome{Rolls: rolls, Total: sum + n.Modifier}
}

// rollDie rolls a single die with the provided number of sides.
func rollDie(rng *rand.Rand, sides int) int {
	return rng.Intn(sides) + 1
}

// Format renders the outcome for a chat transcript, for example
// "🎲 Rolled 1d20+5 for Perception (D&D 5E): [14] +5 = **19**".
// reason and system may be empty.
func (o Outcome) Format(n Notation, reason, system string) string {
	parts := make([]string, len(o.Rolls))
	for i, v := range o.Rolls {
		parts[i] = strconv.Itoa(v)
	}

	var b strings.Builder
	b.WriteString("🎲 Rolled ")
	b.WriteString(n.Notation)
	if reason != "" {
		b.WriteString(" for ")
		b.WriteString(reason)
	}
	if system != "" {
		fmt.Fprintf(&b, " (%s)", system)
	}
	fmt.Fprintf(&b, ": [%s]", strings.Join(parts, ", "))
	switch {
	case n.Modifier > 0:
		fmt.Fprintf(&b, " +%d", n.Modifier)
	case n.Modifier < 0:
		fmt.Fprintf(&b, " %d", n.Modifier)
	}
	fmt.Fprintf(&b, " = **%d**", o.Total)
	return b.String()
}
