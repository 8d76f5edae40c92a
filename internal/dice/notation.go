// Package dice parses standard tabletop dice notation and rolls it.
package dice

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// MaxCount bounds how many dice a single expression may roll.
	MaxCount = 1000
	// MaxSides bounds the number of faces on a single die.
	MaxSides = 1_000_000
	// MaxModifier bounds the absolute value of the flat modifier.
	MaxModifier = 1_000_000
)

// ErrInvalidNotation indicates an expression does not match <count>d<sides>[+|-<modifier>].
var ErrInvalidNotation = errors.New("invalid dice notation")

// ErrNotationTooLarge indicates an expression exceeds MaxCount, MaxSides or MaxModifier.
var ErrNotationTooLarge = fmt.Errorf("%w: too many dice or sides", ErrInvalidNotation)

var notationRE = regexp.MustCompile(`^(\d+)[dD](\d+)([+-]\d+)?$`)

// Notation is a parsed dice expression such as 2d6+3.
type Notation struct {
	// Notation is the canonical form: lower-case d, no whitespace.
	Notation string `json:"notation"`
	Count    int    `json:"count"`
	Sides    int    `json:"sides"`
	Modifier int    `json:"modifier"`
}

// Parse reads a dice expression. Whitespace anywhere in the input is ignored
// and the d separator is case-insensitive.
func Parse(input string) (Notation, error) {
	compact := strings.Join(strings.Fields(input), "")
	m := notationRE.FindStringSubmatch(compact)
	if m == nil {
		return Notation{}, fmt.Errorf(`%w: %q, expected a form like "1d20", "2d6+3", "1d100-2"`, ErrInvalidNotation, input)
	}

	count, err := strconv.Atoi(m[1])
	if err != nil {
		return Notation{}, fmt.Errorf("%w: count %q: %v", ErrNotationTooLarge, m[1], err)
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil {
		return Notation{}, fmt.Errorf("%w: sides %q: %v", ErrNotationTooLarge, m[2], err)
	}
	modifier := 0
	if m[3] != "" {
		modifier, err = strconv.Atoi(m[3])
		if err != nil {
			return Notation{}, fmt.Errorf("%w: modifier %q: %v", ErrNotationTooLarge, m[3], err)
		}
	}

	if count < 1 || sides < 1 {
		return Notation{}, fmt.Errorf("%w: %q, dice count and sides must be at least 1", ErrInvalidNotation, input)
	}
	if count > MaxCount || sides > MaxSides {
		return Notation{}, fmt.Errorf("%w: %q, at most %d dice of %d sides", ErrNotationTooLarge, input, MaxCount, MaxSides)
	}
	if modifier > MaxModifier || modifier < -MaxModifier {
		return Notation{}, fmt.Errorf("%w: %q, modifier must be within ±%d", ErrNotationTooLarge, input, MaxModifier)
	}

	return Notation{
		Notation: strings.ToLower(compact),
		Count:    count,
		Sides:    sides,
		Modifier: modifier,
	}, nil
}

// String formats the notation canonically from its parts.
func (n Notation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%dd%d", n.Count, n.Sides)
	switch {
	case n.Modifier > 0:
		fmt.Fprintf(&b, "+%d", n.Modifier)
	case n.Modifier < 0:
		fmt.Fprintf(&b, "%d", n.Modifier)
	}
	return b.String()
}
