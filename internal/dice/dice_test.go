package dice

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  Notation
	}{
		{"1d20", Notation{Notation: "1d20", Count: 1, Sides: 20}},
		{"2d6+3", Notation{Notation: "2d6+3", Count: 2, Sides: 6, Modifier: 3}},
		{"1d100-2", Notation{Notation: "1d100-2", Count: 1, Sides: 100, Modifier: -2}},
		{" 3D8 + 1 ", Notation{Notation: "3d8+1", Count: 3, Sides: 8, Modifier: 1}},
		{"4d4\t-\t10", Notation{Notation: "4d4-10", Count: 4, Sides: 4, Modifier: -10}},
		{"1d1", Notation{Notation: "1d1", Count: 1, Sides: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"d20",
		"20",
		"1x20",
		"1d",
		"ad6",
		"1d6+",
		"1d6*2",
		"1d6+1+1",
		"-1d6",
		"0d6",
		"1d0",
		"1001d6",
		"1d1000001",
		"99999999999999999999d6",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidNotation), "got %v", err)
		})
	}
}

func TestParse_TooLarge(t *testing.T) {
	for _, input := range []string{
		"5000d6",
		"1d2000000",
		"1d6+1000001",
		"1d6-1000001",
		"1d6+9223372036854775807",
		"1d6+99999999999999999999",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.ErrorIs(t, err, ErrNotationTooLarge)
			require.ErrorIs(t, err, ErrInvalidNotation)
		})
	}
}

func TestParse_ModifierAtBound(t *testing.T) {
	n, err := Parse("1d1+1000000")
	require.NoError(t, err)
	assert.Equal(t, MaxModifier, n.Modifier)
	assert.Equal(t, 1_000_001, NewRoller(1).Roll(n).Total)

	n, err = Parse("1d1-1000000")
	require.NoError(t, err)
	assert.Equal(t, -999_999, NewRoller(1).Roll(n).Total)
}

func TestNotationString_RoundTrip(t *testing.T) {
	for count := 1; count <= 5; count++ {
		for _, sides := range []int{1, 4, 6, 8, 10, 12, 20, 100} {
			for _, mod := range []int{-7, -1, 0, 1, 12} {
				n := Notation{Count: count, Sides: sides, Modifier: mod}
				parsed, err := Parse(n.String())
				require.NoError(t, err)
				assert.Equal(t, n.String(), parsed.Notation)
				assert.Equal(t, parsed.Notation, parsed.String())
				assert.Equal(t, count, parsed.Count)
				assert.Equal(t, sides, parsed.Sides)
				assert.Equal(t, mod, parsed.Modifier)
			}
		}
	}
}

func TestRoll_Bounds(t *testing.T) {
	roller := NewRoller(42)

	n, err := Parse("3d6")
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		out := roller.Roll(n)
		require.Len(t, out.Rolls, 3)
		sum := 0
		for _, v := range out.Rolls {
			require.GreaterOrEqual(t, v, 1)
			require.LessOrEqual(t, v, 6)
			sum += v
		}
		require.Equal(t, sum, out.Total)
	}

	n, err = Parse("1d20+5")
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		out := roller.Roll(n)
		require.Len(t, out.Rolls, 1)
		require.GreaterOrEqual(t, out.Rolls[0], 1)
		require.LessOrEqual(t, out.Rolls[0], 20)
		require.Equal(t, out.Rolls[0]+5, out.Total)
	}
}

func TestRoll_Deterministic(t *testing.T) {
	n, err := Parse("4d10-1")
	require.NoError(t, err)

	a := NewRoller(7).Roll(n)
	b := NewRoller(7).Roll(n)
	assert.Equal(t, a, b)
}

func TestRoll_Uniform(t *testing.T) {
	const (
		sides  = 6
		trials = 60000
		// chi-square critical value for 5 degrees of freedom at p = 0.0001
		critical = 25.74
	)

	roller := NewRoller(20240601)
	counts := make([]int, sides)
	n := Notation{Notation: "1d6", Count: 1, Sides: sides}
	for i := 0; i < trials; i++ {
		out := roller.Roll(n)
		counts[out.Rolls[0]-1]++
	}

	expected := float64(trials) / sides
	chi2 := 0.0
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}
	assert.Less(t, chi2, critical, "counts %v", counts)
}

func TestNewRandomRoller(t *testing.T) {
	roller, err := NewRandomRoller()
	require.NoError(t, err)
	out := roller.Roll(Notation{Notation: "2d4", Count: 2, Sides: 4})
	assert.Len(t, out.Rolls, 2)
}

func TestOutcomeFormat(t *testing.T) {
	tests := []struct {
		name     string
		notation Notation
		outcome  Outcome
		reason   string
		system   string
		want     string
	}{
		{
			name:     "modifier and reason",
			notation: Notation{Notation: "1d20+5", Count: 1, Sides: 20, Modifier: 5},
			outcome:  Outcome{Rolls: []int{14}, Total: 19},
			reason:   "Perception check",
			system:   "Dungeons & Dragons 5th Edition (2014)",
			want:     "🎲 Rolled 1d20+5 for Perception check (Dungeons & Dragons 5th Edition (2014)): [14] +5 = **19**",
		},
		{
			name:     "negative modifier",
			notation: Notation{Notation: "2d6-1", Count: 2, Sides: 6, Modifier: -1},
			outcome:  Outcome{Rolls: []int{3, 4}, Total: 6},
			system:   "Dungeon Crawl Classics",
			want:     "🎲 Rolled 2d6-1 (Dungeon Crawl Classics): [3, 4] -1 = **6**",
		},
		{
			name:     "bare",
			notation: Notation{Notation: "3d6", Count: 3, Sides: 6},
			outcome:  Outcome{Rolls: []int{1, 2, 3}, Total: 6},
			want:     "🎲 Rolled 3d6: [1, 2, 3] = **6**",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.outcome.Format(tt.notation, tt.reason, tt.system))
		})
	}
}
