package dice

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []Group
	}{
		{"simple", "2d6+3", []Group{{Count: 2, Sides: 6, Modifier: 3}}},
		{"count defaults to one", "d20", []Group{{Count: 1, Sides: 20, Modifier: 0}}},
		{"negative modifier", "1d8-2", []Group{{Count: 1, Sides: 8, Modifier: -2}}},
		{"multiple groups", "1d20+5 2d6", []Group{{1, 20, 5}, {2, 6, 0}}},
		{"uppercase", "3D10", []Group{{Count: 3, Sides: 10, Modifier: 0}}},
		{"embedded in text", "rolling 1d12+1 for damage", []Group{{1, 12, 1}}},
		{"non-dice text", "hello there", []Group{}},
		{"empty", "", []Group{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.expr))
		})
	}
}

func TestSimulate(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	groups := Parse("2d6+3")
	results, total := Simulate(groups, rng)

	require.Len(t, results, 2)
	sum := 0
	for _, r := range results {
		assert.GreaterOrEqual(t, r, 1)
		assert.LessOrEqual(t, r, 6)
		sum += r
	}
	assert.Equal(t, sum+3, total)
}

func TestSimulateDeterministic(t *testing.T) {
	groups := Parse("4d8+1d6")

	a, aTotal := Simulate(groups, rand.New(rand.NewSource(42)))
	b, bTotal := Simulate(groups, rand.New(rand.NewSource(42)))

	assert.Equal(t, a, b)
	assert.Equal(t, aTotal, bTotal)
}

func TestClampBoundsGroupsAndCounts(t *testing.T) {
	groups := Clamp([]Group{{Count: 5000000, Sides: 6, Modifier: 2}}, 0)
	require.Len(t, groups, 1)
	assert.Equal(t, MaxDicePerGroup, groups[0].Count)
	assert.Equal(t, 2, groups[0].Modifier)

	many := make([]Group, 50)
	for i := range many {
		many[i] = Group{Count: 1, Sides: 6}
	}
	assert.Len(t, Clamp(many, 0), DefaultMaxGroups)
	assert.Len(t, Clamp(many, 3), 3)

	// In-bounds notation passes through untouched.
	assert.Equal(t, Parse("2d6+3"), Clamp(Parse("2d6+3"), 0))
}

func TestPrimaryD20(t *testing.T) {
	assert.Equal(t, 0, PrimaryD20(Parse("1d20+5")))
	assert.Equal(t, 1, PrimaryD20(Parse("2d6 1d20")))
	assert.Equal(t, -1, PrimaryD20(Parse("2d6+3")))
	assert.Equal(t, -1, PrimaryD20(nil))
}
