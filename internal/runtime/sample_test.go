package runtime

import (
	"testing"

	"github.com/aretw0/thicket/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligibleChoices(t *testing.T) {
	choices := []domain.Choice{
		{Value: "any"},
		{Value: "day only", Requires: map[string]string{"time": "day"}},
		{Value: "both", Requires: map[string]string{"time": "day", "place": "beach"}},
		{Value: "not at night", Conditions: domain.Rule{{Name: "time", NoneOf: []string{"night"}}}},
		{Value: "dusk or beach", Conditions: domain.Rule{{Op: domain.OpOr, Terms: []domain.Rule{
			{{Name: "time", AnyOf: []string{"dusk"}}},
			{{Name: "place", AnyOf: []string{"beach"}}},
		}}}},
	}

	tests := []struct {
		name     string
		bindings map[string][]string
		want     []string
	}{
		{"Nothing Bound", nil, []string{"any"}},
		{"Partial Match", map[string][]string{"time": {"day"}}, []string{"any", "day only", "not at night"}},
		{"Any Bound Value Matches", map[string][]string{"time": {"night", "day"}, "place": {"beach"}}, []string{"any", "day only", "both", "dusk or beach"}},
		{"Wrong Value", map[string][]string{"time": {"night"}}, []string{"any"}},
		{"Condition Alternative", map[string][]string{"time": {"dusk"}}, []string{"any", "not at night", "dusk or beach"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range EligibleChoices(choices, tt.bindings) {
				got = append(got, c.Value)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSample_Distinct(t *testing.T) {
	choices := []domain.Choice{{Value: "a"}, {Value: "b", Weight: 50}, {Value: "c"}, {Value: "d"}}
	rng := NewRand(9)
	for range 200 {
		got := sample(rng, choices, 3)
		require.Len(t, got, 3)
		seen := map[string]bool{}
		for _, c := range got {
			assert.False(t, seen[c.Value], "duplicate %q", c.Value)
			seen[c.Value] = true
		}
	}
	assert.Len(t, choices, 4, "input is not mutated")
	assert.Equal(t, "a", choices[0].Value)
}

func TestPick_ZeroWeightDefaultsToOne(t *testing.T) {
	choices := []domain.Choice{{Value: "a", Weight: 0}, {Value: "b", Weight: 1}}
	rng := NewRand(1)
	counts := map[int]int{}
	for range 2000 {
		counts[pick(rng, choices)]++
	}
	assert.InDelta(t, 0.5, float64(counts[0])/2000, 0.05)
}

func TestNewRand_Deterministic(t *testing.T) {
	a, b := NewRand(5), NewRand(5)
	for range 10 {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
	assert.NotEqual(t, NewRand(5).Uint64(), NewRand(6).Uint64())
}
