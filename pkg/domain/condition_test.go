package domain_test

import (
	"testing"

	"github.com/aretw0/thicket/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestRule_Holds(t *testing.T) {
	dark := domain.Rule{{Name: "mood", AnyOf: []string{"dark"}}}
	night := domain.Rule{{Name: "time", AnyOf: []string{"night"}}}

	tests := []struct {
		name  string
		rule  domain.Rule
		bound map[string][]string
		want  bool
	}{
		{"Empty", nil, nil, true},
		{"Unbound Name", dark, nil, false},
		{"Any Of", domain.Rule{{Name: "mood", AnyOf: []string{"grim", "dark"}}}, map[string][]string{"mood": {"dark"}}, true},
		{"None Of", domain.Rule{{Name: "mood", NoneOf: []string{"dark"}}}, map[string][]string{"mood": {"calm"}}, true},
		{"None Of Hit", domain.Rule{{Name: "mood", NoneOf: []string{"dark"}}}, map[string][]string{"mood": {"calm", "dark"}}, false},
		{"Bound Only", domain.Rule{{Name: "mood"}}, map[string][]string{"mood": {"calm"}}, true},
		{"Or", domain.Rule{{Op: domain.OpOr, Terms: []domain.Rule{dark, night}}}, map[string][]string{"time": {"night"}}, true},
		{"And", domain.Rule{{Op: domain.OpAnd, Terms: []domain.Rule{dark, night}}}, map[string][]string{"time": {"night"}}, false},
		{"Not", domain.Rule{{Op: domain.OpNot, Terms: []domain.Rule{dark}}}, map[string][]string{"mood": {"calm"}}, true},
		{"Not Unbound", domain.Rule{{Op: domain.OpNot, Terms: []domain.Rule{dark}}}, nil, true},
		{"Tags Ignored", domain.Rule{{Op: domain.OpTags, AnyOf: []string{"x"}}}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Holds(tt.bound))
		})
	}
}

func TestRule_Rewrites(t *testing.T) {
	rule := domain.Rule{
		{Name: "mood", AnyOf: []string{"dark"}},
		{Op: domain.OpOr, Terms: []domain.Rule{
			{{Name: "mood", NoneOf: []string{"dark", "calm"}}},
			{{Name: "time", AnyOf: []string{"night"}}},
		}},
	}
	clone := rule.Clone()

	assert.Equal(t, []string{"mood", "time"}, rule.Names())
	assert.Equal(t, []string{"dark", "calm"}, rule.Values("mood"))
	assert.Equal(t, "mood=dark and (mood not in [dark, calm] or time=night)", rule.String())

	assert.Equal(t, 2, rule.RenameWildcard("mood", "tone"))
	assert.Equal(t, 2, rule.ReplaceValue("tone", "dark", "grim"))
	assert.Equal(t, []string{"grim", "calm"}, rule.Values("tone"))

	assert.Equal(t, []string{"mood", "time"}, clone.Names(), "the clone is unaffected")
	assert.Equal(t, []string{"dark", "calm"}, clone.Values("mood"))
}

func TestMergeChoices_Conditions(t *testing.T) {
	cond := domain.Rule{{Name: "mood", AnyOf: []string{"dark"}}}
	merged := domain.MergeChoices(
		[]domain.Choice{{Value: "rain", Weight: 1, Conditions: cond}},
		domain.Choice{Value: "Rain", Weight: 1, Conditions: domain.Rule{
			{Name: "mood", AnyOf: []string{"dark"}},
			{Name: "time", NoneOf: []string{"noon"}},
		}},
	)
	assert.Len(t, merged, 1)
	assert.Equal(t, []string{"mood", "time"}, merged[0].RequiredNames())
	assert.Len(t, merged[0].Conditions, 2)
}
