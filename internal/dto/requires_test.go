package dto_test

import (
	"testing"

	"github.com/aretw0/thicket/internal/dto"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_RequiresConditions(t *testing.T) {
	data := `
- value: storm
  requires:
    season: winter
    mood: [dark, grim]
    time:
      not: [noon]
    or:
      - {weather: rain}
      - {weather: snow, wind: {any: [strong]}}
    not:
      place: indoors
    tags: [legacy]
`
	w, err := dto.Decode("sky", domain.ScopeShared, domain.FormatYAML, []byte(data))
	require.NoError(t, err)
	require.Len(t, w.Choices, 1)
	c := w.Choices[0]

	assert.Equal(t, map[string]string{"season": "winter"}, c.Requires)
	want := domain.Rule{
		{Name: "mood", AnyOf: []string{"dark", "grim"}},
		{Op: domain.OpNot, Terms: []domain.Rule{{{Name: "place", AnyOf: []string{"indoors"}}}}},
		{Op: domain.OpOr, Terms: []domain.Rule{
			{{Name: "weather", AnyOf: []string{"rain"}}},
			{{Name: "weather", AnyOf: []string{"snow"}}, {Name: "wind", AnyOf: []string{"strong"}}},
		}},
		{Op: domain.OpTags, AnyOf: []string{"legacy"}},
		{Name: "time", NoneOf: []string{"noon"}},
	}
	if diff := cmp.Diff(want, c.Conditions); diff != "" {
		t.Errorf("conditions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"mood", "place", "season", "time", "weather", "wind"}, c.RequiredNames())

	bound := map[string][]string{
		"season":  {"winter"},
		"mood":    {"grim"},
		"time":    {"dusk"},
		"weather": {"snow"},
		"wind":    {"strong"},
		"place":   {"outdoors"},
	}
	assert.True(t, c.Satisfied(bound))

	bound["wind"] = []string{"calm"}
	assert.False(t, c.Satisfied(bound), "neither or branch holds")
	bound["weather"] = []string{"rain"}
	assert.True(t, c.Satisfied(bound))
	bound["time"] = []string{"noon"}
	assert.False(t, c.Satisfied(bound), "time excludes noon")
}

func TestEncode_RequiresConditionsRoundTrip(t *testing.T) {
	w := &domain.Wildcard{
		Name: "sky",
		Choices: []domain.Choice{{
			Value:    "storm",
			Weight:   1,
			Requires: map[string]string{"season": "winter"},
			Conditions: domain.Rule{
				{Name: "mood", AnyOf: []string{"dark", "grim"}},
				{Name: "season", NoneOf: []string{"summer"}},
				{Op: domain.OpOr, Terms: []domain.Rule{
					{{Name: "weather", AnyOf: []string{"rain"}}},
					{{Name: "time", AnyOf: []string{"night"}, NoneOf: []string{"dawn"}}},
				}},
			},
		}},
	}

	for _, format := range []domain.Format{domain.FormatJSON, domain.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := dto.Encode(w, format)
			require.NoError(t, err)

			got, err := dto.Decode("sky", domain.ScopeShared, format, data)
			require.NoError(t, err)
			require.Len(t, got.Choices, 1)
			c := got.Choices[0]
			assert.Equal(t, w.Choices[0].Requires, c.Requires)
			assert.ElementsMatch(t, w.Choices[0].RequiredNames(), c.RequiredNames())

			for _, bound := range []map[string][]string{
				{"season": {"winter"}, "mood": {"dark"}, "weather": {"rain"}},
				{"season": {"winter"}, "mood": {"dark"}, "time": {"night"}},
				{"season": {"winter"}, "mood": {"calm"}, "weather": {"rain"}},
				{"season": {"summer"}, "mood": {"dark"}, "weather": {"rain"}},
			} {
				assert.Equal(t, w.Choices[0].Satisfied(bound), c.Satisfied(bound), "%v", bound)
			}
		})
	}
}

func TestParseRequires_PinForms(t *testing.T) {
	pins, rule, err := dto.ParseRequires(map[string]any{
		"mood":  []any{"dark"},
		"time":  " night ",
		"blank": "",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"mood": "dark", "time": "night"}, pins)
	assert.Empty(t, rule)

	_, _, err = dto.ParseRequires(map[string]any{"mood": []any{1}})
	assert.ErrorContains(t, err, "mood[0]")
}
