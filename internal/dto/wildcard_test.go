package dto_test

import (
	"errors"
	"math"
	"testing"

	"github.com/aretw0/thicket/internal/dto"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Shapes(t *testing.T) {
	tests := []struct {
		name   string
		format domain.Format
		data   string
		want   []domain.Choice
		desc   string
		incl   []string
	}{
		{
			name:   "List Of Strings",
			format: domain.FormatJSON,
			data:   `["red", " blue ", ""]`,
			want: []domain.Choice{
				{Value: "red", Weight: 1},
				{Value: "blue", Weight: 1},
			},
		},
		{
			name:   "List Of Objects",
			format: domain.FormatJSON,
			data: `[
				{"value": "neon", "weight": 3, "tags": ["light"], "requires": {"mood": "dark"}, "includes": ["glow"]},
				{"value": "soft"}
			]`,
			want: []domain.Choice{
				{Value: "neon", Weight: 3, Tags: []string{"light"}, Requires: map[string]string{"mood": "dark"}, Includes: []string{"glow"}},
				{Value: "soft", Weight: 1},
			},
		},
		{
			name:   "Mixed List",
			format: domain.FormatJSON,
			data:   `["plain", {"value": "rich", "weight": 0.5}]`,
			want: []domain.Choice{
				{Value: "plain", Weight: 1},
				{Value: "rich", Weight: 0.5},
			},
		},
		{
			name:   "Object Shape With String Includes",
			format: domain.FormatJSON,
			data:   `{"description": "Hats", "choices": ["cap", {"value": "beret", "includes": "wearing a __color__ [fabric]"}], "includes": ["color"]}`,
			want: []domain.Choice{
				{Value: "cap", Weight: 1},
				{Value: "beret", Weight: 1, Includes: []string{"color", "fabric"}},
			},
			desc: "Hats",
			incl: []string{"color"},
		},
		{
			name:   "YAML",
			format: domain.FormatYAML,
			data: `
- dawn
- value: dusk
  weight: 2
  requires:
    sky: clear
`,
			want: []domain.Choice{
				{Value: "dawn", Weight: 1},
				{Value: "dusk", Weight: 2, Requires: map[string]string{"sky": "clear"}},
			},
		},
		{
			name:   "Legacy Text",
			format: domain.FormatText,
			data:   "# comment\nred\n\n  green  \n",
			want: []domain.Choice{
				{Value: "red", Weight: 1},
				{Value: "green", Weight: 1},
			},
		},
		{
			name:   "Empty File",
			format: domain.FormatJSON,
			data:   "  \n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := dto.Decode("thing", domain.ScopeShared, tt.format, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, "thing", w.Name)
			assert.Equal(t, tt.format, w.Format)
			assert.Equal(t, tt.desc, w.Description)
			assert.Equal(t, tt.incl, w.Includes)
			if diff := cmp.Diff(tt.want, w.Choices); diff != "" {
				t.Errorf("choices mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_DuplicatesArePermitted(t *testing.T) {
	w, err := dto.Decode("dup", domain.ScopeShared, domain.FormatJSON, []byte(`["Red", "red ", "RED"]`))
	require.NoError(t, err)
	assert.Len(t, w.Choices, 3)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantKeys []string
	}{
		{name: "Invalid JSON", data: `["unterminated"`},
		{name: "Scalar Root", data: `42`},
		{name: "Missing Value", data: `[{"weight": 2}]`, wantKeys: []string{"choices[0].value"}},
		{name: "Negative Weight", data: `[{"value": "x", "weight": -1}]`, wantKeys: []string{"choices[0].weight"}},
		{
			name:     "Numeric Requires",
			data:     `["ok", {"value": "y", "requires": {"mood": 3}}, 7]`,
			wantKeys: []string{"choices[1].requires", "choices[2]"},
		},
		{name: "Unknown Requires Test", data: `[{"value": "x", "requires": {"mood": {"some": "dark"}}}]`, wantKeys: []string{"choices[0].requires"}},
		{name: "Empty Operator", data: `[{"value": "x", "requires": {"or": []}}]`, wantKeys: []string{"choices[0].requires"}},
		{name: "Object Without Choices", data: `{"description": "nothing"}`, wantKeys: []string{"choices"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dto.Decode("bad", domain.ScopeShared, domain.FormatJSON, []byte(tt.data))
			require.Error(t, err)
			if tt.wantKeys == nil {
				return
			}
			var keys []string
			for _, e := range schema.ValidationErrors(err) {
				var ve *schema.ValidationError
				require.True(t, errors.As(e, &ve))
				keys = append(keys, ve.Key)
			}
			assert.Equal(t, tt.wantKeys, keys)
		})
	}
}

func TestDecode_NonFiniteWeights(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Positive Infinity", "- a\n- value: huge\n  weight: .inf\n"},
		{"Negative Infinity", "- value: tiny\n  weight: -.inf\n"},
		{"Not A Number", "- value: odd\n  weight: .nan\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dto.Decode("w", domain.ScopeShared, domain.FormatYAML, []byte(tt.data))
			require.Error(t, err)
			assert.ErrorContains(t, err, "weight")
			assert.ErrorContains(t, err, "finite")
		})
	}

	c := dto.RawChoice{Value: "x", Weight: ptr(math.Inf(1))}.Normalize()
	assert.Equal(t, 1.0, c.Weight)
	assert.Equal(t, 1.0, domain.Choice{Value: "y", Weight: math.NaN()}.EffectiveWeight())
}

func ptr[T any](v T) *T { return &v }

func TestEncode_RoundTrip(t *testing.T) {
	w := &domain.Wildcard{
		Name: "lighting",
		Choices: []domain.Choice{
			{Value: "neon", Weight: 2, Requires: map[string]string{"mood": "dark"}},
			{Value: "soft", Weight: 1},
		},
	}

	for _, format := range []domain.Format{domain.FormatJSON, domain.FormatYAML} {
		data, err := dto.Encode(w, format)
		require.NoError(t, err)

		back, err := dto.Decode("lighting", domain.ScopeShared, format, data)
		require.NoError(t, err, string(data))
		if diff := cmp.Diff(w.Choices, back.Choices); diff != "" {
			t.Errorf("%s round trip mismatch (-want +got):\n%s", format, diff)
		}
	}
}

func TestEncode_Shapes(t *testing.T) {
	plain := &domain.Wildcard{Choices: []domain.Choice{{Value: "a", Weight: 1}, {Value: "b"}}}
	data, err := dto.Encode(plain, domain.FormatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `["a", "b"]`, string(data))

	described := &domain.Wildcard{Description: "letters", Choices: plain.Choices, Includes: []string{"digits"}}
	data, err = dto.Encode(described, domain.FormatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"description": "letters", "choices": ["a", "b"], "includes": ["digits"]}`, string(data))
}

func TestParseIncludes(t *testing.T) {
	assert.Nil(t, dto.ParseIncludes(nil))
	assert.Equal(t, []string{"hat", "shoes"}, dto.ParseIncludes([]any{" hat ", "", "shoes", 3}))
	assert.Equal(t, []string{"hat", "shoes"}, dto.ParseIncludes("[hat] and [shoes] [hat]"))
	assert.Equal(t, []string{"hat"}, dto.ParseIncludes("wearing a __hat__"))
}
