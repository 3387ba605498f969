package compiler_test

import (
	"errors"
	"testing"

	"github.com/aretw0/thicket/internal/compiler"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Directives(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []domain.Directive
	}{
		{
			name: "Plain",
			text: "a __hair__ girl",
			want: []domain.Directive{
				{Kind: domain.DirectivePlain, Name: "hair", Raw: "__hair__", Offset: 2, Index: 0},
			},
		},
		{
			name: "Unique",
			text: "__!color__",
			want: []domain.Directive{
				{Kind: domain.DirectiveUnique, Name: "color", Raw: "__!color__", Offset: 0, Index: 0},
			},
		},
		{
			name: "Range",
			text: "x __tags:2-4__",
			want: []domain.Directive{
				{Kind: domain.DirectiveRange, Name: "tags", Min: 2, Max: 4, Raw: "__tags:2-4__", Offset: 2, Index: 0},
			},
		},
		{
			name: "Fixed Count",
			text: "__tags:3__",
			want: []domain.Directive{
				{Kind: domain.DirectiveRange, Name: "tags", Min: 3, Max: 3, Raw: "__tags:3__", Offset: 0, Index: 0},
			},
		},
		{
			name: "Names With Spaces And Dots",
			text: "__eye color__ __v1.2__",
			want: []domain.Directive{
				{Kind: domain.DirectivePlain, Name: "eye color", Raw: "__eye color__", Offset: 0, Index: 0},
				{Kind: domain.DirectivePlain, Name: "v1.2", Raw: "__v1.2__", Offset: 14, Index: 1},
			},
		},
		{
			name: "Underscored Name",
			text: "__hair_style__",
			want: []domain.Directive{
				{Kind: domain.DirectivePlain, Name: "hair_style", Raw: "__hair_style__", Offset: 0, Index: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := compiler.Parse(tt.text)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, tmpl.Directives()); diff != "" {
				t.Errorf("directives mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_LenientLiterals(t *testing.T) {
	inputs := []string{
		"no directives at all",
		"a horizontal rule _____ stays",
		"__not closed",
		"__name:abc__ has a bad suffix",
		"snake_case_identifier",
		"__ __",
	}
	for _, in := range inputs {
		tmpl, err := compiler.Parse(in)
		require.NoError(t, err, in)
		assert.Empty(t, tmpl.Directives(), in)
		assert.Equal(t, in, tmpl.String(), "literal text must round trip")
	}
}

func TestParse_PreservesLiteralSpans(t *testing.T) {
	text := "  leading, __a__,\n\t__!b__  and __c:1-2__ trailing  "
	tmpl, err := compiler.Parse(text)
	require.NoError(t, err)

	assert.Equal(t, text, tmpl.String())
	require.Len(t, tmpl.Spans, 7)
	assert.Equal(t, "  leading, ", tmpl.Spans[0].Literal)
	assert.Equal(t, ",\n\t", tmpl.Spans[2].Literal)
	assert.Equal(t, " trailing  ", tmpl.Spans[6].Literal)
}

func TestParse_Names(t *testing.T) {
	tmpl, err := compiler.Parse("__b__ __a__ __!b__ __c:1-2__")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, tmpl.Names())
}

func TestParse_SyntaxErrors(t *testing.T) {
	text := "ok __a__\n__b:5-2__ and __c:0__ and __!d:1-2__"
	_, err := compiler.Parse(text)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSyntax))

	var synErr *domain.SyntaxError
	require.ErrorAs(t, err, &synErr)
	require.Len(t, synErr.Issues, 3, "all issues are reported in one pass")

	first := synErr.Issues[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, 1, first.Column)
	assert.Equal(t, "__b:5-2__", first.Raw)
}

func TestReferences(t *testing.T) {
	got := compiler.References("__a__ __b:9-1__ __a__ __!c__")
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestRename(t *testing.T) {
	text := "__color__, __!color__, __color:1-3__, __colorful__, __ color __"
	got, n := compiler.Rename(text, "color", "hue")
	assert.Equal(t, 4, n)
	assert.Equal(t, "__hue__, __!hue__, __hue:1-3__, __colorful__, __hue__", got)

	same, n := compiler.Rename("nothing here", "color", "hue")
	assert.Zero(t, n)
	assert.Equal(t, "nothing here", same)
}
