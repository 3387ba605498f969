package sanitize

import (
	"strings"
	"testing"

	"github.com/aretw0/thicket/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_SizeLimit(t *testing.T) {
	g := New(Limits{MaxBytes: 16})

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Under Limit", 15, false},
		{"Exact Limit", 16, false},
		{"Over Limit", 17, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Parse(strings.Repeat("a", tt.size))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGuard_Defaults(t *testing.T) {
	assert.Equal(t, Limits{MaxBytes: DefaultMaxBytes, MaxDirectives: DefaultMaxDirectives}, New(Limits{}).Limits())
	assert.Equal(t, 4, New(Limits{MaxBytes: -1, MaxDirectives: 4}).Limits().MaxDirectives)
}

func TestGuard_DirectiveLimit(t *testing.T) {
	g := New(Limits{MaxDirectives: 3})

	tmpl, err := g.Parse("__a__ __b__ __a__ and __ __")
	require.NoError(t, err)
	assert.Len(t, tmpl.Directives(), 3)

	_, err = g.Parse(strings.Repeat("__a__ ", 4))
	assert.ErrorIs(t, err, ErrTooManyDirectives)
	assert.ErrorContains(t, err, "count=4")
}

func TestGuard_ControlChars(t *testing.T) {
	g := New(Limits{})

	tests := []struct {
		name  string
		input string
		text  string
		names []string
	}{
		{"Normal Text", "a __color__ coat", "a red coat", []string{"color"}},
		{"Safe Controls", "line1\n__color__\tTabbed\r", "line1\nred\tTabbed\r", []string{"color"}},
		{"ANSI Code", "\x1b[31m__color__\x1b[0m", "\uFFFD[31mred\uFFFD[0m", []string{"color"}},
		{"Null Byte Breaks Directive", "__col\x00or__", "__col\uFFFDor__", nil},
		{"Bell", "ding\x07", "ding\uFFFD", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := g.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.names, tmpl.Names())

			var sb strings.Builder
			for _, span := range tmpl.Spans {
				if span.Directive != nil {
					sb.WriteString("red")
					continue
				}
				sb.WriteString(span.Literal)
			}
			assert.Equal(t, tt.text, sb.String())
		})
	}
}

func TestGuard_InvalidInput(t *testing.T) {
	g := New(Limits{})

	_, err := g.Parse("bad \xff\xfe")
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	_, err = g.Parse("__color:5-2__")
	assert.ErrorIs(t, err, domain.ErrSyntax)
}

func TestClean_Unchanged(t *testing.T) {
	in := "plain __text__"
	assert.Equal(t, in, Clean(in))
}
