// Package sanitize checks raw template text from callers before it reaches
// the resolver.
package sanitize

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/thicket/internal/compiler"
	"github.com/aretw0/thicket/pkg/domain"
)

const (
	// DefaultMaxBytes fits any hand-written prompt.
	DefaultMaxBytes = 64 * 1024
	// DefaultMaxDirectives bounds the top-level directives of one template.
	DefaultMaxDirectives = 256
)

var (
	ErrInputTooLarge     = errors.New("template exceeds maximum allowed size")
	ErrInvalidUTF8       = errors.New("template contains invalid UTF-8 sequences")
	ErrTooManyDirectives = errors.New("template has too many directives")
)

// Limits bounds the templates a Guard accepts. Zero fields take the defaults.
type Limits struct {
	MaxBytes      int
	MaxDirectives int
}

// Guard parses caller-supplied template text within Limits.
type Guard struct {
	limits Limits
}

// New returns a Guard enforcing limits.
func New(limits Limits) *Guard {
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxBytes
	}
	if limits.MaxDirectives <= 0 {
		limits.MaxDirectives = DefaultMaxDirectives
	}
	return &Guard{limits: limits}
}

// Limits returns the effective limits.
func (g *Guard) Limits() Limits {
	return g.limits
}

// Parse rejects oversized or malformed text, blanks out control characters
// and parses the result. Text is rejected rather than truncated, as a cut
// directive would resolve differently.
func (g *Guard) Parse(text string) (*domain.Template, error) {
	if len(text) > g.limits.MaxBytes {
		return nil, fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(text), g.limits.MaxBytes)
	}
	if !utf8.ValidString(text) {
		return nil, ErrInvalidUTF8
	}

	tmpl, err := compiler.Parse(Clean(text))
	if err != nil {
		return nil, err
	}
	if n := len(tmpl.Directives()); n > g.limits.MaxDirectives {
		return nil, fmt.Errorf("%w: count=%d limit=%d", ErrTooManyDirectives, n, g.limits.MaxDirectives)
	}
	return tmpl, nil
}

// Clean replaces control characters other than newline, tab and carriage
// return with U+FFFD. The replacement is not a name character, so a control
// character inside __name__ breaks the directive instead of silently joining
// the two halves of the name.
func Clean(text string) string {
	if strings.IndexFunc(text, unsafeControl) < 0 {
		return text
	}
	return strings.Map(func(r rune) rune {
		if unsafeControl(r) {
			return utf8.RuneError
		}
		return r
	}, text)
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
