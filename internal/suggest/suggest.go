// Package suggest produces "did you mean" hints for unknown wildcard names.
package suggest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/thicket/pkg/domain"
	"github.com/cockroachdb/errors"
	"github.com/sahilm/fuzzy"
)

// Limit is the number of suggestions included in a hint.
const Limit = 3

// Closest returns up to n candidates resembling name, best first.
// A candidate matches when either string is a fuzzy subsequence of the other,
// which catches both abbreviations ("colr") and extensions ("colors").
func Closest(name string, candidates []string, n int) []string {
	if name == "" || len(candidates) == 0 || n <= 0 {
		return nil
	}

	scores := make(map[string]int)
	for _, m := range fuzzy.Find(name, candidates) {
		scores[m.Str] = m.Score
	}
	target := []string{name}
	for _, c := range candidates {
		if _, ok := scores[c]; ok || c == "" {
			continue
		}
		if ms := fuzzy.Find(c, target); len(ms) > 0 {
			// Reverse matches rank below forward ones.
			scores[c] = ms[0].Score - len(name)
		}
	}

	out := make([]string, 0, len(scores))
	for c := range scores {
		if c != name {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if scores[out[i]] != scores[out[j]] {
			return scores[out[i]] > scores[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Hint formats a "did you mean" sentence, or returns "" when nothing is close.
func Hint(name string, candidates []string) string {
	closest := Closest(name, candidates, Limit)
	if len(closest) == 0 {
		return ""
	}
	return fmt.Sprintf("did you mean %s?", strings.Join(quote(closest), " or "))
}

// MissingWildcard returns domain.ErrMissingWildcard for name, carrying a hint
// with the closest known names.
func MissingWildcard(name string, known []string) error {
	err := errors.Wrapf(domain.ErrMissingWildcard, "%q", name)
	if hint := Hint(name, known); hint != "" {
		err = errors.WithHint(err, hint)
	}
	return err
}

func quote(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
