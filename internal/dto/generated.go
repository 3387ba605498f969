package dto

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/schema"
)

// ErrNoChoices is returned when generated text holds no usable choice list.
var ErrNoChoices = errors.New("no choices found in generated text")

// NormalizeGenerated extracts choices from free-form generator output.
// The text may wrap the JSON list in prose or a code fence. Nested lists are
// flattened, stringified objects are parsed, underscores in values become
// spaces and empty entries are dropped. Values are deduplicated after
// normalization, keeping the first occurrence.
func NormalizeGenerated(text string) ([]domain.Choice, error) {
	items, err := extractList(text)
	if err != nil {
		return nil, err
	}
	choices := domain.MergeChoices(nil, sanitize(items)...)
	if len(choices) == 0 {
		return nil, ErrNoChoices
	}
	return choices, nil
}

func extractList(text string) ([]any, error) {
	text = strings.TrimSpace(text)

	start, end := strings.IndexByte(text, '['), strings.LastIndexByte(text, ']')
	if start >= 0 && end > start {
		var items []any
		if err := json.Unmarshal([]byte(text[start:end+1]), &items); err == nil {
			return items, nil
		}
	}

	start, end = strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		var obj map[string]any
		if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err == nil {
			if items, ok := obj["choices"].([]any); ok {
				return items, nil
			}
		}
	}
	return nil, ErrNoChoices
}

func sanitize(items []any) []domain.Choice {
	var out []domain.Choice
	for _, item := range items {
		if s, ok := item.(string); ok {
			trimmed := strings.TrimSpace(s)
			if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
				var obj map[string]any
				if json.Unmarshal([]byte(trimmed), &obj) == nil {
					item = obj
				}
			}
		}

		switch v := item.(type) {
		case string:
			if value := cleanValue(v); value != "" {
				out = append(out, domain.Choice{Value: value, Weight: 1})
			}
		case map[string]any:
			if c, ok := sanitizeObject(v); ok {
				out = append(out, c)
			}
		case []any:
			out = append(out, sanitize(v)...)
		}
	}
	return out
}

func sanitizeObject(obj map[string]any) (domain.Choice, bool) {
	value, _ := obj["value"].(string)
	c := domain.Choice{Value: cleanValue(value), Weight: 1}
	if c.Value == "" {
		return c, false
	}
	if w, ok := schema.AsFloat(obj["weight"]); ok && domain.ValidWeight(w) {
		c.Weight = w
	}
	c.Tags = cleanList(stringList(obj["tags"]))
	c.Includes = ParseIncludes(obj["includes"])

	if reqs, ok := obj["requires"].(map[string]any); ok {
		// Requires that do not parse are dropped with nothing else lost.
		if pins, rule, err := parseRequires(reqs, cleanValue); err == nil {
			c.Requires, c.Conditions = pins, rule
		}
	}
	return c, true
}

func cleanValue(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
