package dto

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/thicket/internal/compiler"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// RawChoice is the persisted object form of a choice.
// It uses "mapstructure" tags to match the keys written by editors and tools.
type RawChoice struct {
	Value    string         `mapstructure:"value"`
	Weight   *float64       `mapstructure:"weight"`
	Tags     []string       `mapstructure:"tags"`
	Requires map[string]any `mapstructure:"requires"`
	// Includes is either a list of names or a string such as "[hat] [shoes]".
	Includes any `mapstructure:"includes"`
}

var choiceSchema = schema.Schema{
	"value":    {Type: schema.NonEmptyString(), Required: true},
	"weight":   {Type: schema.PositiveNumber()},
	"tags":     {Type: schema.Slice(schema.String())},
	"requires": {Type: schema.Custom("requires", isRequires)},
	"includes": {Type: schema.OneOf(schema.String(), schema.Slice(schema.String()))},
}

var fileSchema = schema.Schema{
	"description": {Type: schema.String()},
	"choices":     {Type: schema.Slice(schema.Custom("string|object", isChoiceItem)), Required: true},
	"includes":    {Type: schema.OneOf(schema.String(), schema.Slice(schema.String()))},
}

var bracketInclude = regexp.MustCompile(`\[([A-Za-z0-9_.-]+?)\]`)

// Decode parses persisted wildcard content in the given format and normalizes
// every choice into the canonical domain form. Field level problems are
// reported together as a *schema.AggregateError.
func Decode(name string, scope domain.Scope, format domain.Format, data []byte) (*domain.Wildcard, error) {
	w := &domain.Wildcard{Name: name, Scope: scope, Format: format}

	if format == domain.FormatText {
		w.Choices = decodeText(data)
		return w, nil
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return w, nil
	}

	raw, err := unmarshal(format, data)
	if err != nil {
		return nil, err
	}

	var items []any
	switch v := raw.(type) {
	case nil:
		return w, nil
	case []any:
		items = v
	case map[string]any:
		if err := schema.Validate(fileSchema, v); err != nil {
			return nil, err
		}
		w.Description, _ = v["description"].(string)
		w.Includes = ParseIncludes(v["includes"])
		items, _ = v["choices"].([]any)
	default:
		return nil, fmt.Errorf("expected a list of choices or an object with a choices list, got %T", raw)
	}

	var aggr schema.AggregateError
	for i, item := range items {
		c, ok, err := decodeChoice(fmt.Sprintf("choices[%d]", i), item)
		if err != nil {
			aggr.Append(err)
			continue
		}
		if ok {
			w.Choices = append(w.Choices, c)
		}
	}
	if err := aggr.OrNil(); err != nil {
		return nil, err
	}
	return w, nil
}

func unmarshal(format domain.Format, data []byte) (any, error) {
	var raw any
	switch format {
	case domain.FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
	}
	return raw, nil
}

// decodeChoice normalizes one list item. Blank strings are skipped (ok=false).
func decodeChoice(path string, item any) (domain.Choice, bool, error) {
	switch v := item.(type) {
	case string:
		value := strings.TrimSpace(v)
		if value == "" {
			return domain.Choice{}, false, nil
		}
		return domain.Choice{Value: value, Weight: 1}, true, nil

	case map[string]any:
		if err := schema.ValidateAt(path, choiceSchema, v); err != nil {
			return domain.Choice{}, false, err
		}
		var rc RawChoice
		if err := mapstructure.Decode(v, &rc); err != nil {
			return domain.Choice{}, false, &schema.ValidationError{Key: path, Reason: err.Error(), Value: item}
		}
		return rc.Normalize(), true, nil
	}
	return domain.Choice{}, false, &schema.ValidationError{Key: path, Reason: "expected string or object", Value: item}
}

// Normalize converts the raw record into the canonical Choice.
func (rc RawChoice) Normalize() domain.Choice {
	c := domain.Choice{
		Value:    strings.TrimSpace(rc.Value),
		Weight:   1,
		Tags:     cleanList(rc.Tags),
		Includes: ParseIncludes(rc.Includes),
	}
	if rc.Weight != nil && domain.ValidWeight(*rc.Weight) {
		c.Weight = *rc.Weight
	}
	if rc.Requires != nil {
		// Decode validated the object; a malformed one set by hand is dropped.
		if pins, rule, err := ParseRequires(rc.Requires); err == nil {
			c.Requires, c.Conditions = pins, rule
		}
	}
	return c
}

// ParseIncludes accepts the list form or the string form of includes.
// In the string form names are written as directives (__hat__) or in brackets ([hat]).
func ParseIncludes(v any) []string {
	switch inc := v.(type) {
	case nil:
		return nil
	case string:
		names := compiler.References(inc)
		for _, m := range bracketInclude.FindAllStringSubmatch(inc, -1) {
			names = append(names, m[1])
		}
		return cleanList(names)
	case []string:
		return cleanList(inc)
	case []any:
		names := make([]string, 0, len(inc))
		for _, item := range inc {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		return cleanList(names)
	}
	return nil
}

func decodeText(data []byte) []domain.Choice {
	var out []domain.Choice
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, domain.Choice{Value: line, Weight: 1})
	}
	return out
}

func isChoiceItem(v any) error {
	switch v.(type) {
	case string, map[string]any:
		return nil
	}
	return fmt.Errorf("expected string or object, got %T", v)
}

func isRequires(v any) error {
	_, _, err := ParseRequires(v)
	return err
}

func cleanList(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
