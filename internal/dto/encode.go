package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aretw0/thicket/pkg/domain"
	"gopkg.in/yaml.v3"
)

type choiceRecord struct {
	Value    string         `json:"value" yaml:"value"`
	Weight   float64        `json:"weight,omitempty" yaml:"weight,omitempty"`
	Tags     []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Requires map[string]any `json:"requires,omitempty" yaml:"requires,omitempty"`
	Includes []string       `json:"includes,omitempty" yaml:"includes,omitempty"`
}

type fileRecord struct {
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Choices     []any    `json:"choices" yaml:"choices"`
	Includes    []string `json:"includes,omitempty" yaml:"includes,omitempty"`
}

// Encode renders a wildcard for persistence. Plain choices are written as bare
// strings. The object form is only used when the file carries a description or
// file-level includes. The text format is never written: legacy files are
// migrated to JSON.
func Encode(w *domain.Wildcard, format domain.Format) ([]byte, error) {
	choices := make([]any, len(w.Choices))
	for i, c := range w.Choices {
		if c.IsPlain() {
			choices[i] = c.Value
			continue
		}
		rec := choiceRecord{
			Value:    c.Value,
			Tags:     c.Tags,
			Requires: EncodeRequires(c.Requires, c.Conditions),
			Includes: c.Includes,
		}
		if c.Weight != 1 {
			rec.Weight = c.Weight
		}
		choices[i] = rec
	}

	var doc any = choices
	if w.Description != "" || len(w.Includes) > 0 {
		doc = fileRecord{Description: w.Description, Choices: choices, Includes: w.Includes}
	}

	switch format {
	case domain.FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(data, '\n'), nil
	}
}

// WriteFormat returns the format a wildcard is persisted in.
func WriteFormat(f domain.Format) domain.Format {
	if f == domain.FormatYAML {
		return domain.FormatYAML
	}
	return domain.FormatJSON
}
