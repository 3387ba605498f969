package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
)

func TestStringType(t *testing.T) {
	typ := String()

	if typ.Name() != "string" {
		t.Errorf("Name() = %q, want %q", typ.Name(), "string")
	}

	tests := []struct {
		value   any
		wantErr bool
	}{
		{"hello", false},
		{"", false},
		{42, true},
		{3.14, true},
		{true, true},
		{nil, true},
	}

	for _, tt := range tests {
		err := typ.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestNonEmptyStringType(t *testing.T) {
	typ := NonEmptyString()

	tests := []struct {
		value   any
		wantErr bool
	}{
		{"neon", false},
		{"", true},
		{"   ", true},
		{7, true},
	}

	for _, tt := range tests {
		err := typ.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestNumberTypes(t *testing.T) {
	tests := []struct {
		typ     Type
		value   any
		wantErr bool
	}{
		{Number(), 1.5, false},
		{Number(), 3, false},
		{Number(), int64(-2), false},
		{Number(), json.Number("4.25"), false},
		{Number(), "3", true},
		{PositiveNumber(), 0.1, false},
		{PositiveNumber(), 0, true},
		{PositiveNumber(), -1.0, true},
		{Number(), math.Inf(-1), true},
		{PositiveNumber(), math.Inf(1), true},
		{PositiveNumber(), math.NaN(), true},
	}

	for _, tt := range tests {
		err := tt.typ.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s.Validate(%v) error = %v, wantErr %v", tt.typ.Name(), tt.value, err, tt.wantErr)
		}
	}
}

func TestSliceType(t *testing.T) {
	typ := Slice(String())

	if typ.Name() != "[string]" {
		t.Errorf("Name() = %q, want %q", typ.Name(), "[string]")
	}

	tests := []struct {
		value   any
		wantErr bool
	}{
		{[]string{"a", "b"}, false},
		{[]any{"a", "b"}, false},
		{[]any{}, false},
		{[]any{"a", 1}, true},
		{"not a list", true},
	}

	for _, tt := range tests {
		err := typ.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestMapType(t *testing.T) {
	typ := Map(String())

	if typ.Name() != "{string}" {
		t.Errorf("Name() = %q, want %q", typ.Name(), "{string}")
	}

	tests := []struct {
		value   any
		wantErr bool
	}{
		{map[string]any{"mood": "dark"}, false},
		{map[string]string{"mood": "dark"}, false},
		{map[string]any{"mood": []any{"dark", "calm"}}, true},
		{map[int]any{1: "x"}, true},
		{[]any{"mood"}, true},
	}

	for _, tt := range tests {
		err := typ.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestOneOfType(t *testing.T) {
	typ := OneOf(String(), Slice(String()))

	if typ.Name() != "string|[string]" {
		t.Errorf("Name() = %q, want %q", typ.Name(), "string|[string]")
	}
	if err := typ.Validate("[hat]"); err != nil {
		t.Errorf("Validate(string) error = %v", err)
	}
	if err := typ.Validate([]any{"hat"}); err != nil {
		t.Errorf("Validate(list) error = %v", err)
	}
	if err := typ.Validate(12); err == nil {
		t.Error("Validate(12) should fail")
	}
}

func TestCustomType(t *testing.T) {
	lower := Custom("lowercase", func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string")
		}
		for _, r := range s {
			if r >= 'A' && r <= 'Z' {
				return fmt.Errorf("must be lowercase")
			}
		}
		return nil
	})

	if lower.Name() != "lowercase" {
		t.Errorf("Name() = %q, want %q", lower.Name(), "lowercase")
	}
	if err := lower.Validate("neon"); err != nil {
		t.Errorf("Validate(neon) error = %v", err)
	}
	if err := lower.Validate("Neon"); err == nil {
		t.Error("Validate(Neon) should fail")
	}
}
