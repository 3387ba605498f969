package dto

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/thicket/pkg/domain"
)

// ParseRequires reads a requires object. Entries naming a wildcard with a
// single value become pins; value lists, {"any": [...], "not": [...]} tests
// and the and/or/not/tags operators become conditions.
func ParseRequires(v any) (map[string]string, domain.Rule, error) {
	return parseRequires(v, strings.TrimSpace)
}

func parseRequires(v any, clean func(string) string) (map[string]string, domain.Rule, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("expected an object, got %T", v)
	}
	p := requiresParser{clean: clean}

	var (
		pins map[string]string
		rule domain.Rule
	)
	for _, key := range sortedKeys(obj) {
		name := strings.TrimSpace(key)
		if !domain.IsConditionOp(name) {
			if value, ok := p.pin(obj[key]); ok {
				if value == "" {
					continue
				}
				if pins == nil {
					pins = make(map[string]string)
				}
				pins[name] = value
				continue
			}
		}
		c, err := p.entry(name, obj[key])
		if err != nil {
			return nil, nil, err
		}
		rule = append(rule, c)
	}
	return pins, rule, nil
}

type requiresParser struct {
	clean func(string) string
}

// pin accepts a string or a one-element string list.
func (p requiresParser) pin(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return p.clean(t), true
	case []any:
		if len(t) == 1 {
			if s, ok := t[0].(string); ok && p.clean(s) != "" {
				return p.clean(s), true
			}
		}
	}
	return "", false
}

func (p requiresParser) entry(key string, v any) (domain.Condition, error) {
	switch op := domain.ConditionOp(key); op {
	case domain.OpAnd, domain.OpOr, domain.OpNot:
		terms, err := p.terms(key, v)
		if err != nil {
			return domain.Condition{}, err
		}
		return domain.Condition{Op: op, Terms: terms}, nil
	case domain.OpTags:
		tags, err := p.values(key, v)
		if err != nil {
			return domain.Condition{}, err
		}
		return domain.Condition{Op: op, AnyOf: tags}, nil
	}

	if key == "" {
		return domain.Condition{}, fmt.Errorf("empty wildcard name")
	}
	c := domain.Condition{Name: key}
	obj, ok := v.(map[string]any)
	if !ok {
		values, err := p.values(key, v)
		if err != nil {
			return domain.Condition{}, err
		}
		c.AnyOf = values
		return c, nil
	}
	for _, k := range sortedKeys(obj) {
		values, err := p.values(key+"."+k, obj[k])
		if err != nil {
			return domain.Condition{}, err
		}
		switch k {
		case "any":
			c.AnyOf = values
		case "not":
			c.NoneOf = values
		default:
			return domain.Condition{}, fmt.Errorf("%s: unknown test %q, expected any or not", key, k)
		}
	}
	return c, nil
}

// terms reads an operator operand. Every entry of an object is a term of its
// own. Every object of a list is one term.
func (p requiresParser) terms(key string, v any) ([]domain.Rule, error) {
	var terms []domain.Rule
	switch t := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(t) {
			c, err := p.entry(strings.TrimSpace(k), t[k])
			if err != nil {
				return nil, err
			}
			terms = append(terms, domain.Rule{c})
		}
	case []any:
		for i, item := range t {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected an object, got %T", key, i, item)
			}
			var rule domain.Rule
			for _, k := range sortedKeys(obj) {
				c, err := p.entry(strings.TrimSpace(k), obj[k])
				if err != nil {
					return nil, err
				}
				rule = append(rule, c)
			}
			terms = append(terms, rule)
		}
	default:
		return nil, fmt.Errorf("%s: expected an object or a list, got %T", key, v)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%s: no terms", key)
	}
	return terms, nil
}

func (p requiresParser) values(key string, v any) ([]string, error) {
	var raw []any
	switch t := v.(type) {
	case string:
		raw = []any{t}
	case []any:
		raw = t
	default:
		return nil, fmt.Errorf("%s: expected a string or a list of strings, got %T", key, v)
	}
	var out []string
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: expected a string, got %T", key, i, item)
		}
		if s = p.clean(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no values", key)
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodeRequires renders pins and conditions back into one requires object.
// Conditions that cannot share the object's keys are moved into "and".
func EncodeRequires(pins map[string]string, rule domain.Rule) map[string]any {
	if len(pins) == 0 && len(rule) == 0 {
		return nil
	}
	out := make(map[string]any, len(pins)+len(rule))
	for k, v := range pins {
		out[k] = v
	}
	var overflow []any
	for _, c := range rule {
		key, val := encodeCondition(c)
		if _, taken := out[key]; taken {
			overflow = append(overflow, map[string]any{key: val})
			continue
		}
		out[key] = val
	}
	if len(overflow) > 0 {
		and, _ := out[string(domain.OpAnd)].([]any)
		out[string(domain.OpAnd)] = append(and, overflow...)
	}
	return out
}

func encodeRule(r domain.Rule) map[string]any {
	out := EncodeRequires(nil, r)
	if out == nil {
		return map[string]any{}
	}
	return out
}

func encodeCondition(c domain.Condition) (string, any) {
	switch c.Op {
	case domain.OpAnd, domain.OpOr, domain.OpNot:
		terms := make([]any, len(c.Terms))
		for i, t := range c.Terms {
			terms[i] = encodeRule(t)
		}
		return string(c.Op), terms
	case domain.OpTags:
		return string(c.Op), c.AnyOf
	}

	if len(c.NoneOf) == 0 {
		switch len(c.AnyOf) {
		case 0:
			return c.Name, map[string]any{}
		case 1:
			return c.Name, c.AnyOf[0]
		}
		return c.Name, c.AnyOf
	}
	test := map[string]any{"not": c.NoneOf}
	if len(c.AnyOf) > 0 {
		test["any"] = c.AnyOf
	}
	return c.Name, test
}
