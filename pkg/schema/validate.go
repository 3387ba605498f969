package schema

import "sort"

// Field describes one key of a record.
type Field struct {
	Type     Type
	Required bool
}

// Schema is a map of field names to their expectations.
type Schema map[string]Field

// Validate checks if data conforms to the schema.
// Returns an *AggregateError with all validation failures found.
func Validate(schema Schema, data map[string]any) error {
	return ValidateAt("", schema, data)
}

// ValidateAt is Validate with every reported key prefixed by path.
func ValidateAt(path string, schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		field := schema[key]
		value, exists := data[key]
		if !exists || value == nil {
			if field.Required {
				errs = append(errs, &ValidationError{Key: join(path, key), Reason: "required"})
			}
			continue
		}
		if field.Type == nil {
			continue
		}
		if err := field.Type.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    join(path, key),
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
