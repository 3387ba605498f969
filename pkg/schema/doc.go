// Package schema provides a small runtime type system for loosely typed records.
//
// Wildcard files are hand-edited JSON or YAML, so their records arrive as
// map[string]any. A Schema maps field names to a Field describing the expected
// Type and whether the field must be present. Validate reports every mismatch at
// once as an *AggregateError of *ValidationError values.
//
//	choice := schema.Schema{
//	    "value":    {Type: schema.NonEmptyString(), Required: true},
//	    "weight":   {Type: schema.PositiveNumber()},
//	    "tags":     {Type: schema.Slice(schema.String())},
//	    "requires": {Type: schema.Map(schema.String())},
//	}
//
//	if err := schema.ValidateAt("choices[3]", choice, record); err != nil {
//	    // err lists every offending key, e.g. choices[3].weight
//	}
//
// Unknown keys are ignored so that files written by newer tools keep loading.
// The package has no dependencies beyond the Go standard library.
package schema
