package codec

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaValidator checks snapshots against a JSON Schema before they
// are applied. Rehydrating from an untrusted or stale snapshot file is
// the usual reason to want one.
type SchemaValidator struct {
	source any

	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

// NewSchemaValidator creates a validator from an inline schema
// document. Compilation is deferred to the first validation.
func NewSchemaValidator(schema map[string]any) *SchemaValidator {
	return &SchemaValidator{source: schema}
}

// NewSchemaValidatorJSON creates a validator from raw schema JSON.
func NewSchemaValidatorJSON(data []byte) (*SchemaValidator, error) {
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return NewSchemaValidator(schema), nil
}

// Validate checks a snapshot against the schema, returning a
// ValidationError describing the first-level causes on failure.
func (v *SchemaValidator) Validate(snapshot map[string]any) error {
	v.once.Do(func() {
		v.schema, v.err = v.compile()
	})
	if v.err != nil {
		return fmt.Errorf("compile snapshot schema: %w", v.err)
	}

	if err := v.schema.Validate(normalize(snapshot)); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("snapshot does not match schema: %s", flattenCauses(verr))
		}
		return fmt.Errorf("snapshot does not match schema: %w", err)
	}
	return nil
}

func (v *SchemaValidator) compile() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	data, err := json.Marshal(v.source)
	if err != nil {
		return nil, err
	}
	if err := compiler.AddResource("snapshot.json", strings.NewReader(string(data))); err != nil {
		return nil, err
	}
	return compiler.Compile("snapshot.json")
}

// normalize round-trips the snapshot through JSON so the validator sees
// the same types a decoded document would have (float64 numbers).
func normalize(snapshot map[string]any) any {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return snapshot
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return snapshot
	}
	return out
}

// flattenCauses collects the leaf messages of a validation error.
func flattenCauses(err *jsonschema.ValidationError) string {
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := strings.TrimPrefix(e.InstanceLocation, "/")
			if loc == "" {
				msgs = append(msgs, e.Message)
			} else {
				msgs = append(msgs, fmt.Sprintf("%s: %s", strings.ReplaceAll(loc, "/", "."), e.Message))
			}
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(err)
	return strings.Join(msgs, "; ")
}
