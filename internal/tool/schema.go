package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

const typeObject = "object"

// SchemaFor infers the parameter schema of a tool from its argument struct.
// Field descriptions come from `jsonschema` tags; fields without omitempty
// are required. Undeclared fields sent by the model are ignored.
func SchemaFor[T any]() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	s.AdditionalProperties = nil
	return s, nil
}

// MustSchemaFor is like SchemaFor but panics when T has no JSON-schema form.
func MustSchemaFor[T any]() *jsonschema.Schema {
	s, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// validateArgs decodes raw and checks it against the resolved schema. An
// empty payload is treated as an empty object.
func validateArgs(schema *jsonschema.Resolved, raw json.RawMessage) (Args, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage(`{}`)
	}

	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if input == nil {
		input = map[string]any{}
	}

	if err := schema.Validate(input); err != nil {
		return nil, err
	}
	return Args(input), nil
}

// Args are validated tool arguments.
type Args map[string]any

// String returns the string argument name, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Decode copies the arguments into v, usually the struct the schema was
// inferred from.
func (a Args) Decode(v any) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
