package tool

import (
	"encoding/json"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forecastOptions struct {
	Verbose bool `json:"verbose"`
}

type forecastArgs struct {
	City  string           `json:"city" jsonschema:"City name"`
	Days  int              `json:"days,omitempty"`
	Tags  []string         `json:"tags,omitempty"`
	Units string           `json:"units,omitempty"`
	Opts  *forecastOptions `json:"opts,omitempty"`
}

func forecastSchema(t *testing.T) *jsonschema.Resolved {
	t.Helper()
	s := MustSchemaFor[forecastArgs]()
	s.Properties["units"].Enum = []any{"celsius", "fahrenheit"}
	resolved, err := s.Resolve(nil)
	require.NoError(t, err)
	return resolved
}

func TestSchemaFor(t *testing.T) {
	s, err := SchemaFor[forecastArgs]()
	require.NoError(t, err)

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []any{"city"}, doc["required"])
	assert.NotContains(t, doc, "additionalProperties")

	city := doc["properties"].(map[string]any)["city"].(map[string]any)
	assert.Equal(t, "string", city["type"])
	assert.Equal(t, "City name", city["description"])
}

func TestMustSchemaFor_Panics(t *testing.T) {
	assert.Panics(t, func() { MustSchemaFor[struct{ C chan int }]() })
}

func TestValidateArgs_Accepts(t *testing.T) {
	args, err := validateArgs(forecastSchema(t), json.RawMessage(`{"city":"Paris","days":3,"units":"celsius","tags":["a"],"opts":{"verbose":true},"extra":1}`))
	require.NoError(t, err)
	assert.Equal(t, "Paris", args.String("city"))
	assert.Equal(t, "", args.String("missing"))

	var decoded forecastArgs
	require.NoError(t, args.Decode(&decoded))
	assert.Equal(t, forecastArgs{
		City:  "Paris",
		Days:  3,
		Tags:  []string{"a"},
		Units: "celsius",
		Opts:  &forecastOptions{Verbose: true},
	}, decoded)
}

func TestValidateArgs_Rejects(t *testing.T) {
	cases := map[string]string{
		`{}`:                                  "city",
		`{"city":42}`:                         `want "string"`,
		`{"city":"x","days":1.5}`:             `want "integer"`,
		`{"city":"x","units":"kelvin"}`:       "enum",
		`{"city":"x","tags":[1]}`:             `want "string"`,
		`{"city":"x","opts":{}}`:              "verbose",
		`{"city":"x","opts":{"verbose":"y"}}`: `want "boolean"`,
		`["Paris"]`:                           "arguments must be a JSON object",
	}
	for input, want := range cases {
		_, err := validateArgs(forecastSchema(t), json.RawMessage(input))
		if assert.Error(t, err, input) {
			assert.Contains(t, err.Error(), want, input)
		}
	}
}

func TestValidateArgs_EmptyPayloadIsEmptyObject(t *testing.T) {
	_, err := validateArgs(forecastSchema(t), json.RawMessage("  "))
	assert.ErrorContains(t, err, "city")
}
