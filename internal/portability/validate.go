package portability

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Collection fields every envelope may carry as arrays.
var arrayFields = []string{"tasks", "routines", "habits", "dumps", "schedule"}

// Expected types of the brain dump fields nested in each dump entry.
var brainDumpFields = map[string]string{
	"content":  "string",
	"tags":     "string",
	"versions": "array",
	"entries":  "array",
}

// envelopeSchemaJSON is the structural backstop for import envelopes. Field
// level problems are reported with the legacy wording first; this catches
// shapes the field checks do not cover.
const envelopeSchemaJSON = `{
	"type": "object",
	"properties": {
		"version": {"type": "number"},
		"exportedAt": {"type": "string"},
		"sequences": {"type": "array"},
		"stats": {"type": "array"},
		"fileRefs": {"type": "array"},
		"brainDump": {"type": "object"},
		"auroraeTasksData": {"type": ["object", "null"]}
	}
}`

var compileEnvelopeSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(envelopeSchemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("envelope.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("envelope.json")
})

// ValidateExportData checks an export envelope and test-serializes it.
// Returns the problems found and, when serialization worked, the JSON bytes.
func ValidateExportData(data map[string]any) ([]string, []byte) {
	errs := validateEnvelopeFields(data)

	serialized, err := json.Marshal(data)
	if err != nil {
		errs = append(errs, fmt.Sprintf("Data serialization failed: %v", err))
		serialized = nil
	}
	return errs, serialized
}

// ValidateImportData checks a parsed import envelope.
func ValidateImportData(data map[string]any) []string {
	if data == nil {
		return []string{"Import data must be an object"}
	}
	return validateEnvelopeFields(data)
}

func validateEnvelopeFields(data map[string]any) []string {
	errs := []string{}

	for _, field := range arrayFields {
		v, present := data[field]
		if !present || v == nil {
			continue
		}
		if _, ok := v.([]any); !ok {
			errs = append(errs, fmt.Sprintf("%s must be an array (found: %s)", field, jsTypeName(v)))
		}
	}

	if dumps, ok := data["dumps"].([]any); ok {
		for i, raw := range dumps {
			dump, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			for field, want := range brainDumpFields {
				v, present := dump[field]
				if !present || v == nil {
					continue
				}
				if !matchesFieldType(v, want) {
					errs = append(errs, fmt.Sprintf("dumps[%d].%s must be a %s (found: %s)", i, field, want, jsTypeName(v)))
				}
			}
		}
	}

	return errs
}

// validateEnvelopeShape runs the compiled schema over a parsed envelope.
func validateEnvelopeShape(data map[string]any) error {
	schema, err := compileEnvelopeSchema()
	if err != nil {
		return fmt.Errorf("compile envelope schema: %w", err)
	}
	if err := schema.Validate(data); err != nil {
		return fmt.Errorf("invalid import data: %w", err)
	}
	return nil
}

func matchesFieldType(v any, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	}
	return false
}

// jsTypeName names a decoded JSON value the way envelope messages expect.
// Arrays report as object, matching the historical wording.
func jsTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, int, int64, json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return "object"
	}
}
