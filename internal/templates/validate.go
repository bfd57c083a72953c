package templates

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Valid template types.
var validTemplateTypes = []string{"task", "routine"}

// ValidateTemplate checks a loosely typed template object and returns the
// list of problems found. An empty list means the template is valid. Message
// wording is stable; callers join it into user-facing errors.
func ValidateTemplate(tpl map[string]any) []string {
	var errs []string

	if tpl == nil {
		return []string{"Template must be an object"}
	}

	typ, _ := tpl["type"].(string)
	if isFalsy(tpl["type"]) {
		errs = append(errs, "Template type is required")
	} else if typ != "task" && typ != "routine" {
		errs = append(errs, fmt.Sprintf("Template type must be one of: %s (found: %v)",
			strings.Join(validTemplateTypes, ", "), tpl["type"]))
	}

	title, titlePresent := tpl["title"]
	if !titlePresent || title == nil {
		errs = append(errs, "Template title is required")
	} else if titleStr, ok := title.(string); !ok {
		errs = append(errs, fmt.Sprintf("Template title must be a string (found: %s)", jsType(title)))
	} else if strings.TrimSpace(titleStr) == "" {
		errs = append(errs, "Template title cannot be empty")
	}

	if typ == "routine" {
		if steps, present := tpl["steps"]; present && steps != nil {
			stepList, ok := steps.([]any)
			if !ok {
				errs = append(errs, fmt.Sprintf("Routine template steps must be an array (found: %s)", jsType(steps)))
			} else {
				for i, raw := range stepList {
					step, ok := raw.(map[string]any)
					if !ok || step == nil {
						errs = append(errs, fmt.Sprintf("Template step %d must be an object", i))
						continue
					}
					if _, ok := step["label"].(string); !ok {
						errs = append(errs, fmt.Sprintf("Template step %d must have a label (string) property", i))
					}
					if dur, present := step["duration"]; present {
						if _, ok := asNumber(dur); !ok {
							errs = append(errs, fmt.Sprintf("Template step %d duration must be a number (found: %s)", i, jsType(dur)))
						}
					}
				}
			}
		}

		if est, present := tpl["estimatedDuration"]; present && est != nil {
			if n, ok := asNumber(est); !ok {
				errs = append(errs, fmt.Sprintf("Routine estimatedDuration must be a number (found: %s)", jsType(est)))
			} else if n < 0 {
				errs = append(errs, "Template estimatedDuration must be non-negative")
			}
		}
	}

	if tags, present := tpl["tags"]; present && tags != nil {
		tagList, ok := tags.([]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("Template tags must be an array (found: %s)", jsType(tags)))
		} else {
			for i, tag := range tagList {
				if _, ok := tag.(string); !ok {
					errs = append(errs, fmt.Sprintf("Template tag %d must be a string (found: %s)", i, jsType(tag)))
				}
			}
		}
	}

	return errs
}

// isFalsy mirrors loose emptiness: nil, empty string, zero, and false all
// count as absent.
func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case int:
		return x == 0
	case json.Number:
		n, err := x.Float64()
		return err == nil && n == 0
	default:
		return false
	}
}

// asNumber accepts the numeric shapes JSON decoding can produce.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// jsType names a decoded JSON value's type the way validation messages
// expect: string, number, boolean, or object.
func jsType(v any) string {
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
