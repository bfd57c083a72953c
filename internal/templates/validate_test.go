package templates_test

import (
	"testing"

	"github.com/aurorae-haven/aurorae/internal/templates"
)

func containsMessage(t *testing.T, errs []string, want string) {
	t.Helper()
	for _, e := range errs {
		if e == want {
			return
		}
	}
	t.Fatalf("missing %q in %v", want, errs)
}

func TestValidateTemplateValid(t *testing.T) {
	errs := templates.ValidateTemplate(map[string]any{
		"type":  "task",
		"title": "Water the plants",
		"tags":  []any{"home"},
	})
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateTemplateNil(t *testing.T) {
	errs := templates.ValidateTemplate(nil)
	if len(errs) != 1 || errs[0] != "Template must be an object" {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidateTemplateTypeAndTitle(t *testing.T) {
	errs := templates.ValidateTemplate(map[string]any{})
	containsMessage(t, errs, "Template type is required")
	containsMessage(t, errs, "Template title is required")

	errs = templates.ValidateTemplate(map[string]any{"type": "habit", "title": "x"})
	containsMessage(t, errs, "Template type must be one of: task, routine (found: habit)")

	errs = templates.ValidateTemplate(map[string]any{"type": "task", "title": float64(7)})
	containsMessage(t, errs, "Template title must be a string (found: number)")

	errs = templates.ValidateTemplate(map[string]any{"type": "task", "title": "   "})
	containsMessage(t, errs, "Template title cannot be empty")
}

func TestValidateTemplateRoutineSteps(t *testing.T) {
	errs := templates.ValidateTemplate(map[string]any{
		"type":  "routine",
		"title": "Morning",
		"steps": "nope",
	})
	containsMessage(t, errs, "Routine template steps must be an array (found: string)")

	errs = templates.ValidateTemplate(map[string]any{
		"type":  "routine",
		"title": "Morning",
		"steps": []any{
			"not an object",
			map[string]any{"duration": float64(60)},
			map[string]any{"label": "ok", "duration": "later"},
		},
	})
	containsMessage(t, errs, "Template step 0 must be an object")
	containsMessage(t, errs, "Template step 1 must have a label (string) property")
	containsMessage(t, errs, "Template step 2 duration must be a number (found: string)")
}

func TestValidateTemplateEstimatedDuration(t *testing.T) {
	errs := templates.ValidateTemplate(map[string]any{
		"type": "routine", "title": "Morning", "estimatedDuration": true,
	})
	containsMessage(t, errs, "Routine estimatedDuration must be a number (found: boolean)")

	errs = templates.ValidateTemplate(map[string]any{
		"type": "routine", "title": "Morning", "estimatedDuration": float64(-5),
	})
	containsMessage(t, errs, "Template estimatedDuration must be non-negative")
}

func TestValidateTemplateTags(t *testing.T) {
	errs := templates.ValidateTemplate(map[string]any{
		"type": "task", "title": "x", "tags": map[string]any{},
	})
	containsMessage(t, errs, "Template tags must be an array (found: object)")

	errs = templates.ValidateTemplate(map[string]any{
		"type": "task", "title": "x", "tags": []any{"ok", float64(3)},
	})
	containsMessage(t, errs, "Template tag 1 must be a string (found: number)")
}
