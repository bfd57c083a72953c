package templates

import (
	"context"

	"github.com/aurorae-haven/aurorae/internal/store"
)

// SeedResult tallies a predefined-template seeding pass.
type SeedResult struct {
	Added   int           `json:"added"`
	Skipped int           `json:"skipped"`
	Errors  []ImportError `json:"errors"`
}

const (
	dayMillis  = 24 * 60 * 60 * 1000
	weekMillis = 7 * dayMillis
)

// predefined is the built-in template catalogue. Ids are stable so seeding
// stays idempotent across runs.
var predefined = []store.Record{
	// Task templates.
	{
		"id": "predefined-task-morning-review", "type": "task",
		"title": "Morning review", "tags": []any{"planning", "morning"},
		"quadrant": "not_urgent_important", "dueOffset": float64(dayMillis),
	},
	{
		"id": "predefined-task-exercise", "type": "task",
		"title": "Exercise", "tags": []any{"health"},
		"quadrant": "not_urgent_important", "dueOffset": float64(dayMillis),
	},
	{
		"id": "predefined-task-meal-prep", "type": "task",
		"title": "Meal prep", "tags": []any{"health", "home"},
		"quadrant": "not_urgent_important", "dueOffset": float64(2 * dayMillis),
	},
	{
		"id": "predefined-task-code-review", "type": "task",
		"title": "Code review", "tags": []any{"work"},
		"quadrant": "urgent_important", "dueOffset": float64(dayMillis),
	},
	{
		"id": "predefined-task-journal", "type": "task",
		"title": "Journal", "tags": []any{"reflection"},
		"quadrant": "not_urgent_not_important", "dueOffset": float64(dayMillis),
	},
	{
		"id": "predefined-task-reading", "type": "task",
		"title": "Reading", "tags": []any{"learning"},
		"quadrant": "not_urgent_important", "dueOffset": float64(3 * dayMillis),
	},
	{
		"id": "predefined-task-water-plants", "type": "task",
		"title": "Water the plants", "tags": []any{"home"},
		"quadrant": "urgent_not_important", "dueOffset": float64(weekMillis),
	},
	// Routine templates.
	{
		"id": "predefined-routine-morning-launch", "type": "routine",
		"title": "Morning launch", "tags": []any{"morning"},
		"energyTag": "low", "estimatedDuration": float64(900),
		"steps": []any{
			map[string]any{"label": "Drink a glass of water", "duration": float64(60)},
			map[string]any{"label": "Stretch", "duration": float64(300)},
			map[string]any{"label": "Review today's plan", "duration": float64(540)},
		},
	},
	{
		"id": "predefined-routine-focus-session", "type": "routine",
		"title": "Focus session", "tags": []any{"work", "focus"},
		"energyTag": "high", "estimatedDuration": float64(1800),
		"steps": []any{
			map[string]any{"label": "Silence notifications", "duration": float64(60)},
			map[string]any{"label": "Pick one task", "duration": float64(240)},
			map[string]any{"label": "Deep work block", "duration": float64(1500)},
		},
	},
	{
		"id": "predefined-routine-evening-wind-down", "type": "routine",
		"title": "Evening wind-down", "tags": []any{"evening"},
		"energyTag": "low", "estimatedDuration": float64(1200),
		"steps": []any{
			map[string]any{"label": "Tidy workspace", "duration": float64(300)},
			map[string]any{"label": "Write tomorrow's top three", "duration": float64(300)},
			map[string]any{"label": "Screens off", "duration": float64(600)},
		},
	},
	{
		"id": "predefined-routine-quick-reset", "type": "routine",
		"title": "Quick reset", "tags": []any{"break"},
		"energyTag": "low", "estimatedDuration": float64(300),
		"steps": []any{
			map[string]any{"label": "Stand up and stretch", "duration": float64(120)},
			map[string]any{"label": "Breathe", "duration": float64(180)},
		},
	},
	{
		"id": "predefined-routine-creative-warm-up", "type": "routine",
		"title": "Creative warm-up", "tags": []any{"creative"},
		"energyTag": "medium", "estimatedDuration": float64(600),
		"steps": []any{
			map[string]any{"label": "Free-write one page", "duration": float64(420)},
			map[string]any{"label": "Sketch an idea", "duration": float64(180)},
		},
	},
	{
		"id": "predefined-routine-weekly-review", "type": "routine",
		"title": "Weekly review", "tags": []any{"planning", "reflection"},
		"energyTag": "medium", "estimatedDuration": float64(2700),
		"steps": []any{
			map[string]any{"label": "Clear inboxes", "duration": float64(900)},
			map[string]any{"label": "Review the past week", "duration": float64(900)},
			map[string]any{"label": "Plan the next week", "duration": float64(900)},
		},
	},
}

// Predefined returns the built-in template catalogue.
func Predefined() []store.Record {
	out := make([]store.Record, len(predefined))
	for i, tpl := range predefined {
		clone := store.Record{}
		for k, v := range tpl {
			clone[k] = v
		}
		out[i] = clone
	}
	return out
}

// PredefinedByType returns the built-in templates of one type.
func PredefinedByType(typ string) []store.Record {
	var out []store.Record
	for _, tpl := range Predefined() {
		if tpl["type"] == typ {
			out = append(out, tpl)
		}
	}
	return out
}

// SeedPredefined stores the built-in templates that are not already
// present, keyed by id. Per-template failures are tallied, never fatal.
func (m *Manager) SeedPredefined(ctx context.Context) (SeedResult, error) {
	result := SeedResult{Errors: []ImportError{}}

	existing, err := m.All(ctx)
	if err != nil {
		return result, err
	}
	existingIDs := make(map[string]bool, len(existing))
	for _, tpl := range existing {
		if id, _ := tpl["id"].(string); id != "" {
			existingIDs[id] = true
		}
	}

	for _, tpl := range Predefined() {
		id, _ := tpl["id"].(string)
		if existingIDs[id] {
			result.Skipped++
			continue
		}
		if _, err := m.Save(ctx, tpl); err != nil {
			title, _ := tpl["title"].(string)
			if title == "" {
				title = "Unknown"
			}
			result.Errors = append(result.Errors, ImportError{Template: title, Error: err.Error()})
			continue
		}
		result.Added++
	}
	return result, nil
}

// PredefinedSeeded reports whether any built-in template is present.
// Read failures report false.
func (m *Manager) PredefinedSeeded(ctx context.Context) bool {
	existing, err := m.All(ctx)
	if err != nil {
		return false
	}
	ids := make(map[string]bool, len(predefined))
	for _, tpl := range predefined {
		ids[tpl["id"].(string)] = true
	}
	for _, tpl := range existing {
		if id, _ := tpl["id"].(string); ids[id] {
			return true
		}
	}
	return false
}
