// Package templates manages reusable task and routine templates: CRUD over
// the object store, filtering and sorting, versioned import/export, the
// predefined template seeder, and instantiation into live tasks or routines.
package templates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aurorae-haven/aurorae/internal/store"
)

const templatesCollection = "templates"

// ErrNotFound is returned when a template id does not exist.
var ErrNotFound = errors.New("template not found")

// Manager provides template operations over the object store.
type Manager struct {
	store *store.Store
}

func NewManager(s *store.Store) *Manager {
	return &Manager{store: s}
}

// All returns every stored template.
func (m *Manager) All(ctx context.Context) ([]store.Record, error) {
	return m.store.GetAll(ctx, templatesCollection)
}

// Get fetches one template by id.
func (m *Manager) Get(ctx context.Context, id string) (store.Record, error) {
	record, err := m.store.GetByID(ctx, templatesCollection, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return record, err
}

// Save validates and stores a template, filling defaults and assigning an
// id when absent. Returns the template id.
func (m *Manager) Save(ctx context.Context, tpl store.Record) (string, error) {
	if errs := ValidateTemplate(tpl); len(errs) > 0 {
		return "", fmt.Errorf("invalid template data: %s", strings.Join(errs, "; "))
	}

	normalized := normalize(tpl)
	id := normalized["id"].(string)
	if _, err := m.store.Put(ctx, templatesCollection, normalized); err != nil {
		return "", err
	}
	return id, nil
}

// normalize fills the canonical template shape: defaults for every field
// the UI relies on, an id when the caller supplied none.
func normalize(tpl store.Record) store.Record {
	out := store.Record{}
	for k, v := range tpl {
		out[k] = v
	}

	if id, _ := out["id"].(string); id == "" {
		out["id"] = uuid.NewString()
	}
	if out["tags"] == nil {
		out["tags"] = []any{}
	}
	if isFalsy(out["version"]) {
		out["version"] = 1
	}
	if s, _ := out["createdAt"].(string); s == "" {
		out["createdAt"] = time.Now().UTC().Format(time.RFC3339)
	}
	for _, field := range []string{"lastUsed", "category", "quadrant", "dueOffset", "energyTag", "estimatedDuration"} {
		if isFalsy(out[field]) {
			out[field] = nil
		}
	}
	if out["steps"] == nil {
		out["steps"] = []any{}
	}
	if out["pinned"] == nil {
		out["pinned"] = false
	}
	return out
}

// Update merges updates over an existing template, keeps the id fixed,
// stamps updatedAt, and re-validates the merged result.
func (m *Manager) Update(ctx context.Context, id string, updates store.Record) error {
	existing, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	merged := store.Record{}
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	merged["id"] = id
	merged["updatedAt"] = time.Now().UTC().Format(time.RFC3339)

	if errs := ValidateTemplate(merged); len(errs) > 0 {
		return fmt.Errorf("invalid template data: %s", strings.Join(errs, "; "))
	}

	_, err = m.store.Put(ctx, templatesCollection, merged)
	return err
}

// Delete removes a template by id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.DeleteByID(ctx, templatesCollection, id)
}

// Duplicate copies a template under a fresh id with " (Copy)" appended to
// the title and lastUsed reset. Returns the new id.
func (m *Manager) Duplicate(ctx context.Context, id string) (string, error) {
	tpl, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}

	dup := store.Record{}
	for k, v := range tpl {
		dup[k] = v
	}
	title, _ := tpl["title"].(string)
	dup["id"] = uuid.NewString()
	dup["title"] = title + " (Copy)"
	dup["createdAt"] = time.Now().UTC().Format(time.RFC3339)
	dup["lastUsed"] = nil

	return m.Save(ctx, dup)
}

// MarkUsed stamps lastUsed with the current time.
func (m *Manager) MarkUsed(ctx context.Context, id string) error {
	return m.Update(ctx, id, store.Record{
		"lastUsed": time.Now().UTC().Format(time.RFC3339),
	})
}

// Filter holds template filter criteria. Zero values are ignored, except
// the duration bounds which use the Set flags.
type Filter struct {
	Type           string
	Tags           []string
	DurationMin    float64
	DurationMinSet bool
	DurationMax    float64
	DurationMaxSet bool
	Query          string
}

// FilterTemplates applies a filter over an in-memory template list.
func FilterTemplates(tpls []store.Record, f Filter) []store.Record {
	var out []store.Record
	for _, tpl := range tpls {
		if f.Type != "" {
			if typ, _ := tpl["type"].(string); typ != f.Type {
				continue
			}
		}

		if len(f.Tags) > 0 && !hasAllTags(tpl, f.Tags) {
			continue
		}

		// Missing estimatedDuration passes duration bounds; a present null
		// counts as zero.
		if dur, present := durationValue(tpl); present {
			if f.DurationMinSet && dur < f.DurationMin {
				continue
			}
			if f.DurationMaxSet && dur > f.DurationMax {
				continue
			}
		}

		if f.Query != "" && !matchesQuery(tpl, f.Query) {
			continue
		}

		out = append(out, tpl)
	}
	return out
}

func hasAllTags(tpl store.Record, want []string) bool {
	tags, _ := tpl["tags"].([]any)
	for _, w := range want {
		found := false
		for _, tag := range tags {
			if s, _ := tag.(string); s == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func durationValue(tpl store.Record) (float64, bool) {
	v, present := tpl["estimatedDuration"]
	if !present {
		return 0, false
	}
	if v == nil {
		return 0, true
	}
	n, ok := asNumber(v)
	if !ok {
		return 0, false
	}
	return n, true
}

func matchesQuery(tpl store.Record, query string) bool {
	q := strings.ToLower(query)
	if title, _ := tpl["title"].(string); strings.Contains(strings.ToLower(title), q) {
		return true
	}
	if tags, _ := tpl["tags"].([]any); tags != nil {
		for _, tag := range tags {
			if s, _ := tag.(string); strings.Contains(strings.ToLower(s), q) {
				return true
			}
		}
	}
	if typ, _ := tpl["type"].(string); strings.Contains(strings.ToLower(typ), q) {
		return true
	}
	return false
}

// SortTemplates returns a sorted copy. Supported keys: title, lastUsed
// (never-used templates sort last), duration (missing counts as zero), and
// dateCreated (newest first). Unknown keys keep the input order.
func SortTemplates(tpls []store.Record, sortBy string) []store.Record {
	sorted := make([]store.Record, len(tpls))
	copy(sorted, tpls)

	switch sortBy {
	case "title":
		sort.SliceStable(sorted, func(i, j int) bool {
			a, _ := sorted[i]["title"].(string)
			b, _ := sorted[j]["title"].(string)
			return a < b
		})
	case "lastUsed":
		sort.SliceStable(sorted, func(i, j int) bool {
			a, _ := sorted[i]["lastUsed"].(string)
			b, _ := sorted[j]["lastUsed"].(string)
			if a == "" {
				return false
			}
			if b == "" {
				return true
			}
			return a > b
		})
	case "duration":
		sort.SliceStable(sorted, func(i, j int) bool {
			a, _ := durationValue(sorted[i])
			b, _ := durationValue(sorted[j])
			return a < b
		})
	case "dateCreated":
		sort.SliceStable(sorted, func(i, j int) bool {
			a, _ := sorted[i]["createdAt"].(string)
			b, _ := sorted[j]["createdAt"].(string)
			return a > b
		})
	}
	return sorted
}
