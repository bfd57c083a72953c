package templates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aurorae-haven/aurorae/internal/store"
)

// Template export envelope versions.
var supportedVersions = []string{"1.0"}

const currentVersion = "1.0"

// Export is a versioned template bundle.
type Export struct {
	Version    string         `json:"version"`
	ExportDate string         `json:"exportDate"`
	Templates  []store.Record `json:"templates"`
}

// ImportResult tallies a template import pass.
type ImportResult struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError records one rejected template.
type ImportError struct {
	Template string `json:"template"`
	Error    string `json:"error"`
}

// ExportTemplates bundles the named templates, or all of them when ids is
// empty.
func (m *Manager) ExportTemplates(ctx context.Context, ids []string) (Export, error) {
	all, err := m.All(ctx)
	if err != nil {
		return Export{}, err
	}

	selected := all
	if len(ids) > 0 {
		want := make(map[string]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		selected = selected[:0:0]
		for _, tpl := range all {
			if id, _ := tpl["id"].(string); want[id] {
				selected = append(selected, tpl)
			}
		}
	}
	if selected == nil {
		selected = []store.Record{}
	}

	return Export{
		Version:    currentVersion,
		ExportDate: time.Now().UTC().Format(time.RFC3339),
		Templates:  selected,
	}, nil
}

func isVersionCompatible(version string) bool {
	for _, v := range supportedVersions {
		if v == version {
			return true
		}
	}
	return false
}

// ImportTemplates imports a template bundle. Structural problems with the
// envelope fail fast; per-template problems are tallied and the pass
// continues. Templates whose id collides with an existing one are re-keyed.
func (m *Manager) ImportTemplates(ctx context.Context, data map[string]any) (ImportResult, error) {
	if data == nil {
		return ImportResult{}, fmt.Errorf("invalid import data: data must be an object")
	}

	version, _ := data["version"].(string)
	if isFalsy(data["version"]) {
		return ImportResult{}, fmt.Errorf("invalid import data: missing version field")
	}
	if !isVersionCompatible(version) {
		return ImportResult{}, fmt.Errorf("incompatible version: %v. Supported versions: %s",
			data["version"], strings.Join(supportedVersions, ", "))
	}

	rawTemplates, ok := data["templates"].([]any)
	if !ok {
		return ImportResult{}, fmt.Errorf("invalid import data: missing templates array")
	}

	result := ImportResult{Errors: []ImportError{}}
	for _, raw := range rawTemplates {
		tpl, _ := raw.(map[string]any)
		if err := m.importOne(ctx, tpl); err != nil {
			title := "Unknown"
			if t, _ := tpl["title"].(string); t != "" {
				title = t
			}
			result.Errors = append(result.Errors, ImportError{Template: title, Error: err.Error()})
			result.Skipped++
			continue
		}
		result.Imported++
	}
	return result, nil
}

func (m *Manager) importOne(ctx context.Context, tpl map[string]any) error {
	if errs := ValidateTemplate(tpl); len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	// Re-key on id collision so imports never overwrite existing templates.
	if id, _ := tpl["id"].(string); id != "" {
		if _, err := m.Get(ctx, id); err == nil {
			tpl["id"] = uuid.NewString()
		}
	}

	_, err := m.Save(ctx, tpl)
	return err
}
