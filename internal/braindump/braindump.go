// Package braindump manages the markdown note aggregate kept in the flat
// store: a list of note entries plus the legacy single-note content, tags,
// and version history blobs.
package braindump

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aurorae-haven/aurorae/internal/flatstore"
)

// Entry is one markdown note.
type Entry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Aggregate is the whole brain dump state as it appears in export bundles.
// Absent blobs surface as empty defaults, never as errors.
type Aggregate struct {
	Content  string `json:"content"`
	Tags     string `json:"tags"`
	Versions []any  `json:"versions"`
	Entries  []any  `json:"entries"`
}

// Manager reads and writes the brain dump blobs.
type Manager struct {
	flat *flatstore.Store
}

func NewManager(flat *flatstore.Store) *Manager {
	return &Manager{flat: flat}
}

// Entries returns all note entries. When the entries blob is absent but the
// legacy single-note content exists, the content is migrated into one entry
// titled "Migrated Note" and persisted.
func (m *Manager) Entries() ([]Entry, error) {
	raw, err := m.flat.Get(flatstore.KeyBrainDumpEntries)
	if errors.Is(err, flatstore.ErrNotFound) {
		return m.migrateLegacyContent()
	}
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return entries, nil
}

func (m *Manager) migrateLegacyContent() ([]Entry, error) {
	content, err := m.flat.GetString(flatstore.KeyBrainDumpContent)
	if errors.Is(err, flatstore.ErrNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load legacy content: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	entries := []Entry{{
		ID:        uuid.NewString(),
		Title:     "Migrated Note",
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	if err := m.saveEntries(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateEntry appends a new note and returns it.
func (m *Manager) CreateEntry(title string) (Entry, error) {
	entries, err := m.Entries()
	if err != nil {
		return Entry{}, err
	}

	if title == "" {
		title = "New Note"
	}
	now := time.Now().UTC().Format(time.RFC3339)
	entry := Entry{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	entries = append(entries, entry)
	if err := m.saveEntries(entries); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// UpdateEntry replaces the title and content of a note and stamps updatedAt.
// An empty title keeps the existing one.
func (m *Manager) UpdateEntry(id, title, content string) (Entry, error) {
	entries, err := m.Entries()
	if err != nil {
		return Entry{}, err
	}

	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		if title != "" {
			entries[i].Title = title
		}
		entries[i].Content = content
		entries[i].UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := m.saveEntries(entries); err != nil {
			return Entry{}, err
		}
		return entries[i], nil
	}
	return Entry{}, fmt.Errorf("update entry %s: %w", id, flatstore.ErrNotFound)
}

// DeleteEntry removes a note. Deleting the last note creates one fresh
// empty note so the list never reaches a zero-entry state.
func (m *Manager) DeleteEntry(id string) ([]Entry, error) {
	entries, err := m.Entries()
	if err != nil {
		return nil, err
	}

	kept := entries[:0]
	for _, entry := range entries {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	if len(kept) == 0 {
		now := time.Now().UTC().Format(time.RFC3339)
		kept = append(kept, Entry{
			ID:        uuid.NewString(),
			Title:     "New Note",
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err := m.saveEntries(kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func (m *Manager) saveEntries(entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	if err := m.flat.Set(flatstore.KeyBrainDumpEntries, data); err != nil {
		return fmt.Errorf("save entries: %w", err)
	}
	return nil
}

// Aggregate assembles the export view of the brain dump, substituting empty
// defaults for absent blobs.
func (m *Manager) Aggregate() (Aggregate, error) {
	agg := Aggregate{Versions: []any{}, Entries: []any{}}

	content, err := m.flat.GetString(flatstore.KeyBrainDumpContent)
	if err != nil && !errors.Is(err, flatstore.ErrNotFound) {
		return agg, fmt.Errorf("load content: %w", err)
	}
	agg.Content = content

	tags, err := m.flat.GetString(flatstore.KeyBrainDumpTags)
	if err != nil && !errors.Is(err, flatstore.ErrNotFound) {
		return agg, fmt.Errorf("load tags: %w", err)
	}
	agg.Tags = tags

	if raw, err := m.flat.Get(flatstore.KeyBrainDumpVersions); err == nil {
		var versions []any
		if json.Unmarshal(raw, &versions) == nil && versions != nil {
			agg.Versions = versions
		}
	} else if !errors.Is(err, flatstore.ErrNotFound) {
		return agg, fmt.Errorf("load versions: %w", err)
	}

	if raw, err := m.flat.Get(flatstore.KeyBrainDumpEntries); err == nil {
		var entries []any
		if json.Unmarshal(raw, &entries) == nil && entries != nil {
			agg.Entries = entries
		}
	} else if !errors.Is(err, flatstore.ErrNotFound) {
		return agg, fmt.Errorf("load entries: %w", err)
	}

	return agg, nil
}
