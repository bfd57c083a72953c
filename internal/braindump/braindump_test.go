package braindump_test

import (
	"testing"

	"github.com/aurorae-haven/aurorae/internal/braindump"
	"github.com/aurorae-haven/aurorae/internal/flatstore"
)

func newManager(t *testing.T) (*braindump.Manager, *flatstore.Store) {
	t.Helper()
	flat, err := flatstore.Open(flatstore.InMemoryConfig())
	if err != nil {
		t.Fatalf("open flat store: %v", err)
	}
	t.Cleanup(func() { flat.Close() })
	return braindump.NewManager(flat), flat
}

func TestEntriesEmptyStore(t *testing.T) {
	m, _ := newManager(t)

	entries, err := m.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len = %d, want 0", len(entries))
	}
}

func TestLegacyContentMigration(t *testing.T) {
	m, flat := newManager(t)

	if err := flat.SetString(flatstore.KeyBrainDumpContent, "Old content"); err != nil {
		t.Fatal(err)
	}

	entries, err := m.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	if entries[0].Title != "Migrated Note" {
		t.Errorf("title = %q, want Migrated Note", entries[0].Title)
	}
	if entries[0].Content != "Old content" {
		t.Errorf("content = %q", entries[0].Content)
	}

	// Migration must be persisted.
	again, err := m.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 1 || again[0].ID != entries[0].ID {
		t.Error("migrated entry not persisted")
	}
}

func TestCreateAndUpdateEntry(t *testing.T) {
	m, _ := newManager(t)

	entry, err := m.CreateEntry("")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.Title != "New Note" {
		t.Errorf("title = %q, want New Note", entry.Title)
	}
	if entry.ID == "" {
		t.Error("id not assigned")
	}

	updated, err := m.UpdateEntry(entry.ID, "Groceries", "- milk")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Groceries" || updated.Content != "- milk" {
		t.Errorf("updated = %+v", updated)
	}

	// Empty title keeps the existing one.
	kept, err := m.UpdateEntry(entry.ID, "", "- milk\n- eggs")
	if err != nil {
		t.Fatal(err)
	}
	if kept.Title != "Groceries" {
		t.Errorf("title = %q, want Groceries", kept.Title)
	}

	if _, err := m.UpdateEntry("missing", "x", "y"); err == nil {
		t.Error("expected error for missing entry")
	}
}

func TestDeleteLastEntryCreatesFresh(t *testing.T) {
	m, _ := newManager(t)

	entry, err := m.CreateEntry("Only")
	if err != nil {
		t.Fatal(err)
	}

	entries, err := m.DeleteEntry(entry.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1 (auto-created)", len(entries))
	}
	if entries[0].ID == entry.ID {
		t.Error("auto-created entry reused the deleted id")
	}
	if entries[0].Content != "" {
		t.Error("auto-created entry should be empty")
	}
}

func TestDeleteKeepsOthers(t *testing.T) {
	m, _ := newManager(t)

	first, err := m.CreateEntry("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateEntry("b"); err != nil {
		t.Fatal(err)
	}

	entries, err := m.DeleteEntry(first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	if entries[0].Title != "b" {
		t.Errorf("remaining = %q, want b", entries[0].Title)
	}
}

func TestAggregateDefaults(t *testing.T) {
	m, _ := newManager(t)

	agg, err := m.Aggregate()
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if agg.Content != "" || agg.Tags != "" {
		t.Errorf("agg = %+v, want empty strings", agg)
	}
	if agg.Versions == nil || agg.Entries == nil {
		t.Error("versions and entries must default to empty arrays")
	}
}

func TestAggregateReadsBlobs(t *testing.T) {
	m, flat := newManager(t)

	if err := flat.SetString(flatstore.KeyBrainDumpContent, "# Hi"); err != nil {
		t.Fatal(err)
	}
	if err := flat.SetString(flatstore.KeyBrainDumpTags, "a,b"); err != nil {
		t.Fatal(err)
	}
	if err := flat.SetString(flatstore.KeyBrainDumpVersions, `[{"v":1}]`); err != nil {
		t.Fatal(err)
	}

	agg, err := m.Aggregate()
	if err != nil {
		t.Fatal(err)
	}
	if agg.Content != "# Hi" {
		t.Errorf("content = %q", agg.Content)
	}
	if agg.Tags != "a,b" {
		t.Errorf("tags = %q", agg.Tags)
	}
	if len(agg.Versions) != 1 {
		t.Errorf("versions = %v", agg.Versions)
	}
}
