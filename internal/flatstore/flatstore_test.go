package flatstore_test

import (
	"errors"
	"testing"

	"github.com/aurorae-haven/aurorae/internal/flatstore"
)

func newStore(t *testing.T) *flatstore.Store {
	t.Helper()
	s, err := flatstore.Open(flatstore.InMemoryConfig())
	if err != nil {
		t.Fatalf("open flat store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newStore(t)

	if err := s.SetString(flatstore.KeyBrainDumpContent, "# Notes"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.GetString(flatstore.KeyBrainDumpContent)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "# Notes" {
		t.Errorf("value = %q, want %q", got, "# Notes")
	}
}

func TestGetMissingKey(t *testing.T) {
	s := newStore(t)

	_, err := s.Get("missing")
	if !errors.Is(err, flatstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newStore(t)

	if err := s.SetString("k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	ok, err := s.Has("k")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("key should be gone after delete")
	}
}

func TestKeys(t *testing.T) {
	s := newStore(t)

	want := map[string]bool{
		flatstore.KeyAggregate:  true,
		flatstore.KeyTaskMatrix: true,
	}
	for k := range want {
		if err := s.SetString(k, "{}"); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != len(want) {
		t.Fatalf("len(keys) = %d, want %d", len(keys), len(want))
	}
	for _, k := range keys {
		if !want[k] {
			t.Errorf("unexpected key %q", k)
		}
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := flatstore.Open(flatstore.Config{})
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestPersistentRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := flatstore.Open(flatstore.DefaultConfig(dir))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SetString("k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = flatstore.Open(flatstore.DefaultConfig(dir))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.GetString("k")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got != "v" {
		t.Errorf("value = %q, want v", got)
	}
}
