package backup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aurorae-haven/aurorae/internal/braindump"
	"github.com/aurorae-haven/aurorae/internal/bus"
	"github.com/aurorae-haven/aurorae/internal/flatstore"
	"github.com/aurorae-haven/aurorae/internal/portability"
	"github.com/aurorae-haven/aurorae/internal/store"
)

func newScheduler(t *testing.T, keep int) (*Scheduler, *store.Store, *bus.Bus) {
	t.Helper()

	eventBus := bus.New()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), eventBus)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	flat, err := flatstore.Open(flatstore.InMemoryConfig())
	if err != nil {
		t.Fatalf("open flat store: %v", err)
	}
	t.Cleanup(func() { flat.Close() })

	porter := portability.New(s, flat, braindump.NewManager(flat), nil)
	return NewScheduler(s, porter, eventBus, keep, nil), s, eventBus
}

func TestSnapshotStoresAndTrims(t *testing.T) {
	sched, s, _ := newScheduler(t, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := sched.Snapshot(ctx); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
	}

	backups, err := s.RecentBackups(ctx, 0)
	if err != nil {
		t.Fatalf("recent backups: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("backups = %d", len(backups))
	}
	if backups[0].Size == 0 || backups[0].Data == "" {
		t.Fatalf("backup = %+v", backups[0])
	}
}

func TestTickSkipsWhenClean(t *testing.T) {
	sched, s, _ := newScheduler(t, 5)
	ctx := context.Background()

	// First tick always snapshots.
	if err := sched.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := sched.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	backups, err := s.RecentBackups(ctx, 0)
	if err != nil {
		t.Fatalf("recent backups: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("backups = %d", len(backups))
	}
}

func TestStoreEventMarksDirty(t *testing.T) {
	sched, s, _ := newScheduler(t, 5)
	ctx := context.Background()

	if err := sched.Start("@every 1h"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop()

	if err := sched.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if _, err := s.Put(ctx, "tasks", store.Record{"text": "dirty"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// The watcher consumes the bus asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		sched.mu.Lock()
		dirty := sched.dirty
		sched.mu.Unlock()
		if dirty {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("store event never marked the scheduler dirty")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBackupWriteDoesNotMarkDirty(t *testing.T) {
	sched, _, _ := newScheduler(t, 5)
	ctx := context.Background()

	if err := sched.Start("@every 1h"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop()

	// Snapshot writes into the backups collection; drain the resulting
	// events and confirm they do not re-mark the scheduler.
	if err := sched.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	sched.mu.Lock()
	dirty := sched.dirty
	sched.mu.Unlock()
	if dirty {
		t.Fatal("snapshot write marked the scheduler dirty")
	}
}

func TestFailedSnapshotStaysDirty(t *testing.T) {
	sched, s, _ := newScheduler(t, 5)
	ctx := context.Background()

	// Snapshot persistence fails against a closed store.
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	if err := sched.tick(ctx); err == nil {
		t.Fatal("expected snapshot failure")
	}

	sched.mu.Lock()
	dirty := sched.dirty
	sched.mu.Unlock()
	if !dirty {
		t.Fatal("failed snapshot cleared the dirty flag")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	sched, _, _ := newScheduler(t, 5)

	if err := sched.Start("not a schedule"); err == nil {
		t.Fatal("expected error")
	}
}
