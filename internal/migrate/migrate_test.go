package migrate_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aurorae-haven/aurorae/internal/flatstore"
	"github.com/aurorae-haven/aurorae/internal/migrate"
	"github.com/aurorae-haven/aurorae/internal/store"
)

func newMigrator(t *testing.T) (*migrate.Migrator, *flatstore.Store, *store.Store) {
	t.Helper()

	flat, err := flatstore.Open(flatstore.InMemoryConfig())
	if err != nil {
		t.Fatalf("open flat store: %v", err)
	}
	t.Cleanup(func() { flat.Close() })

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return migrate.New(flat, s, nil), flat, s
}

func TestRunNothingToMigrate(t *testing.T) {
	m, _, _ := newMigrator(t)

	report := m.Run(context.Background())
	if !report.Success {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Migrated) != 0 || len(report.Errors) != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunMigratesAggregate(t *testing.T) {
	m, flat, s := newMigrator(t)
	ctx := context.Background()

	blob := `{
		"tasks": [{"text": "one"}, {"text": "two"}],
		"sequences": [{"id": "routine_a", "name": "Morning"}],
		"habits": [{"name": "water"}],
		"dumps": [{"title": "note"}],
		"schedule": [{"day": "mon"}]
	}`
	if err := flat.SetString(flatstore.KeyAggregate, blob); err != nil {
		t.Fatalf("seed: %v", err)
	}

	report := m.Run(ctx)
	if !report.Success {
		t.Fatalf("report = %+v", report)
	}
	want := map[string]int{"tasks": 2, "routines": 1, "habits": 1, "dumps": 1, "schedule": 1}
	for key, count := range want {
		if report.Migrated[key] != count {
			t.Fatalf("migrated[%s] = %d, want %d", key, report.Migrated[key], count)
		}
	}

	routines, err := s.GetAll(ctx, "routines")
	if err != nil {
		t.Fatalf("get routines: %v", err)
	}
	if len(routines) != 1 || routines[0]["name"] != "Morning" {
		t.Fatalf("routines = %v", routines)
	}
	tasks, err := s.GetAll(ctx, "tasks")
	if err != nil {
		t.Fatalf("get tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks = %v", tasks)
	}
}

func TestRunMigratesStandaloneSchedule(t *testing.T) {
	m, flat, s := newMigrator(t)
	ctx := context.Background()

	if err := flat.SetString(flatstore.KeyScheduleEvents, `[{"day": "tue"}, {"day": "wed"}]`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	report := m.Run(ctx)
	if !report.Success || report.Migrated["scheduleEvents"] != 2 {
		t.Fatalf("report = %+v", report)
	}

	events, err := s.GetAll(ctx, "schedule")
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %v", events)
	}
}

func TestRunCorruptedAggregateContinuesSweep(t *testing.T) {
	m, flat, s := newMigrator(t)
	ctx := context.Background()

	if err := flat.SetString(flatstore.KeyAggregate, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := flat.SetString(flatstore.KeyScheduleEvents, `[{"day": "thu"}]`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	report := m.Run(ctx)
	// The sweep completed, so the report stays successful with the failure
	// tallied rather than fatal.
	if !report.Success {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v", report.Errors)
	}
	// The standalone schedule key still migrated.
	if report.Migrated["scheduleEvents"] != 1 {
		t.Fatalf("report = %+v", report)
	}
	events, err := s.GetAll(ctx, "schedule")
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %v", events)
	}
}
