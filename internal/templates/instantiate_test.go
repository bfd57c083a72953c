package templates_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aurorae-haven/aurorae/internal/flatstore"
	"github.com/aurorae-haven/aurorae/internal/store"
	"github.com/aurorae-haven/aurorae/internal/taskmatrix"
	"github.com/aurorae-haven/aurorae/internal/templates"
)

func newInstantiator(t *testing.T) (*templates.Instantiator, *store.Store, *taskmatrix.Manager) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	flat, err := flatstore.Open(flatstore.InMemoryConfig())
	if err != nil {
		t.Fatalf("open flat store: %v", err)
	}
	t.Cleanup(func() { flat.Close() })

	matrix := taskmatrix.NewManager(flat, nil)
	return templates.NewInstantiator(s, matrix), s, matrix
}

func TestInstantiateDispatch(t *testing.T) {
	ins, _, _ := newInstantiator(t)
	ctx := context.Background()

	_, err := ins.Instantiate(ctx, nil)
	if err == nil || err.Error() != "template is required" {
		t.Fatalf("err = %v", err)
	}

	_, err = ins.Instantiate(ctx, store.Record{"type": "habit", "title": "x"})
	if err == nil || err.Error() != "unknown template type: habit" {
		t.Fatalf("err = %v", err)
	}
}

func TestInstantiateTask(t *testing.T) {
	ins, _, matrix := newInstantiator(t)
	ctx := context.Background()

	result, err := ins.Instantiate(ctx, store.Record{
		"type":      "task",
		"title":     "Water the plants",
		"quadrant":  taskmatrix.QuadrantNotUrgentImportant,
		"dueOffset": float64(86400000),
	})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if result.Type != "task" || result.Quadrant != taskmatrix.QuadrantNotUrgentImportant {
		t.Fatalf("result = %+v", result)
	}
	if result.Task == nil || result.Task.Text != "Water the plants" {
		t.Fatalf("task = %+v", result.Task)
	}
	if result.Task.DueDate == nil {
		t.Fatal("due date not set")
	}
	wantDue := time.Now().UnixMilli() + 86400000
	if diff := *result.Task.DueDate - wantDue; diff < -5000 || diff > 5000 {
		t.Fatalf("due date off by %dms", diff)
	}

	loaded, err := matrix.Load()
	if err != nil {
		t.Fatalf("load matrix: %v", err)
	}
	if len(loaded[taskmatrix.QuadrantNotUrgentImportant]) != 1 {
		t.Fatalf("matrix = %+v", loaded)
	}
}

func TestInstantiateTaskDefaultsQuadrant(t *testing.T) {
	ins, _, _ := newInstantiator(t)

	task, quadrant, err := ins.InstantiateTask(store.Record{"type": "task", "title": "Laundry"})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if quadrant != taskmatrix.QuadrantUrgentImportant {
		t.Fatalf("quadrant = %q", quadrant)
	}
	if task.DueDate != nil {
		t.Fatalf("due date = %v", *task.DueDate)
	}
}

func TestInstantiateTaskErrors(t *testing.T) {
	ins, _, _ := newInstantiator(t)

	_, _, err := ins.InstantiateTask(store.Record{"type": "routine", "title": "x"})
	if err == nil || err.Error() != "invalid task template" {
		t.Fatalf("err = %v", err)
	}

	_, _, err = ins.InstantiateTask(store.Record{"type": "task", "title": "x", "dueOffset": "soon"})
	if err == nil || err.Error() != "template dueOffset must be a number" {
		t.Fatalf("err = %v", err)
	}

	_, _, err = ins.InstantiateTask(store.Record{"type": "task", "title": "x", "dueOffset": float64(-1)})
	if err == nil || err.Error() != "template dueOffset must be a positive number" {
		t.Fatalf("err = %v", err)
	}

	_, _, err = ins.InstantiateTask(store.Record{"type": "task"})
	if err == nil || !strings.Contains(err.Error(), "invalid template data") {
		t.Fatalf("err = %v", err)
	}
}

func TestInstantiateRoutine(t *testing.T) {
	ins, s, _ := newInstantiator(t)
	ctx := context.Background()

	estimated := float64(900)
	id, err := ins.InstantiateRoutine(ctx, store.Record{
		"type":  "routine",
		"title": "Morning launch",
		"tags":  []any{"morning"},
		"steps": []any{
			map[string]any{"label": "Stretch", "duration": float64(300)},
			map[string]any{"label": "Plan"},
		},
		"energyTag":         "low",
		"estimatedDuration": estimated,
	})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	routine, err := s.Routine(ctx, id)
	if err != nil {
		t.Fatalf("get routine: %v", err)
	}
	if routine.Name != "Morning launch" {
		t.Fatalf("name = %q", routine.Name)
	}
	if len(routine.Steps) != 2 {
		t.Fatalf("steps = %+v", routine.Steps)
	}
	if routine.Steps[0].Duration != 300 || routine.Steps[1].Order != 1 {
		t.Fatalf("steps = %+v", routine.Steps)
	}
	if routine.TotalDuration != 300 {
		t.Fatalf("total = %d", routine.TotalDuration)
	}
	if routine.EnergyTag == nil || *routine.EnergyTag != "low" {
		t.Fatalf("energy tag = %v", routine.EnergyTag)
	}
	if routine.EstimatedDuration == nil || *routine.EstimatedDuration != estimated {
		t.Fatalf("estimated = %v", routine.EstimatedDuration)
	}
}

func TestInstantiateRoutineErrors(t *testing.T) {
	ins, _, _ := newInstantiator(t)
	ctx := context.Background()

	_, err := ins.InstantiateRoutine(ctx, store.Record{"type": "task", "title": "x"})
	if err == nil || err.Error() != "invalid routine template" {
		t.Fatalf("err = %v", err)
	}

	_, err = ins.InstantiateRoutine(ctx, store.Record{
		"type": "routine", "title": "x",
		"steps": []any{map[string]any{"label": "  "}},
	})
	if err == nil || err.Error() != "step 0 must have a non-empty label" {
		t.Fatalf("err = %v", err)
	}

	_, err = ins.InstantiateRoutine(ctx, store.Record{
		"type": "routine", "title": "x",
		"steps": []any{map[string]any{"label": "ok", "duration": float64(-1)}},
	})
	if err == nil || err.Error() != "step 0 duration must be a non-negative number" {
		t.Fatalf("err = %v", err)
	}
}
