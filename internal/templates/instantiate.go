package templates

import (
	"context"
	"fmt"
	"strings"

	"github.com/aurorae-haven/aurorae/internal/store"
	"github.com/aurorae-haven/aurorae/internal/taskmatrix"
)

// InstantiateResult describes the entity created from a template.
type InstantiateResult struct {
	Type     string           `json:"type"`
	ID       string           `json:"id"`
	Quadrant string           `json:"quadrant,omitempty"`
	Task     *taskmatrix.Task `json:"task,omitempty"`
}

// Instantiator spawns independent tasks and routines from templates.
type Instantiator struct {
	store  *store.Store
	matrix *taskmatrix.Manager
}

func NewInstantiator(s *store.Store, matrix *taskmatrix.Manager) *Instantiator {
	return &Instantiator{store: s, matrix: matrix}
}

// Instantiate dispatches on the template type.
func (ins *Instantiator) Instantiate(ctx context.Context, tpl store.Record) (InstantiateResult, error) {
	if tpl == nil {
		return InstantiateResult{}, fmt.Errorf("template is required")
	}

	switch tpl["type"] {
	case "task":
		task, quadrant, err := ins.InstantiateTask(tpl)
		if err != nil {
			return InstantiateResult{}, err
		}
		return InstantiateResult{Type: "task", ID: task.ID, Quadrant: quadrant, Task: &task}, nil
	case "routine":
		routineID, err := ins.InstantiateRoutine(ctx, tpl)
		if err != nil {
			return InstantiateResult{}, err
		}
		return InstantiateResult{Type: "routine", ID: routineID}, nil
	default:
		return InstantiateResult{}, fmt.Errorf("unknown template type: %v", tpl["type"])
	}
}

// InstantiateTask creates an independent task in the quadrant matrix from a
// task template. Returns the new task and the quadrant it landed in.
func (ins *Instantiator) InstantiateTask(tpl store.Record) (taskmatrix.Task, string, error) {
	if tpl == nil || tpl["type"] != "task" {
		return taskmatrix.Task{}, "", fmt.Errorf("invalid task template")
	}
	if errs := ValidateTemplate(tpl); len(errs) > 0 {
		return taskmatrix.Task{}, "", fmt.Errorf("invalid template data: %s", strings.Join(errs, "; "))
	}

	var dueOffset int64
	if raw, present := tpl["dueOffset"]; present && raw != nil {
		n, ok := asNumber(raw)
		if !ok {
			return taskmatrix.Task{}, "", fmt.Errorf("template dueOffset must be a number")
		}
		if n <= 0 {
			return taskmatrix.Task{}, "", fmt.Errorf("template dueOffset must be a positive number")
		}
		dueOffset = int64(n)
	}

	quadrant, _ := tpl["quadrant"].(string)
	if quadrant == "" {
		quadrant = taskmatrix.QuadrantUrgentImportant
	}

	title, _ := tpl["title"].(string)
	task := taskmatrix.NewTask(title, dueOffset)
	if err := ins.matrix.Add(quadrant, task); err != nil {
		return taskmatrix.Task{}, "", err
	}
	return task, quadrant, nil
}

// InstantiateRoutine creates an independent routine in the object store
// from a routine template and returns its id.
func (ins *Instantiator) InstantiateRoutine(ctx context.Context, tpl store.Record) (string, error) {
	if tpl == nil || tpl["type"] != "routine" {
		return "", fmt.Errorf("invalid routine template")
	}
	if errs := ValidateTemplate(tpl); len(errs) > 0 {
		return "", fmt.Errorf("invalid template data: %s", strings.Join(errs, "; "))
	}

	var steps []store.RoutineStep
	if rawSteps, _ := tpl["steps"].([]any); len(rawSteps) > 0 {
		for i, raw := range rawSteps {
			step, ok := raw.(map[string]any)
			if !ok || step == nil {
				return "", fmt.Errorf("step %d must be an object", i)
			}
			label, _ := step["label"].(string)
			if strings.TrimSpace(label) == "" {
				return "", fmt.Errorf("step %d must have a non-empty label", i)
			}
			duration := 0.0
			if raw, present := step["duration"]; present {
				n, ok := asNumber(raw)
				if !ok || n < 0 {
					return "", fmt.Errorf("step %d duration must be a non-negative number", i)
				}
				duration = n
			}
			steps = append(steps, store.RoutineStep{Label: label, Order: i, Duration: int(duration)})
		}
	}

	var tags []string
	if rawTags, _ := tpl["tags"].([]any); len(rawTags) > 0 {
		for i, raw := range rawTags {
			tag, ok := raw.(string)
			if !ok {
				return "", fmt.Errorf("tag %d must be a string", i)
			}
			tags = append(tags, tag)
		}
	}

	var estimated *float64
	if raw, present := tpl["estimatedDuration"]; present && raw != nil {
		n, ok := asNumber(raw)
		if !ok || n < 0 {
			return "", fmt.Errorf("estimatedDuration must be a non-negative number")
		}
		estimated = &n
	}

	var energyTag *string
	if s, _ := tpl["energyTag"].(string); s != "" {
		energyTag = &s
	}

	title, _ := tpl["title"].(string)
	return ins.store.CreateRoutine(ctx, store.Routine{
		Name:              title,
		Steps:             steps,
		Tags:              tags,
		EnergyTag:         energyTag,
		EstimatedDuration: estimated,
	})
}
