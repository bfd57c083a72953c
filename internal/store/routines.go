package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultStepDuration = 60 // seconds

// RoutineStep is one step of a routine. Order is dense and zero-based.
type RoutineStep struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	Order    int    `json:"order"`
	Duration int    `json:"duration"`
}

// Routine is a sequence of timed steps.
type Routine struct {
	ID                string        `json:"id"`
	Name              string        `json:"name,omitempty"`
	Description       string        `json:"description,omitempty"`
	Steps             []RoutineStep `json:"steps"`
	Tags              []string      `json:"tags,omitempty"`
	EnergyTag         *string       `json:"energyTag,omitempty"`
	EstimatedDuration *float64      `json:"estimatedDuration,omitempty"`
	TotalDuration     int           `json:"totalDuration"`
	Timestamp         int64         `json:"timestamp"`
	CreatedAt         string        `json:"createdAt,omitempty"`
}

// CreateRoutine stores a new routine, assigning an id when absent and
// computing the total duration from its steps.
func (s *Store) CreateRoutine(ctx context.Context, routine Routine) (string, error) {
	if routine.ID == "" {
		routine.ID = "routine_" + uuid.NewString()
	}
	if routine.Steps == nil {
		routine.Steps = []RoutineStep{}
	}
	routine.Timestamp = time.Now().UnixMilli()
	routine.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	routine.TotalDuration = totalDuration(routine.Steps)

	if err := s.putRoutine(ctx, routine); err != nil {
		return "", err
	}
	return routine.ID, nil
}

// Routines returns all stored routines.
func (s *Store) Routines(ctx context.Context) ([]Routine, error) {
	records, err := s.GetAll(ctx, "routines")
	if err != nil {
		return nil, err
	}
	routines := make([]Routine, 0, len(records))
	for _, record := range records {
		var routine Routine
		if err := recordInto(record, &routine); err != nil {
			return nil, fmt.Errorf("decode routine: %w", err)
		}
		routines = append(routines, routine)
	}
	return routines, nil
}

// Routine fetches one routine by id.
func (s *Store) Routine(ctx context.Context, id string) (Routine, error) {
	record, err := s.GetByID(ctx, "routines", id)
	if err != nil {
		return Routine{}, err
	}
	var routine Routine
	if err := recordInto(record, &routine); err != nil {
		return Routine{}, fmt.Errorf("decode routine %s: %w", id, err)
	}
	return routine, nil
}

// UpdateRoutine replaces a routine, restamping the timestamp and
// recomputing the total duration.
func (s *Store) UpdateRoutine(ctx context.Context, routine Routine) (string, error) {
	if routine.ID == "" {
		return "", fmt.Errorf("update routine: missing id")
	}
	if routine.Steps == nil {
		routine.Steps = []RoutineStep{}
	}
	routine.Timestamp = time.Now().UnixMilli()
	routine.TotalDuration = totalDuration(routine.Steps)

	if err := s.putRoutine(ctx, routine); err != nil {
		return "", err
	}
	return routine.ID, nil
}

// DeleteRoutine removes a routine by id.
func (s *Store) DeleteRoutine(ctx context.Context, id string) error {
	return s.DeleteByID(ctx, "routines", id)
}

// AddRoutineStep appends a step, assigning id, order, and the default
// duration when the step carries none.
func (s *Store) AddRoutineStep(ctx context.Context, routineID string, step RoutineStep) (Routine, error) {
	routine, err := s.Routine(ctx, routineID)
	if err != nil {
		return Routine{}, err
	}

	if step.ID == "" {
		step.ID = "step_" + uuid.NewString()
	}
	step.Order = len(routine.Steps)
	if step.Duration == 0 {
		step.Duration = defaultStepDuration
	}

	routine.Steps = append(routine.Steps, step)
	routine.TotalDuration = totalDuration(routine.Steps)
	routine.Timestamp = time.Now().UnixMilli()

	if err := s.putRoutine(ctx, routine); err != nil {
		return Routine{}, err
	}
	return routine, nil
}

// RemoveRoutineStep deletes a step and re-densifies the order of the rest.
func (s *Store) RemoveRoutineStep(ctx context.Context, routineID, stepID string) (Routine, error) {
	routine, err := s.Routine(ctx, routineID)
	if err != nil {
		return Routine{}, err
	}

	kept := routine.Steps[:0]
	for _, step := range routine.Steps {
		if step.ID != stepID {
			kept = append(kept, step)
		}
	}
	routine.Steps = kept
	for i := range routine.Steps {
		routine.Steps[i].Order = i
	}
	routine.TotalDuration = totalDuration(routine.Steps)
	routine.Timestamp = time.Now().UnixMilli()

	if err := s.putRoutine(ctx, routine); err != nil {
		return Routine{}, err
	}
	return routine, nil
}

// ReorderRoutineStep moves a step to a new position and re-densifies order.
func (s *Store) ReorderRoutineStep(ctx context.Context, routineID, stepID string, newOrder int) (Routine, error) {
	routine, err := s.Routine(ctx, routineID)
	if err != nil {
		return Routine{}, err
	}

	stepIndex := -1
	for i, step := range routine.Steps {
		if step.ID == stepID {
			stepIndex = i
			break
		}
	}
	if stepIndex == -1 {
		return Routine{}, fmt.Errorf("routine %s: step %s: %w", routineID, stepID, ErrNotFound)
	}

	step := routine.Steps[stepIndex]
	routine.Steps = append(routine.Steps[:stepIndex], routine.Steps[stepIndex+1:]...)
	if newOrder < 0 {
		newOrder = 0
	}
	if newOrder > len(routine.Steps) {
		newOrder = len(routine.Steps)
	}
	routine.Steps = append(routine.Steps[:newOrder], append([]RoutineStep{step}, routine.Steps[newOrder:]...)...)
	for i := range routine.Steps {
		routine.Steps[i].Order = i
	}
	routine.Timestamp = time.Now().UnixMilli()

	if err := s.putRoutine(ctx, routine); err != nil {
		return Routine{}, err
	}
	return routine, nil
}

// CloneRoutine copies a routine under a fresh id. An empty newName yields
// "<name> (Copy)".
func (s *Store) CloneRoutine(ctx context.Context, routineID, newName string) (string, error) {
	routine, err := s.Routine(ctx, routineID)
	if err != nil {
		return "", err
	}

	routine.ID = "routine_" + uuid.NewString()
	if newName != "" {
		routine.Name = newName
	} else {
		routine.Name = routine.Name + " (Copy)"
	}
	routine.Timestamp = time.Now().UnixMilli()
	routine.CreatedAt = time.Now().UTC().Format(time.RFC3339)

	if err := s.putRoutine(ctx, routine); err != nil {
		return "", err
	}
	return routine.ID, nil
}

func (s *Store) putRoutine(ctx context.Context, routine Routine) error {
	record, err := recordFrom(routine)
	if err != nil {
		return fmt.Errorf("encode routine %s: %w", routine.ID, err)
	}
	_, err = s.Put(ctx, "routines", record)
	return err
}

func totalDuration(steps []RoutineStep) int {
	total := 0
	for _, step := range steps {
		total += step.Duration
	}
	return total
}

// recordFrom converts a typed value to a schemaless record via JSON.
func recordFrom(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// recordInto converts a schemaless record into a typed value via JSON.
func recordInto(record Record, v any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
