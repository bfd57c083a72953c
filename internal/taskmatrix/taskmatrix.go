// Package taskmatrix maintains the quadrant task matrix stored as one JSON
// blob in the flat store. Quadrants follow the Eisenhower split.
package taskmatrix

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurorae-haven/aurorae/internal/flatstore"
)

// Quadrant names.
const (
	QuadrantUrgentImportant       = "urgent_important"
	QuadrantNotUrgentImportant    = "not_urgent_important"
	QuadrantUrgentNotImportant    = "urgent_not_important"
	QuadrantNotUrgentNotImportant = "not_urgent_not_important"
)

// ErrQuotaExceeded is surfaced when the flat store rejects a matrix write
// for lack of space.
var ErrQuotaExceeded = errors.New("storage quota exceeded, free up space by deleting old tasks")

// Task is one entry in the matrix.
type Task struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Completed   bool   `json:"completed"`
	CreatedAt   int64  `json:"createdAt"`
	DueDate     *int64 `json:"dueDate"`
	CompletedAt *int64 `json:"completedAt"`
}

// Matrix maps quadrant names to task lists.
type Matrix map[string][]Task

// Empty returns a matrix with all four quadrants initialized.
func Empty() Matrix {
	return Matrix{
		QuadrantUrgentImportant:       {},
		QuadrantNotUrgentImportant:    {},
		QuadrantUrgentNotImportant:    {},
		QuadrantNotUrgentNotImportant: {},
	}
}

// Manager reads and writes the matrix blob.
type Manager struct {
	flat   *flatstore.Store
	logger *slog.Logger
}

// NewManager creates a Manager. logger may be nil.
func NewManager(flat *flatstore.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{flat: flat, logger: logger}
}

// Load reads the matrix. A missing or corrupted blob yields an empty matrix;
// corruption is logged, not returned.
func (m *Manager) Load() (Matrix, error) {
	raw, err := m.flat.Get(flatstore.KeyTaskMatrix)
	if errors.Is(err, flatstore.ErrNotFound) {
		return Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load task matrix: %w", err)
	}

	var matrix Matrix
	if err := json.Unmarshal(raw, &matrix); err != nil {
		m.logger.Warn("task matrix blob is corrupted, reinitializing", "error", err)
		return Empty(), nil
	}
	if matrix == nil {
		return Empty(), nil
	}
	return matrix, nil
}

// Save writes the matrix back. Quota failures map to ErrQuotaExceeded.
func (m *Manager) Save(matrix Matrix) error {
	data, err := json.Marshal(matrix)
	if err != nil {
		return fmt.Errorf("marshal task matrix: %w", err)
	}
	if err := m.flat.Set(flatstore.KeyTaskMatrix, data); err != nil {
		if errors.Is(err, flatstore.ErrQuotaExceeded) {
			return ErrQuotaExceeded
		}
		return fmt.Errorf("save task matrix: %w", err)
	}
	return nil
}

// Add appends a task to the named quadrant, creating the bucket if the
// stored blob lacks it, and persists the matrix.
func (m *Manager) Add(quadrant string, task Task) error {
	matrix, err := m.Load()
	if err != nil {
		return err
	}
	if _, ok := matrix[quadrant]; !ok {
		matrix[quadrant] = []Task{}
	}
	matrix[quadrant] = append(matrix[quadrant], task)
	return m.Save(matrix)
}

// NewTask builds an independent task with a fresh id. dueOffset, when
// positive, sets the due date that far (in milliseconds) past now.
func NewTask(text string, dueOffset int64) Task {
	now := time.Now().UnixMilli()
	task := Task{
		ID:        uuid.NewString(),
		Text:      text,
		Completed: false,
		CreatedAt: now,
	}
	if dueOffset > 0 {
		due := now + dueOffset
		task.DueDate = &due
	}
	return task
}
