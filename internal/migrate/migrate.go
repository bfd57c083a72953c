// Package migrate moves data from the legacy flat key-value layout into the
// object store: the aggregate blob plus the standalone schedule key.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/aurorae-haven/aurorae/internal/flatstore"
	otelPkg "github.com/aurorae-haven/aurorae/internal/otel"
	"github.com/aurorae-haven/aurorae/internal/store"
)

// Report summarises one migration pass. Migrated maps collection names to
// the number of records moved. Success reports that the sweep mechanically
// completed; per-collection failures are tallied in Errors without turning
// it false, and absent legacy data is success with empty counts.
type Report struct {
	Success  bool           `json:"success"`
	Migrated map[string]int `json:"migrated"`
	Errors   []string       `json:"errors"`
}

// Total is the number of records moved across all collections.
func (r Report) Total() int {
	total := 0
	for _, n := range r.Migrated {
		total += n
	}
	return total
}

// Migrator copies legacy flat records into the object store.
type Migrator struct {
	flat    *flatstore.Store
	store   *store.Store
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *otelPkg.Metrics
}

func New(flat *flatstore.Store, s *store.Store, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{flat: flat, store: s, logger: logger}
}

// WithTelemetry attaches tracing and metric instruments.
func (m *Migrator) WithTelemetry(tracer trace.Tracer, metrics *otelPkg.Metrics) *Migrator {
	m.tracer = tracer
	m.metrics = metrics
	return m
}

// aggregate is the legacy combined blob. Routines were historically called
// sequences, so that is the field name on the wire.
type aggregate struct {
	Tasks    []store.Record `json:"tasks"`
	Routines []store.Record `json:"sequences"`
	Habits   []store.Record `json:"habits"`
	Dumps    []store.Record `json:"dumps"`
	Schedule []store.Record `json:"schedule"`
}

// Run migrates everything it can find. A failing collection is recorded in
// the report and the sweep continues; only the failed collection is lost.
func (m *Migrator) Run(ctx context.Context) Report {
	report := Report{Success: true, Migrated: map[string]int{}, Errors: []string{}}

	if m.tracer != nil {
		var span trace.Span
		ctx, span = otelPkg.StartSpan(ctx, m.tracer, "migrate.run")
		defer func() {
			span.SetAttributes(otelPkg.AttrRecordCount.Int(report.Total()))
			span.End()
		}()
	}
	if m.metrics != nil {
		start := time.Now()
		defer func() {
			m.metrics.MigrateDuration.Record(ctx, time.Since(start).Seconds())
			m.metrics.RecordsWritten.Add(ctx, int64(report.Total()))
		}()
	}

	m.migrateAggregate(ctx, &report)
	m.migrateScheduleEvents(ctx, &report)
	return report
}

func (m *Migrator) migrateAggregate(ctx context.Context, report *Report) {
	raw, err := m.flat.Get(flatstore.KeyAggregate)
	if errors.Is(err, flatstore.ErrNotFound) {
		return
	}
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("read %s: %v", flatstore.KeyAggregate, err))
		return
	}

	var agg aggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("parse %s: %v", flatstore.KeyAggregate, err))
		return
	}

	m.migrateCollection(ctx, report, "tasks", "tasks", agg.Tasks)
	m.migrateCollection(ctx, report, "routines", "routines", agg.Routines)
	m.migrateCollection(ctx, report, "habits", "habits", agg.Habits)
	m.migrateCollection(ctx, report, "dumps", "dumps", agg.Dumps)
	m.migrateCollection(ctx, report, "schedule", "schedule", agg.Schedule)
}

func (m *Migrator) migrateScheduleEvents(ctx context.Context, report *Report) {
	raw, err := m.flat.Get(flatstore.KeyScheduleEvents)
	if errors.Is(err, flatstore.ErrNotFound) {
		return
	}
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("read %s: %v", flatstore.KeyScheduleEvents, err))
		return
	}

	var events []store.Record
	if err := json.Unmarshal(raw, &events); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("parse %s: %v", flatstore.KeyScheduleEvents, err))
		return
	}

	m.migrateCollection(ctx, report, "scheduleEvents", "schedule", events)
}

// migrateCollection puts records one by one. On failure the collection's
// error is recorded and the count reflects what actually landed.
func (m *Migrator) migrateCollection(ctx context.Context, report *Report, reportKey, collection string, records []store.Record) {
	if records == nil {
		return
	}

	moved := 0
	for _, record := range records {
		if _, err := m.store.Put(ctx, collection, record); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", reportKey, err))
			m.logger.Warn("migration put failed", "collection", collection, "error", err)
			break
		}
		moved++
	}
	report.Migrated[reportKey] = moved
}
