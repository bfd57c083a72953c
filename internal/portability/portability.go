// Package portability implements whole-database export and import: a
// versioned JSON envelope covering the object store collections, the brain
// dump aggregate, and the quadrant task matrix.
package portability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/aurorae-haven/aurorae/internal/braindump"
	"github.com/aurorae-haven/aurorae/internal/flatstore"
	otelPkg "github.com/aurorae-haven/aurorae/internal/otel"
	"github.com/aurorae-haven/aurorae/internal/store"
)

const envelopeVersion = 1

// Object store collections covered by the envelope, in envelope field order.
var exportCollections = []struct {
	field      string
	collection string
}{
	{"tasks", "tasks"},
	{"routines", "routines"},
	{"habits", "habits"},
	{"dumps", "dumps"},
	{"schedule", "schedule"},
	{"stats", "stats"},
	{"fileRefs", "file_refs"},
}

// Porter moves the whole database in and out of the JSON envelope.
type Porter struct {
	store   *store.Store
	flat    *flatstore.Store
	dump    *braindump.Manager
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *otelPkg.Metrics
}

func New(s *store.Store, flat *flatstore.Store, dump *braindump.Manager, logger *slog.Logger) *Porter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Porter{store: s, flat: flat, dump: dump, logger: logger}
}

// WithTelemetry attaches tracing and metric instruments. Nil values keep
// the corresponding concern disabled.
func (p *Porter) WithTelemetry(tracer trace.Tracer, metrics *otelPkg.Metrics) *Porter {
	p.tracer = tracer
	p.metrics = metrics
	return p
}

// ImportReport summarises one import pass.
type ImportReport struct {
	Success          bool           `json:"success"`
	Imported         map[string]int `json:"imported"`
	AuroraeTasksData bool           `json:"auroraeTasksData,omitempty"`
	Errors           []string       `json:"errors"`
}

// Export builds the full envelope from the object store, the brain dump
// aggregate, and the raw task matrix blob.
func (p *Porter) Export(ctx context.Context) (map[string]any, error) {
	data := map[string]any{
		"version":    envelopeVersion,
		"exportedAt": time.Now().UTC().Format(time.RFC3339),
	}

	for _, c := range exportCollections {
		records, err := p.store.GetAll(ctx, c.collection)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", c.collection, err)
		}
		data[c.field] = recordsToAny(records)
	}

	agg, err := p.dump.Aggregate()
	if err != nil {
		return nil, fmt.Errorf("export brain dump: %w", err)
	}
	data["brainDump"] = map[string]any{
		"content":  agg.Content,
		"tags":     agg.Tags,
		"versions": emptyIfNil(agg.Versions),
		"entries":  emptyIfNil(agg.Entries),
	}

	// An unparsable matrix blob exports as null rather than failing the
	// whole envelope.
	data["auroraeTasksData"] = p.taskMatrixBlob()

	// Legacy alias kept for old consumers.
	data["sequences"] = data["routines"]

	return data, nil
}

// FallbackExport builds the envelope from the flat store alone, for
// installs that never migrated into the object store.
func (p *Porter) FallbackExport() (map[string]any, error) {
	data := map[string]any{
		"version":    envelopeVersion,
		"exportedAt": time.Now().UTC().Format(time.RFC3339),
	}

	for _, field := range arrayFields {
		data[field] = p.flatArray(field)
	}

	// Legacy key for routines.
	if routines, _ := data["routines"].([]any); len(routines) == 0 {
		if legacy := p.flatArray("sequences"); len(legacy) > 0 {
			data["routines"] = legacy
		}
	}

	// The task matrix flattens into the tasks array when present.
	if matrix := p.taskMatrixBlob(); matrix != nil {
		data["auroraeTasksData"] = matrix
		flat := []any{}
		for _, quadrant := range matrix {
			if tasks, ok := quadrant.([]any); ok {
				flat = append(flat, tasks...)
			}
		}
		data["tasks"] = flat
	}

	agg, err := p.dump.Aggregate()
	if err != nil {
		return nil, fmt.Errorf("export brain dump: %w", err)
	}
	if len(agg.Entries) > 0 {
		data["dumps"] = emptyIfNil(agg.Entries)
	}
	data["brainDump"] = map[string]any{
		"content":  agg.Content,
		"tags":     agg.Tags,
		"versions": emptyIfNil(agg.Versions),
		"entries":  emptyIfNil(agg.Entries),
	}

	data["sequences"] = data["routines"]
	return data, nil
}

// DataTemplate prefers the object store envelope and falls back to the flat
// store when the object store is empty or unreadable.
func (p *Porter) DataTemplate(ctx context.Context) (map[string]any, error) {
	data, err := p.Export(ctx)
	if err == nil && envelopeHasData(data) {
		return data, nil
	}
	if err != nil {
		p.logger.Warn("object store export failed, falling back to flat store", "error", err)
	}
	return p.FallbackExport()
}

// ExportJSON validates and serializes the envelope.
func (p *Porter) ExportJSON(ctx context.Context) ([]byte, error) {
	if p.tracer != nil {
		var span trace.Span
		ctx, span = otelPkg.StartSpan(ctx, p.tracer, "portability.export")
		defer span.End()
	}
	if p.metrics != nil {
		start := time.Now()
		defer func() {
			p.metrics.ExportDuration.Record(ctx, time.Since(start).Seconds())
		}()
	}

	data, err := p.DataTemplate(ctx)
	if err != nil {
		return nil, err
	}
	errs, serialized := ValidateExportData(data)
	if len(errs) > 0 {
		return nil, fmt.Errorf("export validation failed: %s", strings.Join(errs, ", "))
	}
	return serialized, nil
}

// ExportFilename returns a fresh export file name: aurorae_<date>_<uuid>.json.
func ExportFilename() string {
	return fmt.Sprintf("aurorae_%s_%s.json", time.Now().UTC().Format("2006-01-02"), uuid.NewString())
}

// WriteExport writes the envelope into dir and returns the file path.
func (p *Porter) WriteExport(ctx context.Context, dir string) (string, error) {
	serialized, err := p.ExportJSON(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, ExportFilename())
	if err := os.WriteFile(path, serialized, 0o600); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// ImportJSON parses, validates, and imports a raw envelope.
func (p *Porter) ImportJSON(ctx context.Context, raw []byte) (ImportReport, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return ImportReport{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if errs := ValidateImportData(data); len(errs) > 0 {
		return ImportReport{}, fmt.Errorf("import validation failed: %s", strings.Join(errs, ", "))
	}
	if err := validateEnvelopeShape(data); err != nil {
		return ImportReport{}, err
	}
	return p.Import(ctx, data), nil
}

// Import replaces the database contents with the envelope's. Existing
// collections are cleared first; the first failure aborts the pass.
func (p *Porter) Import(ctx context.Context, data map[string]any) ImportReport {
	report := ImportReport{Imported: map[string]int{}, Errors: []string{}}

	if p.tracer != nil {
		var span trace.Span
		ctx, span = otelPkg.StartSpan(ctx, p.tracer, "portability.import")
		defer func() {
			span.SetAttributes(otelPkg.AttrRecordCount.Int(totalImported(report)))
			span.End()
		}()
	}
	if p.metrics != nil {
		start := time.Now()
		defer func() {
			p.metrics.ImportDuration.Record(ctx, time.Since(start).Seconds())
			p.metrics.RecordsWritten.Add(ctx, int64(totalImported(report)))
		}()
	}

	fail := func(err error) ImportReport {
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	for _, c := range exportCollections {
		if err := p.store.Clear(ctx, c.collection); err != nil {
			return fail(fmt.Errorf("clear %s: %w", c.collection, err))
		}
	}

	for _, c := range exportCollections {
		records, present := data[c.field].([]any)
		if !present {
			// Old exports carried routines under the sequences field.
			if c.field != "routines" {
				continue
			}
			if records, present = data["sequences"].([]any); !present {
				continue
			}
		}
		for _, raw := range records {
			record, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if _, err := p.store.Put(ctx, c.collection, record); err != nil {
				return fail(fmt.Errorf("import %s: %w", c.collection, err))
			}
		}
		report.Imported[c.field] = len(records)
	}

	if dump, ok := data["brainDump"].(map[string]any); ok {
		if err := p.importBrainDump(dump); err != nil {
			return fail(err)
		}
	}

	if matrix, ok := data["auroraeTasksData"].(map[string]any); ok && matrix != nil {
		serialized, err := json.Marshal(matrix)
		if err != nil {
			return fail(fmt.Errorf("import task matrix: %w", err))
		}
		if err := p.flat.Set(flatstore.KeyTaskMatrix, serialized); err != nil {
			return fail(fmt.Errorf("import task matrix: %w", err))
		}
		report.AuroraeTasksData = true
	}

	report.Success = true
	return report
}

func totalImported(report ImportReport) int {
	total := 0
	for _, n := range report.Imported {
		total += n
	}
	return total
}

// importBrainDump persists only the fields the envelope carries.
func (p *Porter) importBrainDump(dump map[string]any) error {
	if content, ok := dump["content"].(string); ok && content != "" {
		if err := p.flat.SetString(flatstore.KeyBrainDumpContent, content); err != nil {
			return fmt.Errorf("import brain dump content: %w", err)
		}
	}
	if tags, ok := dump["tags"].(string); ok && tags != "" {
		if err := p.flat.SetString(flatstore.KeyBrainDumpTags, tags); err != nil {
			return fmt.Errorf("import brain dump tags: %w", err)
		}
	}
	for key, field := range map[string]string{
		flatstore.KeyBrainDumpVersions: "versions",
		flatstore.KeyBrainDumpEntries:  "entries",
	} {
		v, present := dump[field]
		if !present || v == nil {
			continue
		}
		serialized, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("import brain dump %s: %w", field, err)
		}
		if err := p.flat.Set(key, serialized); err != nil {
			return fmt.Errorf("import brain dump %s: %w", field, err)
		}
	}
	return nil
}

// taskMatrixBlob reads and parses the raw matrix key. Missing or corrupted
// blobs report nil.
func (p *Porter) taskMatrixBlob() map[string]any {
	raw, err := p.flat.Get(flatstore.KeyTaskMatrix)
	if err != nil {
		if !errors.Is(err, flatstore.ErrNotFound) {
			p.logger.Warn("task matrix read failed during export", "error", err)
		}
		return nil
	}
	var matrix map[string]any
	if err := json.Unmarshal(raw, &matrix); err != nil {
		p.logger.Warn("task matrix parse failed during export", "error", err)
		return nil
	}
	return matrix
}

// flatArray reads a flat key holding a JSON array. Missing or corrupted
// keys report empty.
func (p *Porter) flatArray(key string) []any {
	raw, err := p.flat.Get(key)
	if err != nil {
		return []any{}
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []any{}
	}
	return out
}

func envelopeHasData(data map[string]any) bool {
	for _, field := range arrayFields {
		if records, ok := data[field].([]any); ok && len(records) > 0 {
			return true
		}
	}
	return false
}

func recordsToAny(records []store.Record) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = map[string]any(r)
	}
	return out
}

func emptyIfNil(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}
