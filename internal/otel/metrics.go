package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all Aurorae metric instruments.
type Metrics struct {
	RecordsWritten  metric.Int64Counter
	ExportDuration  metric.Float64Histogram
	ImportDuration  metric.Float64Histogram
	MigrateDuration metric.Float64Histogram
	BackupBytes     metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RecordsWritten, err = meter.Int64Counter("aurorae.records.written",
		metric.WithDescription("Records created or replaced in the object store"),
	)
	if err != nil {
		return nil, err
	}

	m.ExportDuration, err = meter.Float64Histogram("aurorae.export.duration",
		metric.WithDescription("Export sweep duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ImportDuration, err = meter.Float64Histogram("aurorae.import.duration",
		metric.WithDescription("Import sweep duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.MigrateDuration, err = meter.Float64Histogram("aurorae.migrate.duration",
		metric.WithDescription("Legacy migration sweep duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.BackupBytes, err = meter.Int64Counter("aurorae.backup.bytes",
		metric.WithDescription("Bytes written into backup snapshots"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
