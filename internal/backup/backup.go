// Package backup snapshots the export envelope into the backups collection
// on a cron schedule, trimming old snapshots past the retention limit.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/aurorae-haven/aurorae/internal/bus"
	otelPkg "github.com/aurorae-haven/aurorae/internal/otel"
	"github.com/aurorae-haven/aurorae/internal/portability"
	"github.com/aurorae-haven/aurorae/internal/store"
)

// DefaultCron fires once a day at 03:00.
const DefaultCron = "0 3 * * *"

// DefaultKeep is the retention limit applied after each snapshot.
const DefaultKeep = 5

// Scheduler takes periodic snapshots. It watches store events and skips a
// tick when nothing changed since the last snapshot.
type Scheduler struct {
	store  *store.Store
	porter *portability.Porter
	keep   int
	logger *slog.Logger

	cron    *cron.Cron
	sub     *bus.Subscription
	b       *bus.Bus
	metrics *otelPkg.Metrics

	mu    sync.Mutex
	dirty bool

	done chan struct{}
}

func NewScheduler(s *store.Store, porter *portability.Porter, eventBus *bus.Bus, keep int, logger *slog.Logger) *Scheduler {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  s,
		porter: porter,
		b:      eventBus,
		keep:   keep,
		logger: logger,
		// First tick always snapshots.
		dirty: true,
		done:  make(chan struct{}),
	}
}

// WithTelemetry attaches metric instruments.
func (s *Scheduler) WithTelemetry(metrics *otelPkg.Metrics) *Scheduler {
	s.metrics = metrics
	return s
}

// Start registers the cron entry and begins watching store events.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		spec = DefaultCron
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := s.tick(context.Background()); err != nil {
			s.logger.Error("scheduled backup failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", spec, err)
	}
	s.cron = c

	if s.b != nil {
		s.sub = s.b.Subscribe("store.")
		go s.watch()
	}

	c.Start()
	s.logger.Info("backup scheduler started", "schedule", spec, "keep", s.keep)
	return nil
}

// Stop halts the cron loop and the event watcher.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.sub != nil {
		s.b.Unsubscribe(s.sub)
		<-s.done
	}
}

func (s *Scheduler) watch() {
	defer close(s.done)
	for event := range s.sub.Ch() {
		// Snapshot writes land in the backups collection themselves and
		// must not re-mark the store dirty.
		if record, ok := event.Payload.(bus.RecordEvent); ok && record.Collection == "backups" {
			continue
		}
		if coll, ok := event.Payload.(bus.CollectionEvent); ok && coll.Collection == "backups" {
			continue
		}
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	}
}

// tick snapshots when dirty and trims retention.
func (s *Scheduler) tick(ctx context.Context) error {
	s.mu.Lock()
	dirty := s.dirty
	s.dirty = false
	s.mu.Unlock()

	if !dirty {
		s.logger.Debug("backup skipped, no changes since last snapshot")
		return nil
	}
	if _, err := s.Snapshot(ctx); err != nil {
		// The pending changes are still unbacked; leave them eligible for
		// the next tick.
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}
	return nil
}

// Snapshot serializes the export envelope, stores it, and trims old
// snapshots. Returns the new backup id.
func (s *Scheduler) Snapshot(ctx context.Context) (string, error) {
	serialized, err := s.porter.ExportJSON(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot export: %w", err)
	}

	id, err := s.store.SaveBackup(ctx, string(serialized))
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	deleted, err := s.store.CleanOldBackups(ctx, s.keep)
	if err != nil {
		return id, fmt.Errorf("trim snapshots: %w", err)
	}
	if s.metrics != nil {
		s.metrics.BackupBytes.Add(ctx, int64(len(serialized)))
	}

	s.logger.Info("backup snapshot stored", "id", id, "size", len(serialized), "trimmed", deleted)
	return id, nil
}
