package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aurorae-haven/aurorae/internal/bus"
)

// Backup is a stored snapshot of a serialized export bundle.
type Backup struct {
	ID        int64  `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Size      int    `json:"size"`
	Data      string `json:"data"`
}

// SaveBackup stores a snapshot of serialized export data.
func (s *Store) SaveBackup(ctx context.Context, data string) (string, error) {
	backup := Backup{
		Timestamp: time.Now().UnixMilli(),
		Size:      len(data),
		Data:      data,
	}
	record, err := recordFrom(backup)
	if err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}
	delete(record, "id")

	key, err := s.Put(ctx, "backups", record)
	if err != nil {
		return "", err
	}
	s.publish(bus.TopicBackupCreated, bus.BackupEvent{BackupID: key, Size: backup.Size})
	return key, nil
}

// RecentBackups returns up to limit snapshots, newest first. limit <= 0
// returns all.
func (s *Store) RecentBackups(ctx context.Context, limit int) ([]Backup, error) {
	records, err := s.GetAll(ctx, "backups")
	if err != nil {
		return nil, err
	}
	backups := make([]Backup, 0, len(records))
	for _, record := range records {
		var backup Backup
		if err := recordInto(record, &backup); err != nil {
			return nil, fmt.Errorf("decode backup: %w", err)
		}
		backups = append(backups, backup)
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp > backups[j].Timestamp
	})
	if limit > 0 && len(backups) > limit {
		backups = backups[:limit]
	}
	return backups, nil
}

// CleanOldBackups deletes all but the newest keep snapshots and returns the
// number deleted.
func (s *Store) CleanOldBackups(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	backups, err := s.RecentBackups(ctx, 0)
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, backup := range backups[keep:] {
		if err := s.DeleteByID(ctx, "backups", strconv.FormatInt(backup.ID, 10)); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
