package store

import (
	"context"
	"fmt"
	"time"
)

// SaveStats stores a stats record of the given type, stamping date
// (YYYY-MM-DD) and timestamp. Payload fields are preserved as-is.
func (s *Store) SaveStats(ctx context.Context, statsType string, payload Record) (string, error) {
	if statsType == "" {
		return "", fmt.Errorf("save stats: missing type")
	}

	record := Record{}
	for k, v := range payload {
		record[k] = v
	}
	now := time.Now().UTC()
	record["type"] = statsType
	record["date"] = now.Format("2006-01-02")
	record["timestamp"] = now.UnixMilli()
	delete(record, "id")

	return s.Put(ctx, "stats", record)
}

// StatsByType returns all stats records of the given type.
func (s *Store) StatsByType(ctx context.Context, statsType string) ([]Record, error) {
	return s.GetByIndex(ctx, "stats", "type", statsType)
}

// StatsByDateRange returns stats records whose date falls within
// [from, to], inclusive on both ends. Dates are YYYY-MM-DD strings.
func (s *Store) StatsByDateRange(ctx context.Context, from, to string) ([]Record, error) {
	records, err := s.GetAll(ctx, "stats")
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, record := range records {
		date, _ := record["date"].(string)
		if date == "" {
			continue
		}
		if date >= from && date <= to {
			out = append(out, record)
		}
	}
	return out, nil
}
