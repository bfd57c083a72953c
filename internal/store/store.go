// Package store is the SQLite-backed object store. Each collection is a
// table with a JSON record column; secondary indexes are expression indexes
// over json_extract. The schema is versioned through a schema_migrations
// ledger and upgrades are additive only.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aurorae-haven/aurorae/internal/bus"
)

const (
	schemaVersionV1  = 1
	schemaChecksumV1 = "au-v1-2026-08-20-core-collections"

	// v2 adds the templates collection.
	schemaVersionV2  = 2
	schemaChecksumV2 = "au-v2-2026-08-24-templates"

	schemaVersionLatest  = schemaVersionV2
	schemaChecksumLatest = schemaChecksumV2
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: record not found")

// ErrUnknownCollection is returned for collection names outside the schema
// registry.
var ErrUnknownCollection = errors.New("store: unknown collection")

// Record is a schemaless JSON object stored in a collection.
type Record = map[string]any

type Store struct {
	db  *sql.DB
	bus *bus.Bus // may be nil in tests
}

// Open opens (or creates) the database at path and applies pending schema
// versions. The event bus may be nil.
func Open(path string, eventBus *bus.Bus) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, bus: eventBus}
	if err := store.configurePragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// retryOnBusy retries f when SQLite returns BUSY or LOCKED, using exponential
// backoff with bounded jitter on top of the driver's busy_timeout.
func retryOnBusy(ctx context.Context, maxRetries int, f func() error) error {
	const baseDelay = 50 * time.Millisecond
	const maxDelay = 500 * time.Millisecond

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = f()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt == maxRetries {
			return err
		}
		// Exponential backoff: 50ms, 100ms, 200ms, 400ms, 500ms (capped).
		delay := baseDelay << uint(attempt)
		if delay > maxDelay {
			delay = maxDelay
		}
		// Add jitter: ±25% of delay.
		jitter := time.Duration(rand.IntN(int(delay / 2)))
		delay = delay - delay/4 + jitter

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// isSQLiteBusy checks if an error is a SQLite BUSY (5) or LOCKED (6) error.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "(5)") || // SQLITE_BUSY
		strings.Contains(msg, "(6)") // SQLITE_LOCKED
}

func (s *Store) configurePragmas(ctx context.Context) error {
	pragma := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
	}
	for _, q := range pragma {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("set pragma %q: %w", q, err)
		}
	}
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var maxVersion int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&maxVersion); err != nil {
		return fmt.Errorf("read migration max version: %w", err)
	}
	if maxVersion > schemaVersionLatest {
		return fmt.Errorf("db schema version %d is newer than supported %d", maxVersion, schemaVersionLatest)
	}

	checksums := map[int]string{
		schemaVersionV1: schemaChecksumV1,
		schemaVersionV2: schemaChecksumV2,
	}
	if maxVersion > 0 {
		var existingChecksum string
		if err := tx.QueryRowContext(ctx, `SELECT checksum FROM schema_migrations WHERE version = ?;`, maxVersion).Scan(&existingChecksum); err != nil {
			return fmt.Errorf("read schema migration checksum: %w", err)
		}
		if existingChecksum != checksums[maxVersion] {
			return fmt.Errorf("schema checksum mismatch for version %d: got %q want %q", maxVersion, existingChecksum, checksums[maxVersion])
		}
	}

	for version := maxVersion + 1; version <= schemaVersionLatest; version++ {
		for _, def := range collectionDefs {
			if def.Version != version {
				continue
			}
			for _, stmt := range ddlFor(def) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("apply schema v%d for %s: %w", version, def.Name, err)
				}
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, checksum) VALUES (?, ?);`, version, checksums[version]); err != nil {
			return fmt.Errorf("record schema version %d: %w", version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	return nil
}

func ddlFor(def collectionDef) []string {
	var stmts []string
	if def.Key == keyAuto {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, record TEXT NOT NULL);`, def.Name))
	} else {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, record TEXT NOT NULL);`, def.Name))
	}
	for _, idx := range def.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		stmts = append(stmts, fmt.Sprintf(
			`CREATE %sINDEX IF NOT EXISTS idx_%s_%s ON %s (json_extract(record, '$.%s'));`,
			unique, def.Name, idx.Name, def.Name, idx.Field))
	}
	return stmts
}

// Put creates or replaces a record. For auto-keyed collections a record
// without an id gets a generated one, backfilled into the stored JSON.
// Returns the record key as a string.
func (s *Store) Put(ctx context.Context, collection string, record Record) (string, error) {
	def, ok := defFor(collection)
	if !ok {
		return "", fmt.Errorf("put %q: %w", collection, ErrUnknownCollection)
	}
	if record == nil {
		return "", fmt.Errorf("put %s: record is nil", collection)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal %s record: %w", collection, err)
	}

	var key string
	switch def.Key {
	case keyString:
		id, _ := record["id"].(string)
		if id == "" {
			return "", fmt.Errorf("put %s: record has no string id", collection)
		}
		err = retryOnBusy(ctx, 5, func() error {
			_, execErr := s.db.ExecContext(ctx,
				fmt.Sprintf(`INSERT OR REPLACE INTO %s (id, record) VALUES (?, ?);`, def.Name),
				id, string(data))
			return execErr
		})
		if err != nil {
			return "", fmt.Errorf("put %s/%s: %w", collection, id, err)
		}
		key = id

	case keyAuto:
		if id, hasID := numericID(record["id"]); hasID {
			err = retryOnBusy(ctx, 5, func() error {
				_, execErr := s.db.ExecContext(ctx,
					fmt.Sprintf(`INSERT OR REPLACE INTO %s (id, record) VALUES (?, ?);`, def.Name),
					id, string(data))
				return execErr
			})
			if err != nil {
				return "", fmt.Errorf("put %s/%d: %w", collection, id, err)
			}
			key = strconv.FormatInt(id, 10)
		} else {
			// Insert and id backfill commit together so a busy retry cannot
			// re-run the insert and a crash cannot leave an id-less record.
			var newID int64
			err = retryOnBusy(ctx, 5, func() error {
				tx, txErr := s.db.BeginTx(ctx, nil)
				if txErr != nil {
					return txErr
				}
				defer func() { _ = tx.Rollback() }()

				res, execErr := tx.ExecContext(ctx,
					fmt.Sprintf(`INSERT INTO %s (record) VALUES (?);`, def.Name),
					string(data))
				if execErr != nil {
					return execErr
				}
				newID, execErr = res.LastInsertId()
				if execErr != nil {
					return execErr
				}
				if _, execErr = tx.ExecContext(ctx,
					fmt.Sprintf(`UPDATE %s SET record = json_set(record, '$.id', id) WHERE id = ?;`, def.Name),
					newID); execErr != nil {
					return execErr
				}
				return tx.Commit()
			})
			if err != nil {
				return "", fmt.Errorf("put %s: %w", collection, err)
			}
			record["id"] = newID
			key = strconv.FormatInt(newID, 10)
		}
	}

	s.publish(bus.TopicRecordPut, bus.RecordEvent{Collection: collection, Key: key})
	return key, nil
}

// GetByID fetches one record by key, returning ErrNotFound when absent.
func (s *Store) GetByID(ctx context.Context, collection, key string) (Record, error) {
	def, ok := defFor(collection)
	if !ok {
		return nil, fmt.Errorf("get %q: %w", collection, ErrUnknownCollection)
	}

	arg, err := keyArg(def, key)
	if err != nil {
		return nil, err
	}

	var data string
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT record FROM %s WHERE id = ?;`, def.Name), arg).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return decodeRecord(collection, data)
}

// GetAll returns every record in the collection, ordered by key.
func (s *Store) GetAll(ctx context.Context, collection string) ([]Record, error) {
	def, ok := defFor(collection)
	if !ok {
		return nil, fmt.Errorf("get all %q: %w", collection, ErrUnknownCollection)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT record FROM %s ORDER BY id;`, def.Name))
	if err != nil {
		return nil, fmt.Errorf("get all %s: %w", collection, err)
	}
	defer rows.Close()

	return scanRecords(collection, rows)
}

// GetByIndex returns records whose indexed field equals value. The field
// must be registered in the collection's schema.
func (s *Store) GetByIndex(ctx context.Context, collection, field string, value any) ([]Record, error) {
	def, ok := defFor(collection)
	if !ok {
		return nil, fmt.Errorf("get by index %q: %w", collection, ErrUnknownCollection)
	}
	indexed := false
	for _, idx := range def.Indexes {
		if idx.Field == field {
			indexed = true
			break
		}
	}
	if !indexed {
		return nil, fmt.Errorf("get by index %s: field %q is not indexed", collection, field)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT record FROM %s WHERE json_extract(record, '$.%s') = ? ORDER BY id;`, def.Name, field),
		value)
	if err != nil {
		return nil, fmt.Errorf("get by index %s.%s: %w", collection, field, err)
	}
	defer rows.Close()

	return scanRecords(collection, rows)
}

// DeleteByID removes one record. Deleting an absent key is not an error.
func (s *Store) DeleteByID(ctx context.Context, collection, key string) error {
	def, ok := defFor(collection)
	if !ok {
		return fmt.Errorf("delete %q: %w", collection, ErrUnknownCollection)
	}

	arg, err := keyArg(def, key)
	if err != nil {
		return err
	}

	err = retryOnBusy(ctx, 5, func() error {
		_, execErr := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE id = ?;`, def.Name), arg)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}

	s.publish(bus.TopicRecordDeleted, bus.RecordEvent{Collection: collection, Key: key})
	return nil
}

// Clear removes all records from the collection.
func (s *Store) Clear(ctx context.Context, collection string) error {
	def, ok := defFor(collection)
	if !ok {
		return fmt.Errorf("clear %q: %w", collection, ErrUnknownCollection)
	}

	err := retryOnBusy(ctx, 5, func() error {
		_, execErr := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s;`, def.Name))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}

	s.publish(bus.TopicCollectionCleared, bus.CollectionEvent{Collection: collection})
	return nil
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	def, ok := defFor(collection)
	if !ok {
		return 0, fmt.Errorf("count %q: %w", collection, ErrUnknownCollection)
	}

	var n int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s;`, def.Name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *Store) publish(topic string, payload any) {
	if s.bus != nil {
		s.bus.Publish(topic, payload)
	}
}

func keyArg(def collectionDef, key string) (any, error) {
	if def.Key == keyString {
		return key, nil
	}
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: key %q is not numeric", def.Name, key)
	}
	return id, nil
}

// numericID extracts an integer id from the loosely typed values JSON
// decoding produces.
func numericID(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		id, err := n.Int64()
		return id, err == nil
	default:
		return 0, false
	}
}

func decodeRecord(collection, data string) (Record, error) {
	var record Record
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", collection, err)
	}
	return record, nil
}

func scanRecords(collection string, rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s record: %w", collection, err)
		}
		record, err := decodeRecord(collection, data)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s records: %w", collection, err)
	}
	return records, nil
}
