package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open creates or opens the history database at path. busyTimeout lets a
// concurrent nyein process wait for the write lock instead of failing.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveBuild inserts rec, assigning an ID and start time when missing.
func (s *Store) SaveBuild(ctx context.Context, rec BuildRecord) (BuildRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomeSuccess
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO builds (
  id, operation, entry, started_at_utc, duration_ms, outcome, error_code, message,
  file_count, cycle_count, skipped_count, collision_count, output_path
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Operation,
		rec.Entry,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.Duration.Milliseconds(),
		rec.Outcome,
		rec.ErrorCode,
		rec.Message,
		rec.Files,
		rec.Cycles,
		rec.Skipped,
		rec.Collisions,
		rec.Output,
	)
	if err != nil {
		return rec, fmt.Errorf("save build %s: %w", rec.ID, err)
	}
	return rec, nil
}

// LoadBuilds returns up to limit builds, newest first. limit <= 0 means all.
func (s *Store) LoadBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT
  id, operation, entry, started_at_utc, duration_ms, outcome, error_code, message,
  file_count, cycle_count, skipped_count, collision_count, output_path
FROM builds
ORDER BY started_at_utc DESC, id ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load builds: %w", err)
	}
	defer rows.Close()

	records := make([]BuildRecord, 0)
	for rows.Next() {
		var (
			rec        BuildRecord
			startedRaw string
			durationMS int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Operation,
			&rec.Entry,
			&startedRaw,
			&durationMS,
			&rec.Outcome,
			&rec.ErrorCode,
			&rec.Message,
			&rec.Files,
			&rec.Cycles,
			&rec.Skipped,
			&rec.Collisions,
			&rec.Output,
		); err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		started, err := time.Parse(timeLayout, startedRaw)
		if err != nil {
			return nil, fmt.Errorf("parse build timestamp %q: %w", startedRaw, err)
		}
		rec.StartedAt = started.UTC()
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build rows: %w", err)
	}
	return records, nil
}

// Prune keeps the newest retain builds and deletes the rest.
func (s *Store) Prune(ctx context.Context, retain int) (int64, error) {
	if retain <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
DELETE FROM builds WHERE id NOT IN (
  SELECT id FROM builds ORDER BY started_at_utc DESC, id ASC LIMIT ?
)`, retain)
	if err != nil {
		return 0, fmt.Errorf("prune builds: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
