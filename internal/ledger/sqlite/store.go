// Package sqlite implements the download ledger on a single SQLite file,
// for archives too large to keep rewriting a JSON progress file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vfrank66/lucas-download/internal/ledger"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is a Ledger backed by SQLite. Each completion is durable as soon as
// MarkDone returns.
type Store struct {
	db   *sql.DB
	path string

	mu        sync.Mutex
	completed map[string]struct{}
	missing   map[string]struct{}
	baseStats map[string]int64
	deltas    map[string]int64
	closed    bool
}

// Open initializes or connects to the ledger database at path and loads the
// completed set into memory so Contains stays cheap for the worker pool.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{
		db:        db,
		path:      path,
		completed: make(map[string]struct{}),
		missing:   make(map[string]struct{}),
		baseStats: make(map[string]int64),
		deltas:    make(map[string]int64),
	}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadState(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS completed_dates (
	key          TEXT PRIMARY KEY,
	completed_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS not_found_dates (
	key         TEXT PRIMARY KEY,
	recorded_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS failed_downloads (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	key         TEXT NOT NULL,
	url         TEXT NOT NULL,
	error       TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stats (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);`
	if err := s.execWithRetry(ctx, schema); err != nil {
		return fmt.Errorf("init ledger schema: %w", err)
	}
	return nil
}

func (s *Store) loadState(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM completed_dates`)
	if err != nil {
		return fmt.Errorf("load completed dates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return fmt.Errorf("scan completed date: %w", err)
		}
		s.completed[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate completed dates: %w", err)
	}

	missRows, err := s.db.QueryContext(ctx, `SELECT key FROM not_found_dates`)
	if err != nil {
		return fmt.Errorf("load not-found dates: %w", err)
	}
	defer missRows.Close()
	for missRows.Next() {
		var key string
		if err := missRows.Scan(&key); err != nil {
			return fmt.Errorf("scan not-found date: %w", err)
		}
		s.missing[key] = struct{}{}
	}
	if err := missRows.Err(); err != nil {
		return fmt.Errorf("iterate not-found dates: %w", err)
	}

	statRows, err := s.db.QueryContext(ctx, `SELECT name, value FROM stats`)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	defer statRows.Close()
	for statRows.Next() {
		var (
			name  string
			value int64
		)
		if err := statRows.Scan(&name, &value); err != nil {
			return fmt.Errorf("scan stat: %w", err)
		}
		s.baseStats[name] = value
	}
	if err := statRows.Err(); err != nil {
		return fmt.Errorf("iterate stats: %w", err)
	}
	return nil
}

// Path returns the backing database location.
func (s *Store) Path() string {
	return s.path
}

// Contains reports whether the edition key is already recorded done.
func (s *Store) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[key]
	return ok
}

// Len returns the number of completed keys currently recorded.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed)
}

// MarkDone durably records a completed edition. Marking a key twice is a
// no-op.
func (s *Store) MarkDone(ctx context.Context, key string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("ledger %s is closed", s.path)
	}
	if _, ok := s.completed[key]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// A finished download is worth recording even while the run shuts down.
	ctx = context.WithoutCancel(ensureContext(ctx))
	err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO completed_dates (key, completed_at) VALUES (?, ?)`,
		key, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark %s done: %w", key, err)
	}

	s.mu.Lock()
	s.completed[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

// MarkMissing durably records a date the archive has no edition for.
func (s *Store) MarkMissing(ctx context.Context, key string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("ledger %s is closed", s.path)
	}
	if _, ok := s.missing[key]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	ctx = context.WithoutCancel(ensureContext(ctx))
	err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO not_found_dates (key, recorded_at) VALUES (?, ?)`,
		key, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark %s missing: %w", key, err)
	}

	s.mu.Lock()
	s.missing[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

// IsMissing reports whether the date is recorded as having no edition.
func (s *Store) IsMissing(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.missing[key]
	return ok
}

// RecordFailure notes an edition whose download failed for good.
func (s *Store) RecordFailure(ctx context.Context, key, url string, cause error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("ledger %s is closed", s.path)
	}
	s.mu.Unlock()

	errText := ""
	if cause != nil {
		errText = cause.Error()
	}
	ctx = context.WithoutCancel(ensureContext(ctx))
	err := s.execWithRetry(ctx,
		`INSERT INTO failed_downloads (key, url, error, recorded_at) VALUES (?, ?, ?, ?)`,
		key, url, errText, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record failure for %s: %w", key, err)
	}
	return nil
}

// AddStat accumulates a named counter; deltas are persisted at Close.
func (s *Store) AddStat(name string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deltas[name] += delta
}

// Stats returns a snapshot of the accumulated counters, including deltas not
// yet written back.
func (s *Store) Stats() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.baseStats)+len(s.deltas))
	for k, v := range s.baseStats {
		out[k] = v
	}
	for k, v := range s.deltas {
		out[k] += v
	}
	return out
}

// Failures returns the recorded failures, oldest first.
func (s *Store) Failures(ctx context.Context) ([]ledger.FailureRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, url, error, recorded_at FROM failed_downloads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load failures: %w", err)
	}
	defer rows.Close()
	var out []ledger.FailureRecord
	for rows.Next() {
		var rec ledger.FailureRecord
		if err := rows.Scan(&rec.Date, &rec.URL, &rec.Error, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return out, nil
}

// Close writes back stat deltas and closes the database.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	deltas := s.deltas
	s.deltas = make(map[string]int64)
	s.mu.Unlock()

	var flushErr error
	for name, delta := range deltas {
		if delta == 0 {
			continue
		}
		err := s.execWithRetry(ctx,
			`INSERT INTO stats (name, value) VALUES (?, ?)
			 ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`,
			name, delta)
		if err != nil && flushErr == nil {
			flushErr = fmt.Errorf("flush stat %s: %w", name, err)
		}
	}
	if err := s.db.Close(); err != nil && flushErr == nil {
		flushErr = fmt.Errorf("close ledger database: %w", err)
	}
	return flushErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
