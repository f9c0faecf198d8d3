// Package history persists a record of each scan run in a local SQLite
// database so totals can be compared across runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/findary/internal/stats"
)

// timeLayout is fixed width so started_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrRunNotFound is returned by GetRun when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run is a stored scan run
type Run struct {
	ID        string        `json:"id"`
	Directory string        `json:"directory"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Walked    int           `json:"walked"`
	Totals    stats.Totals  `json:"totals"`
}

// Store manages the run history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (or creates) the history database at dbPath and applies
// any pending migrations.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return store, nil
}

// execWithRetry retries stmt with exponential backoff while the database is locked.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores run and its per-encoding counts. An empty ID is replaced
// with a new UUID, which is returned.
func (s *Store) RecordRun(ctx context.Context, run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	t := run.Totals
	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, directory, started_at, duration_ms, walked, absent, plain_text, encoded_text, binary, failed, ignored, tracked, already_supported, lfs_files)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Directory, run.StartedAt.UTC().Format(timeLayout), run.Duration.Milliseconds(), run.Walked,
		t.Absent, t.PlainText, t.EncodedText, t.Binary, t.Failed, t.Ignored, t.Tracked, t.AlreadySupported, t.LFSFiles)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, enc := range t.Encodings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_encodings (run_id, encoding, count) VALUES (?, ?, ?)`,
			run.ID, enc.Name, enc.Count); err != nil {
			return "", fmt.Errorf("insert encoding %s: %w", enc.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return run.ID, nil
}

const runColumns = `id, directory, started_at, duration_ms, walked, absent, plain_text, encoded_text, binary, failed, ignored, tracked, already_supported, lfs_files`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		startedAt  string
		durationMS int64
	)
	t := &run.Totals
	if err := row.Scan(&run.ID, &run.Directory, &startedAt, &durationMS, &run.Walked,
		&t.Absent, &t.PlainText, &t.EncodedText, &t.Binary, &t.Failed, &t.Ignored, &t.Tracked, &t.AlreadySupported, &t.LFSFiles); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	run.StartedAt = ts
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}

// GetRun returns the run with the given ID, including encoding counts.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	encodings, err := s.loadEncodings(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Totals.Encodings = encodings
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all
// runs. Encoding counts are not loaded.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// removed. keep <= 0 disables pruning.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const newest = `SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run_encodings WHERE run_id NOT IN (`+newest+`)`, keep); err != nil {
		return 0, fmt.Errorf("prune encodings: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id NOT IN (`+newest+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return n, nil
}

func (s *Store) loadEncodings(ctx context.Context, id string) ([]stats.EncodingCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT encoding, count FROM run_encodings WHERE run_id = ? ORDER BY encoding`, id)
	if err != nil {
		return nil, fmt.Errorf("query encodings: %w", err)
	}
	defer rows.Close()

	var out []stats.EncodingCount
	for rows.Next() {
		var ec stats.EncodingCount
		if err := rows.Scan(&ec.Name, &ec.Count); err != nil {
			return nil, fmt.Errorf("scan encoding: %w", err)
		}
		out = append(out, ec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encodings: %w", err)
	}
	return out, nil
}
