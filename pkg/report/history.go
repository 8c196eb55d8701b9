package report

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ethangrabau/mythra-web/pkg/core"
)

//go:embed history.sql
var historySchemaSQL string

// historySchemaVersion is bumped whenever history.sql changes.
const historySchemaVersion = 1

// HistoryFileName is the index database kept next to the run records.
const HistoryFileName = "history.db"

// ErrSchemaMismatch indicates the history database was written by another
// schema version.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// Entry is the indexed summary of one run.
type Entry struct {
	RunID       string
	Image       string
	Serial      string
	Status      core.StepStatus
	FailedState core.State
	Policy      string
	StartTime   time.Time
	Duration    time.Duration
	Error       string
}

// HistoryFilter selects entries for Recent. Zero values match everything.
type HistoryFilter struct {
	Status *core.StepStatus
	Image  string
	Limit  int
}

// History indexes run records in SQLite for listing and filtering.
type History struct {
	db   *sql.DB
	path string
}

// OpenHistory opens or creates <dir>/history.db.
func OpenHistory(ctx context.Context, dir string) (*History, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, HistoryFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	h := &History{db: db, path: dbPath}
	if err := h.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

// Path returns the database file.
func (h *History) Path() string {
	return h.path
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

func (h *History) initSchema(ctx context.Context) error {
	var tableExists int
	err := h.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return h.createSchema(ctx)
	}

	var version int
	if err := h.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != historySchemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, historySchemaVersion, h.path)
	}
	return nil
}

func (h *History) createSchema(ctx context.Context) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, historySchemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", historySchemaVersion); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return tx.Commit()
}

// Record indexes result, replacing an earlier entry with the same run ID.
func (h *History) Record(ctx context.Context, result *core.RunResult) error {
	if result == nil || result.RunID == "" {
		return fmt.Errorf("record run: missing run ID")
	}
	if !result.Status.IsTerminal() {
		return fmt.Errorf("record run %s: status %s is not final", result.RunID, result.Status)
	}

	failed := ""
	if result.Status == core.StatusFailed {
		failed = result.FailedState.String()
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(run_id, image, serial, status, failed_state, policy, started_at, duration_ns, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.Image,
		result.Serial,
		result.Status.String(),
		failed,
		result.Policy,
		result.StartTime.UnixNano(),
		int64(result.Duration),
		result.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", result.RunID, err)
	}
	return nil
}

// Recent returns matching entries, most recent first.
func (h *History) Recent(ctx context.Context, filter HistoryFilter) ([]Entry, error) {
	query := `SELECT run_id, image, serial, status, failed_state, policy, started_at, duration_ns, error
		FROM runs WHERE 1=1`
	var args []any
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, filter.Status.String())
	}
	if filter.Image != "" {
		query += " AND image = ?"
		args = append(args, filter.Image)
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                   Entry
			status, failedState string
			startedAt, duration int64
		)
		if err := rows.Scan(&e.RunID, &e.Image, &e.Serial, &status, &failedState, &e.Policy, &startedAt, &duration, &e.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := e.Status.UnmarshalText([]byte(status)); err != nil {
			return nil, err
		}
		if failedState != "" {
			if err := e.FailedState.UnmarshalText([]byte(failedState)); err != nil {
				return nil, err
			}
		}
		e.StartTime = time.Unix(0, startedAt)
		e.Duration = time.Duration(duration)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
