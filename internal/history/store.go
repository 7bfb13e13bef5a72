package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"imgbatch/internal/batch"
	"imgbatch/internal/config"
)

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

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

// Open initializes or connects to the history database in the state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the history database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin records a new run in the running state and returns it with a fresh id.
func (s *Store) Begin(ctx context.Context, settings batch.Settings) (*Run, error) {
	return s.BeginWithID(ctx, uuid.NewString(), settings)
}

// BeginWithID is Begin with a caller-chosen run id, so log lines emitted
// before the record exists can carry the same id.
func (s *Store) BeginWithID(ctx context.Context, id string, settings batch.Settings) (*Run, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("run id is required")
	}
	run := &Run{
		ID:        id,
		Status:    StatusRunning,
		SourceDir: settings.SourceDir,
		OutputDir: settings.OutputDir,
		Pattern:   settings.Pattern,
		Widths:    append([]int(nil), settings.Widths...),
		StartedAt: time.Now().UTC(),
	}
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (id, status, source_dir, output_dir, pattern, widths, started_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.Status,
			run.SourceDir,
			run.OutputDir,
			run.Pattern,
			encodeWidths(run.Widths),
			run.StartedAt.Format(timeLayout),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Finish stores the outcome of run. Artifacts from files that completed are
// recorded even when runErr is non-nil.
func (s *Store) Finish(ctx context.Context, run *Run, summary batch.Summary, runErr error) error {
	if run == nil {
		return errors.New("run is nil")
	}
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Sources = summary.Sources
	run.ArtifactN = summary.ArtifactCount()
	run.TotalBytes = summary.TotalBytes()
	run.ErrorMessage = ""
	switch {
	case runErr != nil:
		run.Status = StatusFailed
		run.ErrorMessage = runErr.Error()
	case summary.Sources == 0:
		run.Status = StatusEmpty
	default:
		run.Status = StatusSucceeded
	}

	run.Artifacts = run.Artifacts[:0]
	for _, file := range summary.Files {
		for _, a := range file.Artifacts {
			run.Artifacts = append(run.Artifacts, Artifact{
				Source: a.Source,
				Width:  a.Width,
				Format: a.Format,
				Path:   a.Path,
				Bytes:  a.Bytes,
			})
		}
	}

	return retryOnBusy(ctx, func() error {
		return s.writeFinish(ctx, run)
	})
}

func (s *Store) writeFinish(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs
         SET status = ?, sources = ?, artifacts = ?, total_bytes = ?,
             error_message = ?, finished_at = ?
         WHERE id = ?`,
		run.Status,
		run.Sources,
		run.ArtifactN,
		run.TotalBytes,
		nullableString(run.ErrorMessage),
		run.FinishedAt.Format(timeLayout),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, run.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO artifacts (run_id, source_path, width, format, path, bytes) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare artifact insert: %w", err)
	}
	defer stmt.Close()
	for _, a := range run.Artifacts {
		if _, err := stmt.ExecContext(ctx, run.ID, a.Source, a.Width, a.Format, a.Path, a.Bytes); err != nil {
			return fmt.Errorf("insert artifact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish: %w", err)
	}
	return nil
}

// List returns the most recent runs first. A non-positive limit returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get fetches one run with its artifacts. Unknown ids yield ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_path, width, format, path, bytes FROM artifacts WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Source, &a.Width, &a.Format, &a.Path, &a.Bytes); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		run.Artifacts = append(run.Artifacts, a)
	}
	return run, rows.Err()
}

// Clear removes every recorded run and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM runs`)
		if err != nil {
			return err
		}
		if affected, err = res.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return affected, nil
}

const runColumns = "id, status, source_dir, output_dir, pattern, widths, sources, artifacts, total_bytes, error_message, started_at, finished_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		status      string
		widths      string
		errMessage  sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&status,
		&run.SourceDir,
		&run.OutputDir,
		&run.Pattern,
		&widths,
		&run.Sources,
		&run.ArtifactN,
		&run.TotalBytes,
		&errMessage,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	run.Status = Status(status)
	run.Widths = decodeWidths(widths)
	run.ErrorMessage = errMessage.String
	if started, err := time.Parse(timeLayout, startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := time.Parse(timeLayout, finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
