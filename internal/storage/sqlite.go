package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/refinehq/refinery/internal/refine"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the run log at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL for better concurrency between writers and the history command.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveRun inserts one run outcome. A missing ID is assigned; a missing
// timestamp is set to now.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, request, result, best_rating, iterations, accepted, model, input_tokens, output_tokens, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, run.Request, run.Result, run.BestRating.String(),
		run.Iterations, boolToInt(run.Accepted), run.Model,
		run.InputTokens, run.OutputTokens, run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun fetches one run by id. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, request, result, best_rating, iterations, accepted, model, input_tokens, output_tokens, duration_ms
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, request, result, best_rating, iterations, accepted, model, input_tokens, output_tokens, duration_ms
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var (
		run        RunRecord
		ratingText string
		accepted   int
		durationMS int64
	)
	err := row.Scan(&run.ID, &run.CreatedAt, &run.Request, &run.Result, &ratingText,
		&run.Iterations, &accepted, &run.Model, &run.InputTokens, &run.OutputTokens, &durationMS)
	if err != nil {
		return nil, err
	}

	rating, err := refine.ParseRating(ratingText)
	if err != nil {
		return nil, fmt.Errorf("corrupt run record %s: %w", run.ID, err)
	}
	run.BestRating = rating
	run.Accepted = accepted != 0
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
