package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// RecordImportRun stores the audit record of one import. Generates a UUID
// if ID is empty.
func (s *SQLiteStore) RecordImportRun(ctx context.Context, run ImportRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Summary == "" {
		run.Summary = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs (
			id, started_at, finished_at, rows_total, rows_invalid,
			tasks_created, tasks_skipped, ok, summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.RowsTotal, run.RowsInvalid,
		run.TasksCreated, run.TasksSkipped, boolToInt(run.OK), run.Summary,
	)
	if err != nil {
		return fmt.Errorf("recording import run %s: %w", run.ID, err)
	}
	return nil
}

// GetImportRun retrieves an import audit record by ID.
func (s *SQLiteStore) GetImportRun(ctx context.Context, id string) (*ImportRun, error) {
	var run ImportRun
	err := s.db.GetContext(ctx, &run, `
		SELECT id, started_at, finished_at, rows_total, rows_invalid,
			tasks_created, tasks_skipped, ok, summary
		FROM import_runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("import run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting import run %s: %w", id, err)
	}
	return &run, nil
}
