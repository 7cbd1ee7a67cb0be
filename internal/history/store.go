package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const runColumns = "id, topic, template_id, slide_count, format, resolution, quality, status, stage, progress_percent, progress_message, artifact_url, duration_seconds, size_bytes, provenance, narration_gaps, error_message, error_category, created_at, updated_at, completed_at"

// Start inserts a new running entry. CreatedAt defaults to now.
func (s *Store) Start(ctx context.Context, run *Run) error {
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return errors.New("history start: run id is required")
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	run.Status = StatusRunning

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO runs (
            id, topic, template_id, slide_count, format, resolution, quality,
            status, stage, progress_percent, progress_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Topic,
		nullableString(run.TemplateID),
		run.SlideCount,
		nullableString(run.Format),
		nullableString(run.Resolution),
		nullableString(run.Quality),
		run.Status,
		nullableString(run.Stage),
		run.ProgressPercent,
		nullableString(run.ProgressMessage),
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateProgress records the latest progress snapshot of a running entry.
func (s *Store) UpdateProgress(ctx context.Context, id, stage string, percent float64, message string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE runs SET stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		nullableString(stage),
		percent,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

// Complete marks a run successful and stores its artifact.
func (s *Store) Complete(ctx context.Context, id string, artifact Artifact) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE runs SET status = ?, stage = 'complete', progress_percent = 100,
             artifact_url = ?, duration_seconds = ?, size_bytes = ?, provenance = ?,
             narration_gaps = ?, error_message = NULL, error_category = NULL,
             updated_at = ?, completed_at = ?
         WHERE id = ?`,
		StatusCompleted,
		storedURL(artifact.URL),
		artifact.DurationSeconds,
		artifact.SizeBytes,
		nullableString(artifact.Provenance),
		artifact.NarrationGaps,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return expectRow(res, id)
}

// Fail marks a run failed with its stage and categorized message.
func (s *Store) Fail(ctx context.Context, id string, failure Failure) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE runs SET status = ?, stage = COALESCE(?, stage), error_message = ?, error_category = ?,
             updated_at = ?, completed_at = ?
         WHERE id = ?`,
		StatusFailed,
		nullableString(failure.Stage),
		nullableString(failure.Message),
		nullableString(failure.Category),
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return expectRow(res, id)
}

// Get returns a run by id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns the newest runs first, optionally filtered by status. A
// non-positive limit returns every match.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id`
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
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ResetInterrupted fails runs left running by a process that exited without
// recording an outcome.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE runs SET status = ?, error_message = 'interrupted before completion',
             error_category = 'generic', updated_at = ?, completed_at = ?
         WHERE status = ?`,
		StatusFailed,
		now,
		now,
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

// Summarize counts runs by status.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	summary := Summary{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		switch status {
		case StatusRunning:
			summary.Running += count
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		}
	}
	return summary, rows.Err()
}

// Prune removes finished runs created before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM runs WHERE status != ? AND created_at < ?`,
		StatusRunning,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every finished run.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM runs WHERE status != ?`, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

func expectRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// storedURL keeps inline artifacts out of the ledger.
func storedURL(url string) any {
	if strings.HasPrefix(url, "data:") {
		return "data:(inline)"
	}
	return nullableString(url)
}
