package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Run statuses. A degraded run completed with documented loss (dropped
// facts, unresolved placeholders, violations); a fatal run is never stored.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Run is one persisted pipeline execution. The stack, artifact, and report
// are stored as JSON snapshots so a run can be replayed and audited exactly
// as it happened.
type Run struct {
	ID             string `json:"id"`
	TaskID         string `json:"task_id"`
	TaskTitle      string `json:"task_title"`
	TaskType       string `json:"task_type"`
	Status         string `json:"status"`
	StackJSON      string `json:"stack_json"`
	ArtifactJSON   string `json:"artifact_json"`
	ReportJSON     string `json:"report_json"`
	WarningsJSON   string `json:"warnings_json,omitempty"`
	TotalTokenCost int    `json:"total_token_cost"`
	OverallScore   int    `json:"overall_score"`
	DroppedFacts   int    `json:"dropped_facts"`
	CreatedAt      int64  `json:"created_at"`
}

// runColumns is the canonical column list for SELECTs.
const runColumns = `id, task_id, task_title, task_type, status,
	stack_json, artifact_json, report_json, warnings_json,
	total_token_cost, overall_score, dropped_facts, created_at`

// InsertRun persists a run record.
func InsertRun(ctx context.Context, db *sql.DB, run *Run) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TaskID, run.TaskTitle, run.TaskType, run.Status,
		run.StackJSON, run.ArtifactJSON, run.ReportJSON, run.WarningsJSON,
		run.TotalTokenCost, run.OverallScore, run.DroppedFacts, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun fetches a run by exact ID. Returns sql.ErrNoRows when absent.
func GetRun(ctx context.Context, db *sql.DB, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// GetRunByPrefix fetches a run by unique ID prefix. Returns sql.ErrNoRows
// when no run matches and an error when the prefix is ambiguous.
func GetRunByPrefix(ctx context.Context, db *sql.DB, prefix string) (*Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' LIMIT 2`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, sql.ErrNoRows
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous run id prefix: %s", prefix)
	}
}

// ListRuns returns runs newest-first, optionally filtered by status.
// A limit of 0 means no limit.
func ListRuns(ctx context.Context, db *sql.DB, status string, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes one run by exact ID. Reports whether a row was deleted.
func DeleteRun(ctx context.Context, db *sql.DB, id string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted runs: %w", err)
	}
	return n > 0, nil
}

// PurgeRuns removes runs created at or before cutoff (unix seconds).
// A cutoff of 0 removes every run. Returns the number of rows removed.
func PurgeRuns(ctx context.Context, db *sql.DB, cutoff int64) (int64, error) {
	query := `DELETE FROM runs`
	var args []any
	if cutoff > 0 {
		query += ` WHERE created_at <= ?`
		args = append(args, cutoff)
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged runs: %w", err)
	}
	return n, nil
}

// CountRuns returns the total number of stored runs.
func CountRuns(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// scanner abstracts sql.Row and sql.Rows for scanRun.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var warnings sql.NullString
	err := s.Scan(
		&run.ID, &run.TaskID, &run.TaskTitle, &run.TaskType, &run.Status,
		&run.StackJSON, &run.ArtifactJSON, &run.ReportJSON, &warnings,
		&run.TotalTokenCost, &run.OverallScore, &run.DroppedFacts, &run.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.WarningsJSON = warnings.String
	return &run, nil
}
