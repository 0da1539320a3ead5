package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateJob inserts a job record in the running state and returns its id.
func (s *Store) CreateJob(ctx context.Context, description string) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (description, error, state, created_at, updated_at) VALUES (?, '', ?, ?, ?)`,
		description,
		JobRunning,
		timestamp,
		timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("job last insert id: %w", err)
	}
	return id, nil
}

// UpdateJob moves a running job to a terminal state with the given error text.
// Terminal states are immutable: once a job left the running state, further
// updates are accepted but change nothing (first write wins). A missing job
// reports ErrNotFound.
func (s *Store) UpdateJob(ctx context.Context, id int64, errText string, state JobState) error {
	if !state.Terminal() {
		return fmt.Errorf("update job %d: state %q is not terminal", id, state)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET error = ?, state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		errText,
		state,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		JobRunning,
	)
	if err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var existing string
	row := s.db.QueryRowContext(ctx, `SELECT state FROM jobs WHERE id = ?`, id)
	if err := row.Scan(&existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("check job %d state: %w", id, err)
	}
	return nil
}

// GetJob fetches one job record.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs newest first. A non-positive limit returns all.
func (s *Store) ListJobs(ctx context.Context, limit int64) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}
