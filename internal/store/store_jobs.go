package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueueJob inserts a pending job and returns it.
func (s *Store) EnqueueJob(ctx context.Context, job Job) (*Job, error) {
	if job.Kind == "" {
		return nil, errors.New("job kind required")
	}
	job.ID = uuid.NewString()
	job.Status = JobPending
	now := timestamp(time.Now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, kind, item_id, media_id, type_key, payload_json, status, error, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, '', ?)`,
		job.ID, string(job.Kind), job.ItemID, job.MediaID, job.TypeKey,
		job.Payload, string(JobPending), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetJob(ctx, job.ID)
}

// GetJob fetches one job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, jobSelect+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return job, nil
}

// ClaimNextJob transitions the oldest pending job to running and returns
// it. Returns nil when the queue is empty.
func (s *Store) ClaimNextJob(ctx context.Context) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		jobSelect+` WHERE status = ? ORDER BY created_at, id LIMIT 1`, string(JobPending))
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`,
		string(JobRunning), timestamp(now), job.ID,
	); err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Status = JobRunning
	started := now.UTC()
	job.StartedAt = &started
	return job, nil
}

// FinishJob records a job outcome. A non-empty errMsg marks the job failed.
func (s *Store) FinishJob(ctx context.Context, id string, errMsg string) error {
	status := JobCompleted
	if errMsg != "" {
		status = JobFailed
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), errMsg, timestamp(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// PendingBuildExists reports whether a pending or running build job for
// the given item and type is already queued. This is an application-level
// debounce, not a lock; concurrent duplicates remain possible.
func (s *Store) PendingBuildExists(ctx context.Context, itemID int64, typeKey string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM jobs WHERE kind = ? AND item_id = ? AND type_key = ? AND status IN (?, ?)`,
		string(JobBuildItem), itemID, typeKey, string(JobPending), string(JobRunning),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count pending builds: %w", err)
	}
	return count > 0, nil
}

// ListJobs returns the most recent jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		jobSelect+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

const jobSelect = `SELECT id, kind, item_id, media_id, type_key, payload_json,
    status, error, created_at, started_at, finished_at FROM jobs`

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var kind, status, created string
	var started, finished sql.NullString
	err := row.Scan(
		&job.ID, &kind, &job.ItemID, &job.MediaID, &job.TypeKey,
		&job.Payload, &status, &job.Error, &created, &started, &finished,
	)
	if err != nil {
		return nil, err
	}
	job.Kind = JobKind(kind)
	job.Status = JobStatus(status)
	job.CreatedAt = parseTimestamp(created)
	job.StartedAt = nullableTime(started)
	job.FinishedAt = nullableTime(finished)
	return &job, nil
}
