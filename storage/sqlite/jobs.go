package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/evidentia/core"
	"github.com/poiesic/evidentia/storage"
)

// JobRepository persists audit jobs and enforces the monotonic job
// lifecycle at the storage boundary.
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateJob inserts a new audit job in the pending state.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.AuditJob) error {
	if job.Goal == "" {
		return core.ErrEmptyGoal
	}
	now := time.Now().UTC()
	job.Status = core.JobPending
	job.Progress = 0
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO audit_jobs (id, goal, scope, status, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		job.Id, job.Goal, job.Scope, string(job.Status), job.Progress, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting audit job: %w", err)
	}
	return nil
}

// GetJob retrieves an audit job by ID.
// Returns storage.ErrNotFound if no job exists under the ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.AuditJob, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT id, goal, scope, status, progress, results, error, created_at, updated_at
		FROM audit_jobs WHERE id = ?`, id)

	var job core.AuditJob
	var status string
	var results sql.NullString
	err := row.Scan(&job.Id, &job.Goal, &job.Scope, &status, &job.Progress,
		&results, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("reading audit job: %w", err)
	}
	job.Status = core.JobStatus(status)

	if results.Valid && results.String != "" {
		var parsed core.AuditResult
		if err := json.Unmarshal([]byte(results.String), &parsed); err != nil {
			return nil, fmt.Errorf("decoding audit results: %w", err)
		}
		job.Results = &parsed
	}
	return &job, nil
}

// priorStatus returns the only status a job may hold immediately before
// moving to next. The lifecycle is linear, so each reachable target has
// exactly one admissible predecessor; nothing transitions into pending,
// so that guard can never match a row.
func priorStatus(next core.JobStatus) core.JobStatus {
	switch next {
	case core.JobProcessing:
		return core.JobPending
	case core.JobCompleted, core.JobFailed:
		return core.JobProcessing
	default:
		return ""
	}
}

// guardedTransition inspects a status-guarded UPDATE. Zero rows affected
// means either the job does not exist or another writer already moved it;
// a re-read tells the two apart.
func (r *JobRepository) guardedTransition(ctx context.Context, res sql.Result, id string, next core.JobStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	job, err := r.GetJob(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", core.ErrStatusRegression, job.Status, next)
}

// UpdateJobStatus advances a job's status. The UPDATE is guarded on the
// admissible predecessor state, so a transition that would regress the
// lifecycle or leave a terminal state returns core.ErrStatusRegression
// even when writers race.
func (r *JobRepository) UpdateJobStatus(ctx context.Context, id string, next core.JobStatus) error {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE audit_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(next), time.Now().UTC(), id, string(priorStatus(next)))
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}
	return r.guardedTransition(ctx, res, id, next)
}

// SetJobProgress records progress for a running job. Progress is clamped
// to [0, 100] and never decreases.
func (r *JobRepository) SetJobProgress(ctx context.Context, id string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE audit_jobs SET progress = MAX(progress, ?), updated_at = ? WHERE id = ?`,
		progress, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating job progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CompleteJob stores the results payload and moves the job to completed.
// Only a processing job can complete; anything else returns
// core.ErrStatusRegression.
func (r *JobRepository) CompleteJob(ctx context.Context, id string, results *core.AuditResult) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encoding audit results: %w", err)
	}

	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE audit_jobs SET status = ?, progress = 100, results = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(core.JobCompleted), string(payload), time.Now().UTC(), id,
		string(core.JobProcessing))
	if err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	return r.guardedTransition(ctx, res, id, core.JobCompleted)
}

// FailJob records a failure message and moves the job to failed. Only a
// processing job can fail; anything else returns core.ErrStatusRegression.
func (r *JobRepository) FailJob(ctx context.Context, id string, cause string) error {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE audit_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(core.JobFailed), cause, time.Now().UTC(), id, string(core.JobProcessing))
	if err != nil {
		return fmt.Errorf("failing job: %w", err)
	}
	return r.guardedTransition(ctx, res, id, core.JobFailed)
}
