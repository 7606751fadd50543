package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/evidentia/core"
)

// AddFeedback appends a feedback row for a piece of audit evidence.
// Feedback is write-once; there is no update or delete path.
func (r *JobRepository) AddFeedback(ctx context.Context, fb *core.Feedback) error {
	if err := core.ValidateFeedback(fb); err != nil {
		return err
	}
	if fb.Id == "" {
		fb.Id = uuid.NewString()
	}
	fb.CreatedAt = time.Now().UTC()

	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO feedback (id, job_id, doc_id, kind, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fb.Id, fb.JobID, string(fb.DocID), fb.Kind, fb.Comment, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

// ListFeedbackForJob returns all feedback rows for a job, oldest first.
func (r *JobRepository) ListFeedbackForJob(ctx context.Context, jobID string) ([]*core.Feedback, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, job_id, doc_id, kind, comment, created_at
		FROM feedback WHERE job_id = ? ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var result []*core.Feedback
	for rows.Next() {
		var fb core.Feedback
		var docID string
		if err := rows.Scan(&fb.Id, &fb.JobID, &docID, &fb.Kind, &fb.Comment, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		fb.DocID = core.DocID(docID)
		result = append(result, &fb)
	}
	return result, rows.Err()
}
