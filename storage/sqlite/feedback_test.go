package sqlite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/evidentia/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndListFeedback(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	job := &core.AuditJob{Id: uuid.NewString(), Goal: "audit reimbursements"}
	require.NoError(t, repo.CreateJob(ctx, job))

	first := &core.Feedback{
		JobID:   job.Id,
		DocID:   core.DocID("aaaa111122223333"),
		Kind:    "relevant",
		Comment: "matches the policy exactly",
	}
	require.NoError(t, repo.AddFeedback(ctx, first))
	assert.NotEmpty(t, first.Id)
	assert.False(t, first.CreatedAt.IsZero())

	second := &core.Feedback{
		JobID: job.Id,
		DocID: core.DocID("bbbb111122223333"),
		Kind:  "irrelevant",
	}
	require.NoError(t, repo.AddFeedback(ctx, second))

	list, err := repo.ListFeedbackForJob(ctx, job.Id)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "relevant", list[0].Kind)
	assert.Equal(t, "matches the policy exactly", list[0].Comment)
	assert.Equal(t, core.DocID("bbbb111122223333"), list[1].DocID)
}

func TestAddFeedbackValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.AddFeedback(ctx, &core.Feedback{DocID: "aaaa111122223333", Kind: "relevant"})
	assert.ErrorIs(t, err, core.ErrInvalidFeedback)

	err = repo.AddFeedback(ctx, &core.Feedback{JobID: "job-1", Kind: "relevant"})
	assert.ErrorIs(t, err, core.ErrInvalidFeedback)

	err = repo.AddFeedback(ctx, &core.Feedback{JobID: "job-1", DocID: "aaaa111122223333"})
	assert.ErrorIs(t, err, core.ErrInvalidFeedback)
}

func TestListFeedbackEmptyJob(t *testing.T) {
	repo := newTestRepo(t)

	list, err := repo.ListFeedbackForJob(context.Background(), "untouched-job")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAddFeedbackUnknownJobRejected(t *testing.T) {
	repo := newTestRepo(t)

	// The job_id foreign key keeps feedback anchored to real jobs.
	err := repo.AddFeedback(context.Background(), &core.Feedback{
		JobID: "ghost-job",
		DocID: core.DocID("cccc111122223333"),
		Kind:  "relevant",
	})
	assert.Error(t, err)
}
