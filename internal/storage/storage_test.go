package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"casegen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "casegen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	id, err := NewSessionRepository(db).CurrentJobID(context.Background())
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(openTestDB(t))

	id, err := repo.CurrentJobID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, repo.SetCurrentJobID(ctx, "job-1"))
	require.NoError(t, repo.SetCurrentJobID(ctx, "job-2"))
	id, err = repo.CurrentJobID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-2", id)

	require.NoError(t, repo.SetCurrentJobID(ctx, ""))
	id, err = repo.CurrentJobID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t))

	submitted := time.Now().Add(-time.Minute)
	require.NoError(t, repo.JobSubmitted(ctx, models.Job{
		ID:          "job-1",
		Input:       "As a user, I want to log in.",
		Status:      models.JobStatusProcessing,
		SubmittedAt: &submitted,
	}))

	job, err := repo.GetByID(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Nil(t, job.Result)
	assert.Nil(t, job.ResolvedAt)

	// Resolution coming from a resume carries no input; the stored one is kept.
	result := models.NewResult([]models.TestCase{
		{ID: "tc1", Title: "Valid login", Steps: []string{"open", "submit"}, Priority: models.PriorityHigh},
		{ID: "tc2", Title: "Wrong password", Priority: models.PriorityMedium},
	}, nil)
	require.NoError(t, repo.JobResolved(ctx, models.Job{ID: "job-1", Status: models.JobStatusDone, Result: result}))

	job, err = repo.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "As a user, I want to log in.", job.Input)
	assert.Equal(t, models.JobStatusDone, job.Status)
	require.NotNil(t, job.Result)
	assert.Len(t, job.Result.GeneratedTestCases, 2)
	assert.Equal(t, []string{"open", "submit"}, job.Result.GeneratedTestCases[0].Steps)
	assert.NotNil(t, job.Result.SimilarExamples)
	assert.NotNil(t, job.ResolvedAt)
	assert.Nil(t, job.Err)
}

func TestJobRepository_Failure(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t))

	require.NoError(t, repo.JobResolved(ctx, models.Job{
		ID:      "job-f",
		Input:   "story",
		Status:  models.JobStatusFailed,
		Failure: json.RawMessage(`{"error":"bad"}`),
		Err:     errors.New("job job-f failed"),
	}))

	job, err := repo.GetByID(ctx, "job-f")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.JSONEq(t, `{"error":"bad"}`, string(job.Failure))
	assert.EqualError(t, job.Err, "job job-f failed")
}

func TestJobRepository_ListStatsDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t))

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.JobSubmitted(ctx, models.Job{ID: id, Input: id, Status: models.JobStatusProcessing, SubmittedAt: &at}))
	}
	require.NoError(t, repo.JobResolved(ctx, models.Job{ID: "a", Status: models.JobStatusDone,
		Result: models.NewResult([]models.TestCase{{ID: "1"}, {ID: "2"}, {ID: "3"}}, nil)}))
	require.NoError(t, repo.JobResolved(ctx, models.Job{ID: "b", Status: models.JobStatusFailed}))

	recent, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "c", recent[0].ID)

	done, err := repo.ListByStatus(ctx, models.JobStatusDone, 10)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "a", done[0].ID)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalJobs)
	assert.Equal(t, int64(3), stats.TestCasesGenerated)
	assert.Equal(t, int64(1), stats.ByStatus[models.JobStatusProcessing])
	assert.InDelta(t, 0.5, stats.SuccessRate, 0.0001)

	require.NoError(t, repo.Delete(ctx, "c"))
	missing, err := repo.GetByID(ctx, "c")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestJobRepository_CleanupResolved(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t))

	old := time.Now().AddDate(0, 0, -10)
	require.NoError(t, repo.JobResolved(ctx, models.Job{ID: "old", Status: models.JobStatusDone, ResolvedAt: &old, SubmittedAt: &old}))
	require.NoError(t, repo.JobResolved(ctx, models.Job{ID: "new", Status: models.JobStatusDone}))
	require.NoError(t, repo.JobSubmitted(ctx, models.Job{ID: "open", Status: models.JobStatusProcessing, SubmittedAt: &old}))

	n, err := repo.CleanupResolved(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestBatchRepository_Flow(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository(openTestDB(t))

	batch, err := repo.Create(ctx, []models.BatchItem{
		{FileName: "stories.txt", Position: 0, Story: "story 1"},
		{FileName: "stories.txt", Position: 1, Story: "story 2"},
		{FileName: "more.csv", Position: 0, Story: "story 3"},
	})
	require.NoError(t, err)
	require.Len(t, batch.Files, 2)
	assert.Equal(t, "stories.txt", batch.Files[0].FileName)
	assert.Equal(t, 2, batch.Files[0].UserStoriesCount)

	var processed []string
	for {
		item, err := repo.NextQueued(ctx)
		require.NoError(t, err)
		if item == nil {
			break
		}
		require.NoError(t, repo.Start(ctx, item.ID))
		if item.Story == "story 3" {
			require.NoError(t, repo.Fail(ctx, item.ID, "", "generator unavailable"))
		} else {
			require.NoError(t, repo.Complete(ctx, item.ID, "job-"+item.Story, 4))
		}
		processed = append(processed, item.Story)
	}
	assert.ElementsMatch(t, []string{"story 1", "story 2", "story 3"}, processed)

	got, err := repo.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.BatchStatusCompleted, got.Status)

	byName := map[string]models.BatchFile{}
	for _, f := range got.Files {
		byName[f.FileName] = f
	}
	assert.Equal(t, models.BatchStatusCompleted, byName["stories.txt"].Status)
	assert.Equal(t, 8, byName["stories.txt"].TestCasesGenerated)
	assert.Equal(t, models.BatchStatusError, byName["more.csv"].Status)
	assert.Equal(t, 1, byName["more.csv"].Failed)

	list, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBatchRepository_Requeue(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository(openTestDB(t))

	batch, err := repo.Create(ctx, []models.BatchItem{{FileName: "a.txt", Story: "s"}})
	require.NoError(t, err)

	item, err := repo.NextQueued(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Start(ctx, item.ID))

	next, err := repo.NextQueued(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	n, err := repo.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusProcessing, got.Status)
}

func TestBatchRepository_Empty(t *testing.T) {
	_, err := NewBatchRepository(openTestDB(t)).Create(context.Background(), nil)
	assert.Error(t, err)

	got, err := NewBatchRepository(openTestDB(t)).GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestJobRepository_LateSubmitDoesNotReopen(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t))

	require.NoError(t, repo.JobResolved(ctx, models.Job{ID: "j", Status: models.JobStatusDone, Result: models.NewResult(nil, nil)}))
	require.NoError(t, repo.JobSubmitted(ctx, models.Job{ID: "j", Input: "story", Status: models.JobStatusProcessing}))

	job, err := repo.GetByID(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, job.Status)
	assert.Equal(t, "story", job.Input)
}
