package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"casegen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "a b c", truncateString("a\n b\t c", 10))
	assert.Equal(t, "ユーザー...", truncateString("ユーザーストーリー", 7))
}

func TestReadStory(t *testing.T) {
	got, err := readStory("As a user", "ignored.txt")
	require.NoError(t, err)
	assert.Equal(t, "As a user", got)

	path := filepath.Join(t.TempDir(), "story.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n  As an admin, I want reports.\n"), 0644))
	got, err = readStory("", path)
	require.NoError(t, err)
	assert.Equal(t, "As an admin, I want reports.", got)

	_, err = readStory("", "")
	assert.Error(t, err)
}

func TestRenderJobsTable(t *testing.T) {
	now := time.Now()
	var buf bytes.Buffer
	renderJobsTable(&buf, []models.Job{
		{ID: "job-1", Input: "As a user, I log in", Status: models.JobStatusDone, SubmittedAt: &now,
			Result: models.NewResult([]models.TestCase{{}, {}}, nil)},
		{ID: "job-2", Input: "As a guest", Status: models.JobStatusProcessing},
	})

	out := buf.String()
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "As a user, I log in")
	assert.Contains(t, out, "processing")
}

func TestRenderBatchTable(t *testing.T) {
	var buf bytes.Buffer
	renderBatchTable(&buf, &models.Batch{
		ID: "b1",
		Files: []models.BatchFile{
			{FileName: "stories.txt", UserStoriesCount: 3, TestCasesGenerated: 9, Status: models.BatchStatusCompleted, ProcessingTime: 12 * time.Second},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "stories.txt")
	assert.Contains(t, out, "12s")
	assert.Contains(t, out, "completed")
}
