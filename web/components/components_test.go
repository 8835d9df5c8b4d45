package components

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"casegen/internal/models"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestGenerator_Processing(t *testing.T) {
	out := renderString(t, Generator(models.Job{
		ID:     "job-1",
		Input:  "As a <b>user</b>",
		Status: models.JobStatusProcessing,
	}, ""))

	assert.Contains(t, out, "As a &lt;b&gt;user&lt;/b&gt;")
	assert.Contains(t, out, "location.reload()")
	assert.Contains(t, out, "/api/generator/session")
	assert.NotContains(t, out, "Resume")
}

func TestGenerator_FetchErrorOffersResume(t *testing.T) {
	out := renderString(t, Generator(models.Job{
		ID:     "job-1",
		Status: models.JobStatusProcessing,
		Err:    errors.New("connection refused"),
	}, ""))

	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "Resume")
	assert.NotContains(t, out, "setTimeout")
}

func TestGenerator_Done(t *testing.T) {
	out := renderString(t, Generator(models.Job{
		ID:     "job-1",
		Status: models.JobStatusDone,
		Result: models.NewResult(
			[]models.TestCase{{Title: "Valid login", Steps: []string{"open"}, Priority: models.PriorityHigh}},
			[]models.SimilarExample{{UserStory: "Reset password", TestCases: []models.TestCase{{Title: "Test Case 1", ExpectedResult: "Email sent"}}}},
		),
	}, ""))

	assert.Contains(t, out, "Generated test cases (1)")
	assert.Contains(t, out, "<li>open</li>")
	assert.Contains(t, out, "Reset password")
	assert.Contains(t, out, "<li><strong>Test Case 1</strong> Email sent</li>")
	assert.Contains(t, out, "/api/jobs/job-1/export?format=csv")
}

func TestGenerator_Unsubmitted(t *testing.T) {
	out := renderString(t, Generator(models.Job{Status: models.JobStatusUnsubmitted}, ""))
	assert.NotContains(t, out, "id=\"job\"")
	assert.NotContains(t, out, "class=\"error\"")
	assert.Contains(t, out, "class=\"active\">Generator")
}

func TestGenerator_Notice(t *testing.T) {
	out := renderString(t, Generator(models.Job{Input: "draft", Status: models.JobStatusUnsubmitted}, "user story is <required>"))
	assert.Contains(t, out, "<p class=\"error\">user story is &lt;required&gt;</p>")
	assert.Contains(t, out, ">draft</textarea>")
}

func TestBadge(t *testing.T) {
	assert.Equal(t, `<span class="badge done">done</span>`, renderString(t, Badge("done")))
}

func TestHome(t *testing.T) {
	now := time.Now()
	out := renderString(t, Home(&models.JobStats{
		TotalJobs:          4,
		TestCasesGenerated: 12,
		ByStatus:           map[models.JobStatus]int64{models.JobStatusProcessing: 1},
		SuccessRate:        0.75,
	}, []models.Job{{ID: "a", Input: "story", Status: models.JobStatusDone, SubmittedAt: &now}}))

	assert.Contains(t, out, "<b>12</b>")
	assert.Contains(t, out, "<b>75%</b>")
	assert.Contains(t, out, "badge done")

	assert.Contains(t, renderString(t, Home(nil, nil)), "No jobs yet.")
}

func TestUpload(t *testing.T) {
	out := renderString(t, Upload([]models.Batch{{
		ID:        "0123456789",
		Status:    models.BatchStatusCompleted,
		CreatedAt: time.Now(),
		Files: []models.BatchFile{
			{FileName: "b.csv", UserStoriesCount: 2, TestCasesGenerated: 6, Status: models.BatchStatusCompleted},
			{FileName: "a.txt", UserStoriesCount: 1, Failed: 1, Status: models.BatchStatusError},
		},
	}}, []string{".txt", ".csv"}, "no files uploaded"))

	assert.Contains(t, out, "accept=\".txt,.csv\"")
	assert.Contains(t, out, "<code>01234567</code>")
	assert.Less(t, bytesIndex(out, "a.txt"), bytesIndex(out, "b.csv"))
	assert.Contains(t, out, "no files uploaded")
}

func TestAbout(t *testing.T) {
	assert.Contains(t, renderString(t, About("1.2.3")), "Version 1.2.3")
}

func bytesIndex(s, sub string) int {
	return bytes.Index([]byte(s), []byte(sub))
}
