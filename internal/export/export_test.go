package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"casegen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleJob() models.Job {
	return models.Job{
		ID:     "0123456789abcdef",
		Input:  "As a user, I want to log in.",
		Status: models.JobStatusDone,
		Result: models.NewResult([]models.TestCase{
			{
				ID:             "TC-1",
				Title:          "Valid login",
				Steps:          []string{"Open login page", "Enter valid credentials"},
				ExpectedResult: "Dashboard is shown",
				Priority:       models.PriorityHigh,
				Category:       "Functional",
			},
			{ID: "TC-2", Title: "Wrong password, locked", Priority: models.PriorityLow},
		}, nil),
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":         FormatJSON,
		"JSON":     FormatJSON,
		"yml":      FormatYAML,
		".yaml":    FormatYAML,
		"csv":      FormatCSV,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleJob(), FormatJSON))

	var doc struct {
		JobID     string            `json:"job_id"`
		TestCases []models.TestCase `json:"test_cases"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "0123456789abcdef", doc.JobID)
	require.Len(t, doc.TestCases, 2)
	assert.Equal(t, models.PriorityHigh, doc.TestCases[0].Priority)
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleJob(), FormatYAML))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "As a user, I want to log in.", doc["user_story"])
	cases := doc["test_cases"].([]any)
	require.Len(t, cases, 2)
	first := cases[0].(map[string]any)
	assert.Equal(t, "Dashboard is shown", first["expected_result"])
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleJob(), FormatCSV))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "expected_result", rows[0][3])
	assert.Equal(t, "Open login page\nEnter valid credentials", rows[1][2])
	assert.Equal(t, "Wrong password, locked", rows[2][1])
}

func TestWrite_Markdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleJob(), FormatMarkdown))

	out := buf.String()
	assert.Contains(t, out, "> As a user, I want to log in.")
	assert.Contains(t, out, "## 1. Valid login")
	assert.Contains(t, out, "2. Enter valid credentials")
	assert.Contains(t, out, "**Priority:** Low")
}

func TestWrite_NoResult(t *testing.T) {
	err := Write(&bytes.Buffer{}, models.Job{ID: "x", Status: models.JobStatusProcessing}, FormatJSON)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "test-cases-01234567.csv", FileName(sampleJob(), FormatCSV))
	assert.Equal(t, "test-cases-ab.md", FileName(models.Job{ID: "ab"}, FormatMarkdown))
}
