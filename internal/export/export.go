// Package export renders generated test cases for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"casegen/internal/models"

	"gopkg.in/yaml.v3"
)

// Format is a download format
type Format string

// 出力形式
const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrNoResult is returned when the job has not produced test cases.
var ErrNoResult = errors.New("job has no result")

// ParseFormat accepts the format names and the usual file extensions.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "application/json"
	}
}

// Extension returns the file extension of f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatYAML:
		return ".yaml"
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	default:
		return ".json"
	}
}

// FileName builds a download name for a job.
func FileName(job models.Job, f Format) string {
	id := job.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "test-cases-" + id + f.Extension()
}

// document is the shape written by the JSON and YAML encoders
type document struct {
	JobID           string                  `json:"job_id" yaml:"job_id"`
	UserStory       string                  `json:"user_story,omitempty" yaml:"user_story,omitempty"`
	TestCases       []models.TestCase       `json:"test_cases" yaml:"test_cases"`
	SimilarExamples []models.SimilarExample `json:"similar_examples,omitempty" yaml:"similar_examples,omitempty"`
}

// Write renders the result of a done job in format f.
func Write(w io.Writer, job models.Job, f Format) error {
	if job.Result == nil {
		return ErrNoResult
	}
	doc := document{
		JobID:           job.ID,
		UserStory:       job.Input,
		TestCases:       job.Result.GeneratedTestCases,
		SimilarExamples: job.Result.SimilarExamples,
	}

	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, doc.TestCases)
	case FormatMarkdown:
		return writeMarkdown(w, doc)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

func writeCSV(w io.Writer, cases []models.TestCase) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "title", "steps", "expected_result", "priority", "category"}); err != nil {
		return err
	}
	for _, tc := range cases {
		if err := cw.Write([]string{
			tc.ID,
			tc.Title,
			strings.Join(tc.Steps, "\n"),
			tc.ExpectedResult,
			string(tc.Priority),
			tc.Category,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeMarkdown(w io.Writer, doc document) error {
	var b strings.Builder
	b.WriteString("# Test Cases\n\n")
	if doc.UserStory != "" {
		fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(doc.UserStory, "\n", "\n> "))
	}
	if len(doc.TestCases) == 0 {
		b.WriteString("_No test cases were generated._\n")
	}
	for i, tc := range doc.TestCases {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, tc.Title)
		if tc.ID != "" {
			fmt.Fprintf(&b, "- **ID:** %s\n", tc.ID)
		}
		if tc.Priority != "" {
			fmt.Fprintf(&b, "- **Priority:** %s\n", tc.Priority)
		}
		if tc.Category != "" {
			fmt.Fprintf(&b, "- **Category:** %s\n", tc.Category)
		}
		if len(tc.Steps) > 0 {
			b.WriteString("\n**Steps**\n\n")
			for n, step := range tc.Steps {
				fmt.Fprintf(&b, "%d. %s\n", n+1, step)
			}
		}
		if tc.ExpectedResult != "" {
			fmt.Fprintf(&b, "\n**Expected result:** %s\n", tc.ExpectedResult)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
