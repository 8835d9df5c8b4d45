package models

import (
	"encoding/json"
	"time"
)

// JobStatus はジョブの状態
type JobStatus string

// ジョブステータス
const (
	JobStatusUnsubmitted JobStatus = "unsubmitted"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusDone        JobStatus = "done"
	JobStatusFailed      JobStatus = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Job は1件のテストケース生成リクエスト
type Job struct {
	ID          string          `json:"id,omitempty"`
	Input       string          `json:"input"`
	Status      JobStatus       `json:"status"`
	Result      *Result         `json:"result,omitempty"`
	Failure     json.RawMessage `json:"failure,omitempty"`
	Err         error           `json:"-"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
}

// ErrorMessage returns the local error text, or "" when there is none.
func (j Job) ErrorMessage() string {
	if j.Err == nil {
		return ""
	}
	return j.Err.Error()
}

// Result は生成結果（テストケースと類似事例）
type Result struct {
	GeneratedTestCases []TestCase       `json:"generated_test_cases"`
	SimilarExamples    []SimilarExample `json:"similar_examples"`
}

// NewResult builds a Result whose sequences are never nil.
func NewResult(cases []TestCase, examples []SimilarExample) *Result {
	if cases == nil {
		cases = []TestCase{}
	}
	if examples == nil {
		examples = []SimilarExample{}
	}
	return &Result{GeneratedTestCases: cases, SimilarExamples: examples}
}
