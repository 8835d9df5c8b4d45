package models

import "time"

// Batch は一括アップロード単位
type Batch struct {
	ID        string      `json:"id"`
	Status    BatchStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	Files     []BatchFile `json:"files,omitempty"`
}

// BatchStatus はバッチ・ファイル単位の処理状態
type BatchStatus string

// バッチステータス
const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusError      BatchStatus = "error"
)

// BatchFile aggregates the items that came from one uploaded file.
type BatchFile struct {
	FileName           string        `json:"file_name"`
	UserStoriesCount   int           `json:"user_stories_count"`
	TestCasesGenerated int           `json:"test_cases_generated"`
	Status             BatchStatus   `json:"status"`
	ProcessingTime     time.Duration `json:"processing_time"`
	Failed             int           `json:"failed"`
}

// BatchItem is one user story from an upload, processed as an independent job.
type BatchItem struct {
	ID            string     `json:"id"`
	BatchID       string     `json:"batch_id"`
	FileName      string     `json:"file_name"`
	Position      int        `json:"position"`
	Story         string     `json:"story"`
	Status        ItemStatus `json:"status"`
	JobID         string     `json:"job_id,omitempty"`
	TestCaseCount int        `json:"test_case_count"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// ItemStatus はバッチ項目の状態
type ItemStatus string

// 項目ステータス
const (
	ItemStatusQueued    ItemStatus = "queued"
	ItemStatusRunning   ItemStatus = "running"
	ItemStatusCompleted ItemStatus = "completed"
	ItemStatusFailed    ItemStatus = "failed"
)

// JobStats はダッシュボード用の集計
type JobStats struct {
	TotalJobs          int64               `json:"total_jobs"`
	ByStatus           map[JobStatus]int64 `json:"by_status"`
	TestCasesGenerated int64               `json:"test_cases_generated"`
	SuccessRate        float64             `json:"success_rate"`
}
