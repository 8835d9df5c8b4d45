package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"casegen/internal/models"
)

// JobRepository はジョブ履歴のデータアクセス層
// poller.Recorder を実装する
type JobRepository struct {
	db *DB
}

// NewJobRepository は新しいJobRepositoryを作成
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, input, status, result, failure, error, test_case_count, submitted_at, resolved_at`

// JobSubmitted はジョブの投入を記録
// 先に終了が記録されていた場合は状態を戻さない
func (r *JobRepository) JobSubmitted(ctx context.Context, job models.Job) error {
	submittedAt := time.Now().UTC()
	if job.SubmittedAt != nil {
		submittedAt = job.SubmittedAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, input, status, submitted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			input = CASE WHEN excluded.input = '' THEN jobs.input ELSE excluded.input END,
			status = CASE WHEN jobs.status IN ('done', 'failed') THEN jobs.status ELSE excluded.status END`,
		job.ID, job.Input, string(job.Status), submittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record submitted job: %w", err)
	}
	return nil
}

// JobResolved はジョブの終了（done / failed）を記録
func (r *JobRepository) JobResolved(ctx context.Context, job models.Job) error {
	var resultJSON, failure, errMsg sql.NullString
	count := 0
	if job.Result != nil {
		data, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
		count = len(job.Result.GeneratedTestCases)
	}
	if len(job.Failure) > 0 {
		failure = sql.NullString{String: string(job.Failure), Valid: true}
	}
	if job.Err != nil {
		errMsg = sql.NullString{String: job.Err.Error(), Valid: true}
	}

	now := time.Now().UTC()
	resolvedAt := now
	if job.ResolvedAt != nil {
		resolvedAt = job.ResolvedAt.UTC()
	}
	submittedAt := now
	if job.SubmittedAt != nil {
		submittedAt = job.SubmittedAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			input = CASE WHEN excluded.input = '' THEN jobs.input ELSE excluded.input END,
			status = excluded.status,
			result = excluded.result,
			failure = excluded.failure,
			error = excluded.error,
			test_case_count = excluded.test_case_count,
			resolved_at = excluded.resolved_at`,
		job.ID, job.Input, string(job.Status), resultJSON, failure, errMsg, count, submittedAt, resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record resolved job: %w", err)
	}
	return nil
}

// GetByID はIDでジョブを取得
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListRecent は最近のジョブ一覧を取得
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]models.Job, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY submitted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// ListByStatus はステータスでジョブ一覧を取得
func (r *JobRepository) ListByStatus(ctx context.Context, status models.JobStatus, limit int) ([]models.Job, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY submitted_at DESC LIMIT ?`,
		string(status), limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// Delete はジョブを削除
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	return err
}

// CleanupResolved は終了済みジョブを削除（指定日数より古いもの）
func (r *JobRepository) CleanupResolved(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN ('done', 'failed') AND resolved_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats はダッシュボード用の集計を取得
func (r *JobRepository) Stats(ctx context.Context) (*models.JobStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(test_case_count), 0) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.JobStats{ByStatus: make(map[models.JobStatus]int64)}
	for rows.Next() {
		var status string
		var count, cases int64
		if err := rows.Scan(&status, &count, &cases); err != nil {
			return nil, err
		}
		stats.ByStatus[models.JobStatus(status)] = count
		stats.TotalJobs += count
		stats.TestCasesGenerated += cases
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	resolved := stats.ByStatus[models.JobStatusDone] + stats.ByStatus[models.JobStatusFailed]
	if resolved > 0 {
		stats.SuccessRate = float64(stats.ByStatus[models.JobStatusDone]) / float64(resolved)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job                     models.Job
		status                  string
		result, failure, errMsg sql.NullString
		count                   int64
		submittedAt             time.Time
		resolvedAt              sql.NullTime
	)
	if err := row.Scan(&job.ID, &job.Input, &status, &result, &failure, &errMsg, &count, &submittedAt, &resolvedAt); err != nil {
		return nil, err
	}

	job.Status = models.JobStatus(status)
	job.SubmittedAt = &submittedAt
	if resolvedAt.Valid {
		job.ResolvedAt = &resolvedAt.Time
	}
	if result.Valid {
		var res models.Result
		if err := json.Unmarshal([]byte(result.String), &res); err != nil {
			return nil, fmt.Errorf("failed to decode stored result of job %s: %w", job.ID, err)
		}
		job.Result = models.NewResult(res.GeneratedTestCases, res.SimilarExamples)
	}
	if failure.Valid {
		job.Failure = json.RawMessage(failure.String)
	}
	if errMsg.Valid {
		job.Err = errors.New(errMsg.String)
	}
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]models.Job, error) {
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
