package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"casegen/internal/models"

	"github.com/google/uuid"
)

// BatchRepository は一括アップロードのデータアクセス層
type BatchRepository struct {
	db *DB
}

// NewBatchRepository は新しいBatchRepositoryを作成
func NewBatchRepository(db *DB) *BatchRepository {
	return &BatchRepository{db: db}
}

const itemColumns = `id, batch_id, file_name, position, story, status, job_id, test_case_count, error, created_at, started_at, completed_at`

// Create はバッチと項目をまとめて作成
func (r *BatchRepository) Create(ctx context.Context, items []models.BatchItem) (*models.Batch, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("batch has no user stories")
	}

	batch := &models.Batch{
		ID:        uuid.New().String(),
		Status:    models.BatchStatusProcessing,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, created_at) VALUES (?, ?)`, batch.ID, batch.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert batch: %w", err)
	}

	for i := range items {
		items[i].ID = uuid.New().String()
		items[i].BatchID = batch.ID
		items[i].Status = models.ItemStatusQueued
		items[i].CreatedAt = batch.CreatedAt
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO batch_items (id, batch_id, file_name, position, story, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			items[i].ID, batch.ID, items[i].FileName, items[i].Position, items[i].Story,
			string(items[i].Status), items[i].CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to insert batch item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	batch.Files = summarizeFiles(items)
	return batch, nil
}

// GetByID はバッチをファイル単位の集計付きで取得
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	batch := &models.Batch{ID: id}
	err := r.db.QueryRowContext(ctx, `SELECT created_at FROM batches WHERE id = ?`, id).Scan(&batch.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := r.Items(ctx, id)
	if err != nil {
		return nil, err
	}
	batch.Files = summarizeFiles(items)
	batch.Status = overallStatus(batch.Files)
	return batch, nil
}

// List は最近のバッチ一覧を取得
func (r *BatchRepository) List(ctx context.Context, limit int) ([]models.Batch, error) {
	if limit == 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM batches ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	batches := []models.Batch{}
	for _, id := range ids {
		b, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if b != nil {
			batches = append(batches, *b)
		}
	}
	return batches, nil
}

// Items はバッチの項目一覧を取得
func (r *BatchRepository) Items(ctx context.Context, batchID string) ([]models.BatchItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM batch_items WHERE batch_id = ? ORDER BY file_name, position`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.BatchItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// NextQueued は次に処理すべき項目を取得（古い順）
func (r *BatchRepository) NextQueued(ctx context.Context) (*models.BatchItem, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM batch_items
		WHERE status = 'queued'
		ORDER BY created_at, batch_id, file_name, position
		LIMIT 1`)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Start は項目を処理中にする
func (r *BatchRepository) Start(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE batch_items SET status = 'running', started_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// Complete は項目を完了にする
func (r *BatchRepository) Complete(ctx context.Context, id, jobID string, testCases int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE batch_items SET status = 'completed', job_id = ?, test_case_count = ?, completed_at = ?
		WHERE id = ?`, jobID, testCases, time.Now().UTC(), id)
	return err
}

// Fail は項目を失敗にする
func (r *BatchRepository) Fail(ctx context.Context, id, jobID, errorMsg string) error {
	var job sql.NullString
	if jobID != "" {
		job = sql.NullString{String: jobID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE batch_items SET status = 'failed', job_id = ?, error = ?, completed_at = ?
		WHERE id = ?`, job, errorMsg, time.Now().UTC(), id)
	return err
}

// Requeue は中断された処理中の項目をキューに戻す（起動時に使用）
func (r *BatchRepository) Requeue(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE batch_items SET status = 'queued', started_at = NULL WHERE status = 'running'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanItem(row rowScanner) (*models.BatchItem, error) {
	var (
		item                   models.BatchItem
		status                 string
		jobID, errMsg          sql.NullString
		startedAt, completedAt sql.NullTime
	)
	err := row.Scan(&item.ID, &item.BatchID, &item.FileName, &item.Position, &item.Story, &status,
		&jobID, &item.TestCaseCount, &errMsg, &item.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	item.Status = models.ItemStatus(status)
	item.JobID = jobID.String
	item.Error = errMsg.String
	if startedAt.Valid {
		item.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		item.CompletedAt = &completedAt.Time
	}
	return &item, nil
}

// summarizeFiles はファイル単位に集計する（アップロード順を維持）
func summarizeFiles(items []models.BatchItem) []models.BatchFile {
	files := []models.BatchFile{}
	index := make(map[string]int)
	pending := make(map[string]bool)

	for _, item := range items {
		i, ok := index[item.FileName]
		if !ok {
			i = len(files)
			index[item.FileName] = i
			files = append(files, models.BatchFile{FileName: item.FileName})
		}
		f := &files[i]
		f.UserStoriesCount++
		f.TestCasesGenerated += item.TestCaseCount
		switch item.Status {
		case models.ItemStatusFailed:
			f.Failed++
		case models.ItemStatusQueued, models.ItemStatusRunning:
			pending[item.FileName] = true
		}
		if item.StartedAt != nil && item.CompletedAt != nil {
			f.ProcessingTime += item.CompletedAt.Sub(*item.StartedAt)
		}
	}

	for i := range files {
		f := &files[i]
		switch {
		case pending[f.FileName]:
			f.Status = models.BatchStatusProcessing
		case f.Failed == f.UserStoriesCount:
			f.Status = models.BatchStatusError
		default:
			f.Status = models.BatchStatusCompleted
		}
	}
	return files
}

func overallStatus(files []models.BatchFile) models.BatchStatus {
	if len(files) == 0 {
		return models.BatchStatusCompleted
	}
	errored := 0
	for _, f := range files {
		switch f.Status {
		case models.BatchStatusProcessing:
			return models.BatchStatusProcessing
		case models.BatchStatusError:
			errored++
		}
	}
	if errored == len(files) {
		return models.BatchStatusError
	}
	return models.BatchStatusCompleted
}
