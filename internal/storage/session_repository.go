package storage

import (
	"context"
	"database/sql"
	"time"
)

const currentJobKey = "current_job_id"

// SessionRepository は画面をまたいで共有する「現在のジョブID」を保持する
// poller.IdentityStore を実装する
type SessionRepository struct {
	db *DB
}

// NewSessionRepository は新しいSessionRepositoryを作成
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CurrentJobID は現在のジョブIDを取得（未設定なら空文字）
func (r *SessionRepository) CurrentJobID(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM session_state WHERE key = ?`, currentJobKey).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetCurrentJobID は現在のジョブIDを保存（空文字なら削除）
func (r *SessionRepository) SetCurrentJobID(ctx context.Context, id string) error {
	if id == "" {
		_, err := r.db.ExecContext(ctx, `DELETE FROM session_state WHERE key = ?`, currentJobKey)
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		currentJobKey, id, time.Now().UTC(),
	)
	return err
}
