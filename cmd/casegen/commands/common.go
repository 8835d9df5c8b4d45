package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"casegen/internal/config"
	"casegen/internal/genapi"
	"casegen/internal/logger"
	"casegen/internal/poller"
	"casegen/internal/storage"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config   *config.Config
	DB       *storage.DB
	Client   *genapi.Client
	Jobs     *storage.JobRepository
	Sessions *storage.SessionRepository
	Batches  *storage.BatchRepository
	Logger   *slog.Logger
}

// NewAppContext は設定ファイルを読み込み、DBとクライアントを準備する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	// 標準出力は結果表示に使うのでログは標準エラーへ
	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("データベースの初期化に失敗: %w", err)
	}

	client, err := genapi.NewClient(cfg.Generator.BaseURL, &genapi.Options{Timeout: cfg.Generator.RequestTimeout})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &AppContext{
		Config:   cfg,
		DB:       db,
		Client:   client,
		Jobs:     storage.NewJobRepository(db),
		Sessions: storage.NewSessionRepository(db),
		Batches:  storage.NewBatchRepository(db),
		Logger:   appLogger,
	}, nil
}

// NewPoller returns a poller that remembers its job in the database, so a
// later invocation can resume it.
func (ac *AppContext) NewPoller() *poller.Poller {
	return poller.New(ac.Client, ac.Sessions,
		poller.WithInterval(ac.Config.Generator.PollInterval),
		poller.WithLogger(ac.Logger),
		poller.WithRecorder(ac.Jobs),
	)
}

// JobID returns id, or the remembered job when id is empty.
func (ac *AppContext) JobID(ctx context.Context, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	id, err := ac.Sessions.CurrentJobID(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("ジョブIDが指定されておらず、再開できるジョブもありません")
	}
	return id, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.DB != nil {
		ac.DB.Close()
	}
}

// truncateString は表示用に文字列を切り詰める
func truncateString(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}
