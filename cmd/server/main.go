package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casegen/internal/config"
	"casegen/internal/genapi"
	"casegen/internal/handlers"
	"casegen/internal/ingestion"
	"casegen/internal/logger"
	"casegen/internal/poller"
	"casegen/internal/storage"
	"casegen/internal/stubservice"
	"casegen/internal/version"
	"casegen/internal/worker"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .envファイルを読み込み（存在しない場合はスキップ）
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// データベース
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	jobRepo := storage.NewJobRepository(db)
	sessionRepo := storage.NewSessionRepository(db)
	batchRepo := storage.NewBatchRepository(db)

	// 生成サービスクライアント
	client, err := genapi.NewClient(cfg.Generator.BaseURL, &genapi.Options{Timeout: cfg.Generator.RequestTimeout})
	if err != nil {
		return err
	}

	// 生成画面用のポーラー（サーバー全体で1つ）
	p := poller.New(client, sessionRepo,
		poller.WithInterval(cfg.Generator.PollInterval),
		poller.WithLogger(log.With("component", "poller")),
		poller.WithRecorder(jobRepo),
	)
	defer p.Close()

	// 一括処理ワーカー
	w := worker.NewWorker(batchRepo, jobRepo, client)
	w.SetInterval(cfg.Worker.Interval)
	w.SetPollInterval(cfg.Generator.PollInterval)
	w.SetLogger(log.With("component", "worker"))
	w.Start(ctx)
	defer w.Stop()

	if cfg.RetentionDays > 0 {
		go cleanupLoop(ctx, jobRepo, cfg.RetentionDays, log)
	}

	// Echoインスタンスの作成
	e := echo.New()
	e.HideBanner = true

	// ミドルウェアの設定
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// ルートの登録
	handlers.Register(e, handlers.Set{
		Home:      handlers.NewHomeHandler(jobRepo),
		Generator: handlers.NewGeneratorHandler(p),
		Jobs:      handlers.NewJobHandler(jobRepo),
		Batches:   handlers.NewBatchHandler(ingestion.NewIngester(batchRepo), batchRepo, cfg.MaxUploadBytes),
	})

	if cfg.StubGenerator {
		stubservice.New(stubservice.DefaultPollsUntilDone).Register(e.Group("/stub"))
		log.Warn("stub generator mounted", "path", "/stub")
	}

	// サーバー起動
	log.Info("starting casegen", "version", version.Version, "port", cfg.Port, "generator", client.BaseURL())
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(fmt.Sprintf(":%s", cfg.Port))
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// cleanupLoop は保持期間を過ぎた終了済みジョブを1時間ごとに削除する
func cleanupLoop(ctx context.Context, repo *storage.JobRepository, days int, log *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		if n, err := repo.CleanupResolved(ctx, days); err != nil {
			log.Error("job cleanup failed", "error", err)
		} else if n > 0 {
			log.Info("removed old jobs", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
