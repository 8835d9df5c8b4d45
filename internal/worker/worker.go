package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"casegen/internal/models"
	"casegen/internal/poller"
	"casegen/internal/storage"
)

// Worker processes queued batch items, one user story at a time
type Worker struct {
	batchRepo    *storage.BatchRepository
	jobRepo      *storage.JobRepository
	service      poller.Service
	interval     time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
	stop         chan struct{}
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewWorker creates a new worker
func NewWorker(batchRepo *storage.BatchRepository, jobRepo *storage.JobRepository, service poller.Service) *Worker {
	return &Worker{
		batchRepo:    batchRepo,
		jobRepo:      jobRepo,
		service:      service,
		interval:     1 * time.Second,
		pollInterval: poller.DefaultInterval,
		logger:       slog.Default(),
		stop:         make(chan struct{}),
	}
}

// SetInterval sets how often the queue is checked
func (w *Worker) SetInterval(interval time.Duration) {
	w.interval = interval
}

// SetPollInterval sets the status check interval used for each story
func (w *Worker) SetPollInterval(interval time.Duration) {
	w.pollInterval = interval
}

// SetLogger sets the logger
func (w *Worker) SetLogger(l *slog.Logger) {
	w.logger = l
}

// Start begins processing items. Items left running by a previous process
// are put back in the queue first.
func (w *Worker) Start(ctx context.Context) {
	if n, err := w.batchRepo.Requeue(ctx); err != nil {
		w.logger.Error("failed to requeue interrupted items", "error", err)
	} else if n > 0 {
		w.logger.Info("requeued interrupted items", "count", n)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Info("worker started")
}

// Stop gracefully stops the worker. The story being processed, if any, is
// abandoned and stays running until the next Start requeues it.
func (w *Worker) Stop() {
	close(w.stop)
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			// 空になるまで続けて処理する
			for w.processNext(ctx) {
			}
		}
	}
}

// processNext handles one queued item and reports whether one was found.
func (w *Worker) processNext(ctx context.Context) bool {
	select {
	case <-w.stop:
		return false
	default:
	}

	item, err := w.batchRepo.NextQueued(ctx)
	if err != nil {
		w.logger.Error("error getting next item", "error", err)
		return false
	}
	if item == nil {
		return false
	}

	if err := w.batchRepo.Start(ctx, item.ID); err != nil {
		w.logger.Error("error starting item", "item_id", item.ID, "error", err)
		return false
	}

	log := w.logger.With("batch_id", item.BatchID, "item_id", item.ID, "file", item.FileName)
	log.Info("processing user story", "position", item.Position)

	job, err := w.generate(ctx, item)
	if err != nil {
		if ctx.Err() != nil {
			// 停止による中断。次回起動時に再キューされる
			log.Warn("item interrupted", "error", err)
			return false
		}
		log.Error("item failed", "job_id", job.ID, "error", err)
		if ferr := w.batchRepo.Fail(ctx, item.ID, job.ID, err.Error()); ferr != nil {
			log.Error("error failing item", "error", ferr)
		}
		return true
	}

	count := 0
	if job.Result != nil {
		count = len(job.Result.GeneratedTestCases)
	}
	if err := w.batchRepo.Complete(ctx, item.ID, job.ID, count); err != nil {
		log.Error("error completing item", "error", err)
		return true
	}
	log.Info("item completed", "job_id", job.ID, "test_cases", count)
	return true
}

// generate runs one story through its own poller until the job resolves.
func (w *Worker) generate(ctx context.Context, item *models.BatchItem) (models.Job, error) {
	opts := []poller.Option{
		poller.WithInterval(w.pollInterval),
		poller.WithLogger(w.logger.With("item_id", item.ID)),
	}
	if w.jobRepo != nil {
		opts = append(opts, poller.WithRecorder(w.jobRepo))
	}
	p := poller.New(w.service, poller.NewMemoryStore(), opts...)
	defer p.Cancel()

	if _, err := p.Submit(ctx, item.Story); err != nil {
		return p.Snapshot(), err
	}

	job, err := p.Wait(ctx)
	if err != nil {
		return job, err
	}
	return job, nil
}
