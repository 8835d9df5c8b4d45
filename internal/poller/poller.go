package poller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"casegen/internal/genapi"
	"casegen/internal/models"
)

// DefaultInterval is the fixed delay between two status checks.
const DefaultInterval = 6 * time.Second

// ErrNoJobID is returned by Resume when called without an id.
var ErrNoJobID = errors.New("job id is empty")

// Service is the remote generator. *genapi.Client implements it.
type Service interface {
	Generate(ctx context.Context, userStory string) (*genapi.GenerateResponse, error)
	Result(ctx context.Context, jobID string) (*genapi.StatusResponse, error)
}

// Recorder receives job lifecycle events. Errors are logged and otherwise ignored.
type Recorder interface {
	JobSubmitted(ctx context.Context, job models.Job) error
	JobResolved(ctx context.Context, job models.Job) error
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Poller) {
		p.recorder = r
	}
}

// session is one polling loop bound to one job id.
type session struct {
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Poller drives one generation job at a time from submission to a terminal
// status and exposes the job as observed so far.
//
// Every Submit, Resume and Cancel bumps a generation counter; results of
// requests issued under an older generation are discarded. At most one
// session, and so at most one ticker, is alive at any instant.
type Poller struct {
	service  Service
	store    IdentityStore
	recorder Recorder
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	gen     uint64
	job     models.Job
	session *session

	armed atomic.Int32
}

// New creates a Poller. store may be nil, in which case a MemoryStore is used.
func New(service Service, store IdentityStore, opts ...Option) *Poller {
	if store == nil {
		store = NewMemoryStore()
	}
	p := &Poller{
		service:  service,
		store:    store,
		logger:   slog.Default(),
		interval: DefaultInterval,
		job:      models.Job{Status: models.JobStatusUnsubmitted},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the job as currently observed.
func (p *Poller) Snapshot() models.Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.job
}

// Active reports whether a polling session is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

// Submit creates a new job for input and starts polling it. Any previous
// session is terminated first.
//
// If a newer Submit, Resume or Cancel happens while the request is in flight
// the job id is returned together with ErrSuperseded and nothing is polled.
func (p *Poller) Submit(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrEmptyInput
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	prev := p.detachLocked()
	p.job = models.Job{Input: input, Status: models.JobStatusUnsubmitted}
	// 前のジョブは放棄したので、失敗しても ResumeCurrent で戻らないようにする
	if err := p.store.SetCurrentJobID(ctx, ""); err != nil {
		p.logger.Warn("failed to forget previous job", "error", err)
	}
	p.mu.Unlock()
	p.waitFor(prev)

	p.logger.Info("submitting user story", "length", len(input))
	resp, err := p.service.Generate(ctx, input)

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		id := ""
		if resp != nil {
			id = resp.ID
		}
		p.logger.Warn("discarding superseded submission", "job_id", id)
		return id, ErrSuperseded
	}
	if err != nil {
		serr := &SubmissionError{Err: err}
		p.job.Err = serr
		p.mu.Unlock()
		p.logger.Error("submission failed", "error", err)
		return "", serr
	}

	now := time.Now()
	p.job = models.Job{
		ID:          resp.ID,
		Input:       input,
		Status:      models.JobStatusProcessing,
		SubmittedAt: &now,
	}
	if err := p.store.SetCurrentJobID(ctx, resp.ID); err != nil {
		p.logger.Warn("failed to remember current job", "job_id", resp.ID, "error", err)
	}
	p.startLocked(resp.ID)
	snap := p.job
	p.mu.Unlock()

	p.logger.Info("job submitted", "job_id", resp.ID, "message", resp.Message)
	p.record(ctx, snap, false)
	return resp.ID, nil
}

// Resume rejoins an existing job. Its status is fetched once: a terminal
// status resolves immediately, processing starts a polling session.
func (p *Poller) Resume(ctx context.Context, jobID string) error {
	if jobID == "" {
		return ErrNoJobID
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	prev := p.detachLocked()
	p.mu.Unlock()
	p.waitFor(prev)

	resp, err := p.service.Result(ctx, jobID)

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return ErrSuperseded
	}
	if p.job.ID != jobID {
		p.job = models.Job{ID: jobID, Status: models.JobStatusProcessing}
	}
	if err != nil {
		ferr := &StatusFetchError{JobID: jobID, Err: err}
		if errors.Is(err, genapi.ErrJobNotFound) {
			p.job.Status = models.JobStatusUnsubmitted
		}
		p.job.Err = ferr
		p.mu.Unlock()
		p.logger.Error("initial status check failed", "job_id", jobID, "error", err)
		return ferr
	}
	if err := p.store.SetCurrentJobID(ctx, jobID); err != nil {
		p.logger.Warn("failed to remember current job", "job_id", jobID, "error", err)
	}

	if !p.job.Status.Terminal() {
		p.job.Err = nil
	}
	terminal := p.applyLocked(jobID, resp)
	if !terminal {
		p.startLocked(jobID)
	}
	snap := p.job
	p.mu.Unlock()

	p.logger.Info("resumed job", "job_id", jobID, "status", snap.Status)
	if terminal {
		p.record(ctx, snap, true)
	}
	return nil
}

// ResumeCurrent is called when a consumer becomes active. It resumes the job
// held by the IdentityStore unless a session is already running or that job
// has already been resolved here. It reports whether Resume was attempted.
func (p *Poller) ResumeCurrent(ctx context.Context) (bool, error) {
	id, err := p.store.CurrentJobID(ctx)
	if err != nil {
		return false, err
	}
	if id == "" {
		return false, nil
	}

	p.mu.Lock()
	busy := p.session != nil
	resolved := p.job.ID == id && p.job.Status.Terminal()
	p.mu.Unlock()
	if busy || resolved {
		return false, nil
	}

	return true, p.Resume(ctx, id)
}

// Cancel stops the active session, if any, without touching the observed
// job. In-flight Submit and Resume calls are discarded as well. It returns
// once the polling goroutine has exited and is a no-op when idle.
func (p *Poller) Cancel() {
	p.mu.Lock()
	p.gen++
	s := p.detachLocked()
	p.mu.Unlock()

	if s != nil {
		p.waitFor(s)
		p.logger.Info("polling cancelled", "job_id", s.jobID)
	}
}

// Close tears the poller down. It is Cancel under the name consumers expect.
func (p *Poller) Close() error {
	p.Cancel()
	return nil
}

// Wait blocks until the current session ends and returns the observed job
// together with the error that ended it, if any. It returns immediately when
// no session is active.
func (p *Poller) Wait(ctx context.Context) (models.Job, error) {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()

	if s != nil {
		select {
		case <-s.done:
		case <-ctx.Done():
			return p.Snapshot(), ctx.Err()
		}
	}

	job := p.Snapshot()
	return job, job.Err
}

func (p *Poller) startLocked(jobID string) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{jobID: jobID, cancel: cancel, done: make(chan struct{})}
	p.session = s
	go p.run(ctx, s)
}

func (p *Poller) detachLocked() *session {
	s := p.session
	if s != nil {
		s.cancel()
		p.session = nil
	}
	return s
}

func (p *Poller) waitFor(s *session) {
	if s != nil {
		<-s.done
	}
}

func (p *Poller) run(ctx context.Context, s *session) {
	defer close(s.done)
	defer s.cancel()

	ticker := time.NewTicker(p.interval)
	p.armed.Add(1)
	defer func() {
		ticker.Stop()
		p.armed.Add(-1)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.pollOnce(ctx, s) {
				return
			}
		}
	}
}

// pollOnce checks the job once and reports whether the session is over.
func (p *Poller) pollOnce(ctx context.Context, s *session) bool {
	resp, err := p.service.Result(ctx, s.jobID)

	p.mu.Lock()
	if p.session != s || ctx.Err() != nil {
		p.mu.Unlock()
		return true
	}
	if err != nil {
		p.job.Err = &StatusFetchError{JobID: s.jobID, Err: err}
		p.session = nil
		p.mu.Unlock()
		p.logger.Error("status check failed, polling stopped", "job_id", s.jobID, "error", err)
		return true
	}

	terminal := p.applyLocked(s.jobID, resp)
	if terminal {
		p.session = nil
	}
	snap := p.job
	p.mu.Unlock()

	if !terminal {
		p.logger.Debug("job still processing", "job_id", s.jobID)
		return false
	}
	p.logger.Info("job resolved", "job_id", s.jobID, "status", snap.Status)
	p.record(context.WithoutCancel(ctx), snap, true)
	return true
}

// applyLocked folds a status response into the observed job and reports
// whether the job is now terminal.
func (p *Poller) applyLocked(jobID string, resp *genapi.StatusResponse) bool {
	if p.job.ID == jobID && p.job.Status.Terminal() {
		return true
	}
	p.job.ID = jobID

	switch resp.Status {
	case genapi.StatusDone:
		now := time.Now()
		p.job.ResolvedAt = &now
		result, err := resp.DecodeResult()
		if err != nil {
			p.job.Status = models.JobStatusFailed
			p.job.Failure = resp.Result
			p.job.Err = &RemoteTaskFailure{JobID: jobID, Payload: resp.Result}
			p.logger.Error("malformed result payload", "job_id", jobID, "error", err)
			return true
		}
		p.job.Status = models.JobStatusDone
		p.job.Result = result
		p.job.Err = nil
		return true
	case genapi.StatusFailed:
		now := time.Now()
		p.job.ResolvedAt = &now
		p.job.Status = models.JobStatusFailed
		p.job.Failure = resp.Result
		p.job.Err = &RemoteTaskFailure{JobID: jobID, Payload: resp.Result}
		return true
	default:
		p.job.Status = models.JobStatusProcessing
		return false
	}
}

func (p *Poller) record(ctx context.Context, job models.Job, resolved bool) {
	if p.recorder == nil {
		return
	}
	var err error
	if resolved {
		err = p.recorder.JobResolved(ctx, job)
	} else {
		err = p.recorder.JobSubmitted(ctx, job)
	}
	if err != nil {
		p.logger.Warn("failed to record job", "job_id", job.ID, "error", err)
	}
}
