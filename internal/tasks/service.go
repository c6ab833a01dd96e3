package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"resume-matcher/internal/extract"
	"resume-matcher/internal/pipeline"
	"resume-matcher/internal/queue"
	"resume-matcher/internal/shared/metrics"
	"resume-matcher/internal/shared/storage/object"
	"resume-matcher/internal/shared/telemetry"
)

// EstimatedCompletionSeconds is advertised to clients when a task is accepted.
const EstimatedCompletionSeconds = 30

// Runner executes one matching pipeline.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input, sink pipeline.ProgressSink) (pipeline.Result, error)
}

// Submission is an accepted upload waiting to become a task.
type Submission struct {
	UserID    string
	Filename  string
	MediaType string
	Body      io.Reader
	Options   Options
}

// Service moves tasks through PENDING, STARTED and a terminal state.
type Service struct {
	Repo   Repo
	Store  object.ObjectStore
	Queue  queue.Client
	Runner Runner

	now func() time.Time

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewService constructs a Service.
func NewService(repo Repo, store object.ObjectStore, q queue.Client, runner Runner) *Service {
	return &Service{
		Repo:    repo,
		Store:   store,
		Queue:   q,
		Runner:  runner,
		now:     func() time.Time { return time.Now().UTC() },
		running: make(map[string]context.CancelFunc),
	}
}

// ValidateOptions checks the numeric overrides before anything is stored.
func ValidateOptions(opts Options) error {
	in := pipeline.Input{
		Document:  extract.Document{Data: []byte{0}},
		Threshold: opts.Threshold,
		MaxJobs:   opts.MaxJobs,
		Filters:   opts.Filters,
	}
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.TrimPrefix(err.Error(), pipeline.ErrInvalidInput.Error()+": "))
	}
	return nil
}

// Submit stores the document, records a PENDING task and enqueues it.
func (s *Service) Submit(ctx context.Context, sub Submission) (Task, error) {
	if sub.Body == nil || strings.TrimSpace(sub.Filename) == "" {
		return Task{}, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	if err := ValidateOptions(sub.Options); err != nil {
		return Task{}, err
	}
	if s.Queue == nil {
		return Task{}, ErrQueueNotConfigured
	}

	key, size, sniffed, err := s.Store.Save(ctx, sub.UserID, sub.Filename, sub.Body)
	if err != nil {
		return Task{}, fmt.Errorf("store document: %w", err)
	}
	mediaType := sub.MediaType
	if mediaType == "" {
		mediaType = sniffed
	}

	now := s.now()
	task := Task{
		ID:         uuid.NewString(),
		UserID:     sub.UserID,
		RequestID:  requestIDFromContext(ctx),
		Filename:   sub.Filename,
		MediaType:  mediaType,
		SizeBytes:  size,
		StorageKey: key,
		Options:    sub.Options,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, task); err != nil {
		s.discard(ctx, task)
		return Task{}, fmt.Errorf("create task: %w", err)
	}

	msg := queue.Message{
		TaskID:     task.ID,
		RequestID:  task.RequestID,
		EnqueuedAt: now.Format(time.RFC3339),
		Version:    queue.MessageVersion,
	}
	if err := s.Queue.Send(ctx, msg); err != nil {
		failure := pipeline.Failure{Error: "failed to enqueue task", ErrorCode: pipeline.CodeInternal}
		_ = s.Repo.Fail(context.WithoutCancel(ctx), task.ID, failure, s.now())
		s.discard(ctx, task)
		return Task{}, fmt.Errorf("enqueue task: %w", err)
	}

	metrics.IncTaskSubmitted()
	s.logStatus(ctx, task, StatusPending, "->PENDING", nil)
	return task, nil
}

// Get returns a task by ID.
func (s *Service) Get(ctx context.Context, taskID string) (Task, error) {
	return s.Repo.GetByID(ctx, taskID)
}

// ListActive returns tasks that are pending or running.
func (s *Service) ListActive(ctx context.Context, limit int) ([]Task, error) {
	return s.Repo.ListActive(ctx, limit)
}

// Cancel revokes a non-terminal task. A pipeline running in this process is
// cancelled directly; one running elsewhere notices on its next progress
// update. Either way it stops at the next stage boundary.
func (s *Service) Cancel(ctx context.Context, taskID string) (Task, error) {
	if err := s.Repo.Revoke(ctx, taskID, s.now()); err != nil {
		return Task{}, err
	}
	s.mu.Lock()
	cancel := s.running[taskID]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	task, err := s.Repo.GetByID(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if cancel == nil && task.StartedAt == nil {
		// Nobody picked it up yet; the worker will skip it.
		s.discard(ctx, task)
	}
	metrics.IncTaskRevoked()
	s.logStatus(ctx, task, StatusRevoked, "->REVOKED", nil)
	return task, nil
}

// Cleanup purges terminal tasks that finished more than olderThan ago.
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.Repo.DeleteFinishedBefore(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		telemetry.Info("task.cleanup", map[string]any{"deleted": n, "older_than": olderThan.String()})
	}
	return n, nil
}

// Process runs the pipeline for a queued task. It returns nil once the task
// is terminal (including when it already was), and an error only when the
// attempt should be retried.
func (s *Service) Process(ctx context.Context, taskID string) (err error) {
	task, err := s.Repo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			telemetry.Warn("task.process_skipped", map[string]any{"task_id": taskID, "reason": "not_found"})
			return nil
		}
		return fmt.Errorf("task lookup: %w", err)
	}
	if task.Status.Terminal() {
		telemetry.Info("task.process_skipped", map[string]any{"task_id": taskID, "status": string(task.Status)})
		return nil
	}

	startedAt := s.now()
	if err := s.Repo.MarkStarted(ctx, taskID, startedAt); err != nil {
		if errors.Is(err, ErrTerminal) {
			return nil
		}
		return fmt.Errorf("mark started: %w", err)
	}
	metrics.IncTaskStarted()
	s.logStatus(ctx, task, StatusStarted, string(task.Status)+"->STARTED", nil)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.track(taskID, cancel)
	defer s.untrack(taskID)

	var discardOnce sync.Once
	discard := func() { discardOnce.Do(func() { s.discard(ctx, task) }) }

	defer func() {
		if r := recover(); r != nil {
			err = s.fail(ctx, task, startedAt, &pipeline.Error{Err: fmt.Errorf("panic: %v", r)})
			discard()
		}
	}()

	data, err := s.load(runCtx, task.StorageKey)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		discard()
		return s.fail(ctx, task, startedAt, &pipeline.Error{Stage: pipeline.StageExtracting, Err: err})
	}

	sink := &progressSink{
		repo:        s.Repo,
		ctx:         context.WithoutCancel(runCtx),
		taskID:      taskID,
		cancel:      cancel,
		onExtracted: discard,
	}
	in := pipeline.Input{
		Document:  extract.Document{Data: data, MediaType: task.MediaType, Filename: task.Filename},
		UserID:    task.UserID,
		Threshold: task.Options.Threshold,
		MaxJobs:   task.Options.MaxJobs,
		Filters:   task.Options.Filters,
	}
	result, runErr := s.Runner.Run(runCtx, in, sink)

	switch {
	case runErr == nil:
		discard()
		return s.complete(ctx, task, startedAt, result)
	case sink.revoked.Load():
		discard()
		s.logStatus(ctx, task, StatusRevoked, "STARTED->REVOKED", map[string]any{"stage": sink.stage()})
		return nil
	case ctx.Err() != nil:
		// Shutdown, not a task failure; leave it STARTED for redelivery.
		// The document survives unless extraction already finished.
		return ctx.Err()
	default:
		discard()
		return s.fail(ctx, task, startedAt, runErr)
	}
}

func (s *Service) complete(ctx context.Context, task Task, startedAt time.Time, result pipeline.Result) error {
	completedAt := s.now()
	if err := s.Repo.Complete(context.WithoutCancel(ctx), task.ID, result, completedAt); err != nil {
		if errors.Is(err, ErrTerminal) {
			s.logStatus(ctx, task, StatusRevoked, "STARTED->REVOKED", nil)
			return nil
		}
		return fmt.Errorf("store result: %w", err)
	}
	metrics.IncTaskSucceeded()
	metrics.ObserveTaskDurationMs(durationMs(startedAt, completedAt))
	s.logStatus(ctx, task, StatusSuccess, "STARTED->SUCCESS", map[string]any{
		"duration_ms":        durationMs(startedAt, completedAt),
		"matched_jobs_count": result.MatchedJobsCount,
		"synthetic_count":    result.SyntheticCount,
	})
	return nil
}

func (s *Service) fail(ctx context.Context, task Task, startedAt time.Time, runErr error) error {
	var perr *pipeline.Error
	if !errors.As(runErr, &perr) {
		perr = &pipeline.Error{Err: runErr}
	}
	failure := perr.Failure()
	completedAt := s.now()
	if failure.ProcessingTimeSeconds == 0 {
		failure.ProcessingTimeSeconds = completedAt.Sub(startedAt).Seconds()
	}
	if err := s.Repo.Fail(context.WithoutCancel(ctx), task.ID, failure, completedAt); err != nil {
		if errors.Is(err, ErrTerminal) {
			return nil
		}
		return fmt.Errorf("store failure: %w", err)
	}
	metrics.IncTaskFailed()
	metrics.ObserveTaskDurationMs(durationMs(startedAt, completedAt))
	s.logStatus(ctx, task, StatusFailure, "STARTED->FAILURE", map[string]any{
		"duration_ms": durationMs(startedAt, completedAt),
		"stage":       string(failure.Stage),
		"error_code":  failure.ErrorCode,
		"error":       failure.Error,
	})
	return nil
}

func (s *Service) load(ctx context.Context, key string) ([]byte, error) {
	if s.Store == nil {
		return nil, errors.New("object store not configured")
	}
	body, err := s.Store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

// discard removes the stored document; failures are logged only.
func (s *Service) discard(ctx context.Context, task Task) {
	if s.Store == nil || task.StorageKey == "" {
		return
	}
	if err := s.Store.Delete(context.WithoutCancel(ctx), task.StorageKey); err != nil {
		telemetry.Warn("task.document_delete_failed", map[string]any{
			"task_id": task.ID,
			"error":   err.Error(),
		})
	}
}

func (s *Service) track(taskID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == nil {
		s.running = make(map[string]context.CancelFunc)
	}
	s.running[taskID] = cancel
}

func (s *Service) untrack(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, taskID)
}

func (s *Service) logStatus(ctx context.Context, task Task, status Status, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        firstNonEmpty(requestIDFromContext(ctx), task.RequestID),
		"task_id":           task.ID,
		"user_id":           task.UserID,
		"status":            string(status),
		"status_transition": transition,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("task.status", fields)
}

// progressSink persists stage transitions and turns a revocation seen in the
// repo into cancellation of the running pipeline.
type progressSink struct {
	repo        Repo
	ctx         context.Context
	taskID      string
	cancel      context.CancelFunc
	onExtracted func()

	revoked atomic.Bool
	last    atomic.Value // pipeline.Stage
}

func (p *progressSink) Report(stage pipeline.Stage, percentage int) {
	p.last.Store(stage)
	if stage == pipeline.StageAnalyzing && p.onExtracted != nil {
		p.onExtracted()
	}
	err := p.repo.UpdateProgress(p.ctx, p.taskID, stage, percentage)
	switch {
	case err == nil:
	case errors.Is(err, ErrTerminal):
		p.revoked.Store(true)
		p.cancel()
	default:
		telemetry.Warn("task.progress_failed", map[string]any{
			"task_id": p.taskID,
			"stage":   string(stage),
			"error":   err.Error(),
		})
	}
}

func (p *progressSink) stage() string {
	if s, ok := p.last.Load().(pipeline.Stage); ok {
		return string(s)
	}
	return ""
}

func durationMs(startedAt, completedAt time.Time) float64 {
	return float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
