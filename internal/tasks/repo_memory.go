package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"resume-matcher/internal/pipeline"
)

// MemoryRepo stores tasks in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Task
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Task)}
}

// Create stores the task.
func (r *MemoryRepo) Create(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[task.ID] = task
	return nil
}

// GetByID returns a task by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, taskID string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.byID[taskID]
	if !ok {
		return Task{}, ErrNotFound
	}
	return task, nil
}

func (r *MemoryRepo) MarkStarted(ctx context.Context, taskID string, at time.Time) error {
	return r.update(ctx, taskID, func(t *Task) {
		t.Status = StatusStarted
		if t.StartedAt == nil {
			t.StartedAt = &at
		}
	})
}

func (r *MemoryRepo) UpdateProgress(ctx context.Context, taskID string, stage pipeline.Stage, percentage int) error {
	return r.update(ctx, taskID, func(t *Task) {
		if percentage < t.Percentage {
			return
		}
		t.Stage = stage
		t.Percentage = percentage
	})
}

func (r *MemoryRepo) Complete(ctx context.Context, taskID string, result pipeline.Result, at time.Time) error {
	return r.update(ctx, taskID, func(t *Task) {
		t.Status = StatusSuccess
		t.Stage = pipeline.StageDone
		t.Percentage = 100
		t.Result = &result
		t.CompletedAt = &at
	})
}

func (r *MemoryRepo) Fail(ctx context.Context, taskID string, failure pipeline.Failure, at time.Time) error {
	return r.update(ctx, taskID, func(t *Task) {
		t.Status = StatusFailure
		t.Failure = &failure
		t.CompletedAt = &at
	})
}

func (r *MemoryRepo) Revoke(ctx context.Context, taskID string, at time.Time) error {
	return r.update(ctx, taskID, func(t *Task) {
		t.Status = StatusRevoked
		t.CompletedAt = &at
	})
}

// ListActive returns non-terminal tasks, oldest first.
func (r *MemoryRepo) ListActive(ctx context.Context, limit int) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Task, 0)
	for _, t := range r.byID {
		if !t.Status.Terminal() {
			out = append(out, t)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteFinishedBefore purges terminal tasks completed before cutoff.
func (r *MemoryRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.byID {
		if t.Status.Terminal() && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) update(ctx context.Context, taskID string, fn func(*Task)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.byID[taskID]
	if !ok {
		return ErrNotFound
	}
	if task.Status.Terminal() {
		return ErrTerminal
	}
	fn(&task)
	task.UpdatedAt = time.Now().UTC()
	r.byID[taskID] = task
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
