package tasks

import (
	"context"
	"time"

	"resume-matcher/internal/pipeline"
)

// Repo persists tasks. Transition methods only apply to non-terminal tasks and
// return ErrTerminal otherwise, so a late worker can never overwrite a
// cancellation.
type Repo interface {
	Create(ctx context.Context, task Task) error
	GetByID(ctx context.Context, taskID string) (Task, error)
	MarkStarted(ctx context.Context, taskID string, at time.Time) error
	UpdateProgress(ctx context.Context, taskID string, stage pipeline.Stage, percentage int) error
	Complete(ctx context.Context, taskID string, result pipeline.Result, at time.Time) error
	Fail(ctx context.Context, taskID string, failure pipeline.Failure, at time.Time) error
	Revoke(ctx context.Context, taskID string, at time.Time) error
	ListActive(ctx context.Context, limit int) ([]Task, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

const defaultListLimit = 100

func clampLimit(limit int) int {
	if limit <= 0 || limit > defaultListLimit {
		return defaultListLimit
	}
	return limit
}
