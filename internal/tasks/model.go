package tasks

import (
	"time"

	"resume-matcher/internal/filters"
	"resume-matcher/internal/pipeline"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusStarted Status = "STARTED"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusRevoked Status = "REVOKED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusRevoked
}

// Options are the caller supplied overrides stored with the task.
type Options struct {
	Threshold *float64         `json:"similarity_threshold,omitempty"`
	MaxJobs   *int             `json:"max_jobs,omitempty"`
	Filters   filters.Criteria `json:"filters"`
}

// Task is one asynchronous matching request.
type Task struct {
	ID         string
	UserID     string
	RequestID  string
	Filename   string
	MediaType  string
	SizeBytes  int64
	StorageKey string
	Options    Options

	Status     Status
	Stage      pipeline.Stage
	Percentage int

	Result  *pipeline.Result
	Failure *pipeline.Failure

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// ProgressMessage is the human readable line shown while polling.
func (t Task) ProgressMessage() string {
	switch t.Status {
	case StatusPending:
		return "Task is waiting to be processed"
	case StatusStarted:
		if t.Stage != "" {
			return t.Stage.Message()
		}
		return "Task is being processed"
	case StatusSuccess:
		return "Task completed successfully"
	case StatusFailure:
		return "Task failed"
	case StatusRevoked:
		return "Task was cancelled"
	default:
		return string(t.Status)
	}
}

// ProgressPercentage maps the status onto the percentage clients see.
func (t Task) ProgressPercentage() int {
	switch t.Status {
	case StatusStarted:
		return t.Percentage
	case StatusSuccess:
		return 100
	default:
		return 0
	}
}
