package sources

import (
	"context"
	"fmt"
	"time"
)

// JobPosting is one job advert produced by a single source.
type JobPosting struct {
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	SalaryRange string     `json:"salary_range,omitempty"`
	JobType     string     `json:"job_type,omitempty"`
	Remote      *bool      `json:"remote_allowed"`
	PostedDate  *time.Time `json:"posted_date,omitempty"`
	Source      string     `json:"source"`
	Synthetic   bool       `json:"synthetic"`
}

// SourcePlugin searches one job source. Implementations return an empty slice,
// not an error, when a term simply has no results.
type SourcePlugin interface {
	Name() string
	Search(ctx context.Context, term, location string, limit int) ([]JobPosting, error)
}

// ErrorKind classifies a per-source failure.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindTimeout     ErrorKind = "timeout"
)

// SourceError is a recoverable failure of one source. It never fails a search.
type SourceError struct {
	Source string
	Term   string
	Kind   ErrorKind
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s %s (term=%q): %v", e.Source, e.Kind, e.Term, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func boolPtr(v bool) *bool { return &v }
