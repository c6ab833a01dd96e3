package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"resume-matcher/internal/extract"
	"resume-matcher/internal/filters"
	"resume-matcher/internal/scoring"
	"resume-matcher/internal/skills"
)

// Stage is one sequential phase of a run.
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageAnalyzing  Stage = "analyzing"
	StageSearching  Stage = "searching"
	StageScoring    Stage = "scoring"
	StageFinalizing Stage = "finalizing"
	StageDone       Stage = "done"
)

// Percent is the progress reported when the stage starts.
func (s Stage) Percent() int {
	switch s {
	case StageExtracting:
		return 10
	case StageAnalyzing:
		return 25
	case StageSearching:
		return 50
	case StageScoring:
		return 75
	case StageFinalizing:
		return 90
	case StageDone:
		return 100
	default:
		return 0
	}
}

// Message is a human readable progress line.
func (s Stage) Message() string {
	switch s {
	case StageExtracting:
		return "Extracting text from resume..."
	case StageAnalyzing:
		return "Analyzing resume and extracting skills..."
	case StageSearching:
		return "Searching for relevant job listings..."
	case StageScoring:
		return "Calculating job similarity scores..."
	case StageFinalizing:
		return "Finalizing results..."
	case StageDone:
		return "Completed"
	default:
		return string(s)
	}
}

// ProgressSink receives stage transitions synchronously, in order.
type ProgressSink interface {
	Report(stage Stage, percentage int)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(stage Stage, percentage int)

func (f ProgressFunc) Report(stage Stage, percentage int) { f(stage, percentage) }

type discardSink struct{}

func (discardSink) Report(Stage, int) {}

const (
	MaxJobsLimit = 50
	maxErrorLen  = 500
)

var ErrInvalidInput = errors.New("invalid input")

// Input is one unit of work handed over by the task boundary.
type Input struct {
	Document  extract.Document
	UserID    string
	Threshold *float64
	MaxJobs   *int
	Filters   filters.Criteria
}

// Validate checks the optional numeric knobs.
func (in Input) Validate() error {
	if len(in.Document.Data) == 0 {
		return fmt.Errorf("%w: document is empty", ErrInvalidInput)
	}
	if in.Threshold != nil && (*in.Threshold < 0 || *in.Threshold > 1) {
		return fmt.Errorf("%w: similarity_threshold must be within [0,1]", ErrInvalidInput)
	}
	if in.MaxJobs != nil && (*in.MaxJobs < 1 || *in.MaxJobs > MaxJobsLimit) {
		return fmt.Errorf("%w: max_jobs must be within [1,%d]", ErrInvalidInput, MaxJobsLimit)
	}
	if in.Filters.MinSalary != nil && *in.Filters.MinSalary < 0 {
		return fmt.Errorf("%w: min_salary must be non-negative", ErrInvalidInput)
	}
	if in.Filters.MaxSalary != nil && *in.Filters.MaxSalary < 0 {
		return fmt.Errorf("%w: max_salary must be non-negative", ErrInvalidInput)
	}
	return nil
}

// FileInfo describes the processed document.
type FileInfo struct {
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
	SizeBytes int    `json:"size_bytes"`
}

// Result is the SUCCESS payload.
type Result struct {
	MatchedJobs           []scoring.ScoredMatch `json:"matched_jobs"`
	ExtractedSkills       skills.Profile        `json:"extracted_skills"`
	TotalJobsFound        int                   `json:"total_jobs_found"`
	MatchedJobsCount      int                   `json:"matched_jobs_count"`
	SearchQueries         []string              `json:"search_queries"`
	ProcessingTimeSeconds float64               `json:"processing_time_seconds"`
	FileInfo              FileInfo              `json:"file_info"`
	FilterStats           *filters.Stats        `json:"filter_stats,omitempty"`
	SyntheticCount        int                   `json:"synthetic_count"`
	Message               string                `json:"message,omitempty"`
	UserID                string                `json:"user_id,omitempty"`
}

// Failure is the FAILURE payload.
type Failure struct {
	Error                 string  `json:"error"`
	ErrorCode             string  `json:"error_code"`
	Stage                 Stage   `json:"stage,omitempty"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

const (
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodeCorruptDocument      = "CORRUPT_DOCUMENT"
	CodeEmptyContent         = "EMPTY_CONTENT"
	CodeNoSkillsFound        = "NO_SKILLS_FOUND"
	CodeEngineUnavailable    = "ENGINE_UNAVAILABLE"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeCancelled            = "CANCELLED"
	CodeInternal             = "INTERNAL_ERROR"
)

// Error is a fatal run failure tagged with the stage it happened in.
type Error struct {
	Stage   Stage
	Err     error
	Elapsed float64 // seconds
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code classifies the underlying error.
func (e *Error) Code() string { return Classify(e.Err) }

// Failure renders the FAILURE payload.
func (e *Error) Failure() Failure {
	return Failure{
		Error:                 sanitize(e.Err),
		ErrorCode:             e.Code(),
		Stage:                 e.Stage,
		ProcessingTimeSeconds: e.Elapsed,
	}
}

// Classify maps err onto a stable failure code.
func Classify(err error) string {
	switch {
	case err == nil:
		return CodeInternal
	case errors.Is(err, extract.ErrUnsupportedMediaType):
		return CodeUnsupportedMediaType
	case errors.Is(err, extract.ErrCorruptDocument):
		return CodeCorruptDocument
	case errors.Is(err, extract.ErrEmptyContent):
		return CodeEmptyContent
	case errors.Is(err, skills.ErrNoSkillsFound):
		return CodeNoSkillsFound
	case errors.Is(err, skills.ErrEngineUnavailable):
		return CodeEngineUnavailable
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	default:
		return CodeInternal
	}
}

func sanitize(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.TrimSpace(strings.ReplaceAll(msg, "\r", " "))
	if len(msg) > maxErrorLen {
		msg = strings.ToValidUTF8(msg[:maxErrorLen], "")
	}
	return msg
}
