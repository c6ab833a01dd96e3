package tasks

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-matcher/internal/extract"
	"resume-matcher/internal/shared/server/middleware"
	"resume-matcher/internal/shared/server/respond"
)

// multipart framing allowance on top of the file limit
const formOverheadBytes = 1 << 20

// UploadPolicy bounds what POST /match-jobs accepts.
type UploadPolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

func (p UploadPolicy) allows(mediaType string) bool {
	if len(p.AllowedTypes) == 0 {
		return true
	}
	for _, t := range p.AllowedTypes {
		if strings.EqualFold(strings.TrimSpace(t), mediaType) {
			return true
		}
	}
	return false
}

// Handler wires HTTP handlers to the task service.
type Handler struct {
	Svc     *Service
	Policy  UploadPolicy
	limiter *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, policy UploadPolicy) *Handler {
	if policy.MaxBytes <= 0 {
		policy.MaxBytes = 10 << 20
	}
	return &Handler{Svc: svc, Policy: policy, limiter: newPollLimiter(pollLimitWindow, nil)}
}

// RegisterRoutes attaches task routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/match-jobs", h.matchJobs)
	rg.GET("/tasks/active", h.listActive)
	rg.GET("/tasks/:id/status", h.status)
	rg.DELETE("/tasks/:id", h.cancel)
}

func (h *Handler) matchJobs(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Policy.MaxBytes+formOverheadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusBadRequest, "file_too_large", fmt.Sprintf("file exceeds %d MB limit", h.Policy.MaxBytes>>20), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if fileHeader.Size <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is empty", nil)
		return
	}
	if fileHeader.Size > h.Policy.MaxBytes {
		respond.Error(c, http.StatusBadRequest, "file_too_large", fmt.Sprintf("file exceeds %d MB limit", h.Policy.MaxBytes>>20), nil)
		return
	}
	mediaType := extract.NormalizeMediaType(fileHeader.Header.Get("Content-Type"), fileHeader.Filename, nil)
	if !h.Policy.allows(mediaType) {
		respond.Error(c, http.StatusBadRequest, "unsupported_media_type", "file type "+mediaType+" is not allowed", []map[string]string{
			{"field": "file", "issue": "allowed: " + strings.Join(h.Policy.AllowedTypes, ", ")},
		})
		return
	}

	opts, err := parseOptions(c)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	task, err := h.Svc.Submit(ctx, Submission{
		UserID:    middleware.UserIDFromContext(c),
		Filename:  fileHeader.Filename,
		MediaType: mediaType,
		Body:      file,
		Options:   opts,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrQueueNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "task queue is not configured", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit task", nil)
		}
		return
	}
	c.Set("taskId", task.ID)
	c.Set("statusTransition", "->PENDING")

	respond.JSON(c, http.StatusAccepted, gin.H{
		"task_id":                   task.ID,
		"status":                    task.Status,
		"message":                   "Resume uploaded successfully. Processing started.",
		"estimated_completion_time": EstimatedCompletionSeconds,
		"created_at":                task.CreatedAt,
	})
}

func (h *Handler) status(c *gin.Context) {
	taskID := c.Param("id")
	c.Set("taskId", taskID)
	if !h.limiter.Allow(c.ClientIP(), taskID) {
		retry := h.limiter.RetryAfterSeconds()
		c.Header("Retry-After", strconv.Itoa(retry))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "polling too frequently", gin.H{"retry_after_seconds": retry})
		return
	}

	task, err := h.Svc.Get(c.Request.Context(), taskID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "task not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch task", nil)
		}
		return
	}
	respond.OK(c, statusResponse(task))
}

func (h *Handler) cancel(c *gin.Context) {
	taskID := c.Param("id")
	c.Set("taskId", taskID)

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	task, err := h.Svc.Cancel(ctx, taskID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "task not found", nil)
		case errors.Is(err, ErrTerminal):
			respond.Error(c, http.StatusConflict, "task_finished", "task has already finished", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to cancel task", nil)
		}
		return
	}
	c.Set("statusTransition", "->REVOKED")
	respond.OK(c, gin.H{
		"task_id": task.ID,
		"status":  task.Status,
		"message": "Task cancelled successfully",
	})
}

func (h *Handler) listActive(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	active, err := h.Svc.ListActive(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list tasks", nil)
		return
	}
	items := make([]gin.H, 0, len(active))
	for _, t := range active {
		items = append(items, gin.H{
			"task_id":             t.ID,
			"status":              t.Status,
			"progress":            t.ProgressMessage(),
			"progress_percentage": t.ProgressPercentage(),
			"created_at":          t.CreatedAt,
		})
	}
	respond.OK(c, gin.H{"tasks": items, "count": len(items)})
}

func statusResponse(t Task) gin.H {
	resp := gin.H{
		"task_id":             t.ID,
		"status":              t.Status,
		"progress":            t.ProgressMessage(),
		"progress_percentage": t.ProgressPercentage(),
		"created_at":          t.CreatedAt,
		"started_at":          t.StartedAt,
		"completed_at":        t.CompletedAt,
		"result":              nil,
		"error":               nil,
	}
	if t.Status == StatusStarted && t.Stage != "" {
		resp["stage"] = t.Stage
	}
	metadata := gin.H{
		"filename":   t.Filename,
		"media_type": t.MediaType,
		"size_bytes": t.SizeBytes,
	}
	switch {
	case t.Status == StatusSuccess && t.Result != nil:
		resp["result"] = t.Result
		resp["processing_time_seconds"] = t.Result.ProcessingTimeSeconds
		metadata["synthetic_count"] = t.Result.SyntheticCount
	case t.Status == StatusFailure && t.Failure != nil:
		resp["error"] = t.Failure.Error
		resp["error_code"] = t.Failure.ErrorCode
		resp["processing_time_seconds"] = t.Failure.ProcessingTimeSeconds
	case t.Status == StatusStarted && t.StartedAt != nil:
		resp["processing_time_seconds"] = roundSeconds(time.Since(*t.StartedAt))
	}
	resp["metadata"] = metadata
	return resp
}

// parseOptions reads the optional knobs from the form, falling back to the query string.
func parseOptions(c *gin.Context) (Options, error) {
	var opts Options
	value := func(key string) string {
		if v, ok := c.GetPostForm(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(c.Query(key))
	}
	list := func(key string) []string {
		raw, ok := c.GetPostFormArray(key)
		if !ok {
			raw = c.QueryArray(key)
		}
		var out []string
		for _, r := range raw {
			for _, part := range strings.Split(r, ",") {
				if p := strings.TrimSpace(part); p != "" {
					out = append(out, p)
				}
			}
		}
		return out
	}

	if v := value("similarity_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Options{}, fmt.Errorf("similarity_threshold must be a number")
		}
		opts.Threshold = &f
	}
	if v := value("max_jobs"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("max_jobs must be an integer")
		}
		opts.MaxJobs = &n
	}
	for key, dst := range map[string]**int{"min_salary": &opts.Filters.MinSalary, "max_salary": &opts.Filters.MaxSalary} {
		if v := value(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return Options{}, fmt.Errorf("%s must be an integer", key)
			}
			*dst = &n
		}
	}
	if v := value("remote_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Options{}, fmt.Errorf("remote_only must be a boolean")
		}
		opts.Filters.RemoteOnly = b
	}
	opts.Filters.PreferredLocations = list("preferred_locations")
	opts.Filters.JobTypes = list("job_types")
	return opts, nil
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Round(10*time.Millisecond).Milliseconds()) / 1000.0
}
