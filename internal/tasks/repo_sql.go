package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"resume-matcher/internal/pipeline"
)

// SQLRepo implements Repo on database/sql. The queries stay within the
// subset shared by Postgres (pgx) and SQLite (modernc).
type SQLRepo struct {
	DB *sql.DB
}

const taskColumns = `id, user_id, request_id, filename, media_type, size_bytes, storage_key, options,
       status, stage, percentage, result, failure, error_code,
       created_at, updated_at, started_at, completed_at`

const activeStatuses = `('PENDING', 'STARTED')`

// Create inserts a new task.
func (r *SQLRepo) Create(ctx context.Context, task Task) error {
	const query = `
INSERT INTO tasks (
	id, user_id, request_id, filename, media_type, size_bytes, storage_key, options,
	status, stage, percentage, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	options, err := json.Marshal(task.Options)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		task.ID,
		task.UserID,
		task.RequestID,
		task.Filename,
		task.MediaType,
		task.SizeBytes,
		task.StorageKey,
		string(options),
		string(task.Status),
		string(task.Stage),
		task.Percentage,
		task.CreatedAt,
		task.CreatedAt,
	)
	return err
}

// GetByID returns a task by ID.
func (r *SQLRepo) GetByID(ctx context.Context, taskID string) (Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.DB.QueryRowContext(ctx, query, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return task, err
}

func (r *SQLRepo) MarkStarted(ctx context.Context, taskID string, at time.Time) error {
	const query = `
UPDATE tasks
SET status = 'STARTED',
    started_at = COALESCE(started_at, $1),
    updated_at = $1
WHERE id = $2 AND status IN ` + activeStatuses
	return r.exec(ctx, taskID, query, at, taskID)
}

// UpdateProgress records stage and percentage unless the stored percentage is
// already higher, which happens when a redelivered run starts over.
func (r *SQLRepo) UpdateProgress(ctx context.Context, taskID string, stage pipeline.Stage, percentage int) error {
	const query = `
UPDATE tasks
SET stage = $1,
    percentage = $2,
    updated_at = $3
WHERE id = $4 AND percentage <= $2 AND status IN ` + activeStatuses
	return r.exec(ctx, taskID, query, string(stage), percentage, time.Now().UTC(), taskID)
}

func (r *SQLRepo) Complete(ctx context.Context, taskID string, result pipeline.Result, at time.Time) error {
	const query = `
UPDATE tasks
SET status = 'SUCCESS',
    stage = $1,
    percentage = 100,
    result = $2,
    completed_at = $3,
    updated_at = $3
WHERE id = $4 AND status IN ` + activeStatuses
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.exec(ctx, taskID, query, string(pipeline.StageDone), string(payload), at, taskID)
}

func (r *SQLRepo) Fail(ctx context.Context, taskID string, failure pipeline.Failure, at time.Time) error {
	const query = `
UPDATE tasks
SET status = 'FAILURE',
    failure = $1,
    error_code = $2,
    completed_at = $3,
    updated_at = $3
WHERE id = $4 AND status IN ` + activeStatuses
	payload, err := json.Marshal(failure)
	if err != nil {
		return err
	}
	return r.exec(ctx, taskID, query, string(payload), failure.ErrorCode, at, taskID)
}

func (r *SQLRepo) Revoke(ctx context.Context, taskID string, at time.Time) error {
	const query = `
UPDATE tasks
SET status = 'REVOKED',
    completed_at = $1,
    updated_at = $1
WHERE id = $2 AND status IN ` + activeStatuses
	return r.exec(ctx, taskID, query, at, taskID)
}

// ListActive lists non-terminal tasks, oldest first.
func (r *SQLRepo) ListActive(ctx context.Context, limit int) ([]Task, error) {
	query := `SELECT ` + taskColumns + `
FROM tasks
WHERE status IN ` + activeStatuses + `
ORDER BY created_at ASC, id ASC
LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// DeleteFinishedBefore purges terminal tasks completed before cutoff.
func (r *SQLRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
DELETE FROM tasks
WHERE status IN ('SUCCESS', 'FAILURE', 'REVOKED') AND completed_at < $1`
	res, err := r.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// exec runs a guarded transition and tells a missing task from a finished one.
// An active task the guard skipped is not an error.
func (r *SQLRepo) exec(ctx context.Context, taskID, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var status string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = $1`, taskID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return err
	case !Status(status).Terminal():
		return nil
	default:
		return ErrTerminal
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var (
		t           Task
		status      string
		stage       sql.NullString
		options     sql.NullString
		result      sql.NullString
		failure     sql.NullString
		errorCode   sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.RequestID,
		&t.Filename,
		&t.MediaType,
		&t.SizeBytes,
		&t.StorageKey,
		&options,
		&status,
		&stage,
		&t.Percentage,
		&result,
		&failure,
		&errorCode,
		&t.CreatedAt,
		&t.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	if stage.Valid {
		t.Stage = pipeline.Stage(stage.String)
	}
	if options.Valid && options.String != "" {
		_ = json.Unmarshal([]byte(options.String), &t.Options)
	}
	if result.Valid && result.String != "" {
		var res pipeline.Result
		if err := json.Unmarshal([]byte(result.String), &res); err == nil {
			t.Result = &res
		}
	}
	if failure.Valid && failure.String != "" {
		var f pipeline.Failure
		if err := json.Unmarshal([]byte(failure.String), &f); err == nil {
			t.Failure = &f
		}
	} else if errorCode.Valid && errorCode.String != "" {
		t.Failure = &pipeline.Failure{ErrorCode: errorCode.String}
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return t, nil
}

var _ Repo = (*SQLRepo)(nil)
