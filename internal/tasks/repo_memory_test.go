package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"resume-matcher/internal/pipeline"
)

func newTask(id string, created time.Time) Task {
	return Task{
		ID:         id,
		UserID:     "user-1",
		Filename:   "resume.pdf",
		MediaType:  "application/pdf",
		StorageKey: "key/" + id,
		Status:     StatusPending,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestMemoryRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := repo.Create(ctx, newTask("t1", base)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.MarkStarted(ctx, "t1", base.Add(time.Second)); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}
	// redelivery keeps the first start time
	if err := repo.MarkStarted(ctx, "t1", base.Add(time.Minute)); err != nil {
		t.Fatalf("MarkStarted again: %v", err)
	}
	if err := repo.UpdateProgress(ctx, "t1", pipeline.StageSearching, 50); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	task, err := repo.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if task.Status != StatusStarted || task.Stage != pipeline.StageSearching || task.Percentage != 50 {
		t.Fatalf("unexpected running task: %+v", task)
	}
	if task.StartedAt == nil || !task.StartedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected started_at: %v", task.StartedAt)
	}

	// a restarted run reports lower percentages; the stored progress holds
	if err := repo.UpdateProgress(ctx, "t1", pipeline.StageExtracting, 10); err != nil {
		t.Fatalf("UpdateProgress lower: %v", err)
	}
	task, _ = repo.GetByID(ctx, "t1")
	if task.Stage != pipeline.StageSearching || task.Percentage != 50 {
		t.Fatalf("progress went backwards: %+v", task)
	}

	done := base.Add(2 * time.Second)
	if err := repo.Complete(ctx, "t1", pipeline.Result{MatchedJobsCount: 3}, done); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	task, _ = repo.GetByID(ctx, "t1")
	if task.Status != StatusSuccess || task.Percentage != 100 || task.Stage != pipeline.StageDone {
		t.Fatalf("unexpected completed task: %+v", task)
	}
	if task.Result == nil || task.Result.MatchedJobsCount != 3 {
		t.Fatalf("expected result to be stored, got %+v", task.Result)
	}
}

func TestMemoryRepoTerminalTasksRejectTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	now := time.Now().UTC()
	_ = repo.Create(ctx, newTask("t1", now))

	if err := repo.Revoke(ctx, "t1", now); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	checks := map[string]error{
		"MarkStarted":    repo.MarkStarted(ctx, "t1", now),
		"UpdateProgress": repo.UpdateProgress(ctx, "t1", pipeline.StageScoring, 70),
		"Complete":       repo.Complete(ctx, "t1", pipeline.Result{}, now),
		"Fail":           repo.Fail(ctx, "t1", pipeline.Failure{ErrorCode: pipeline.CodeInternal}, now),
		"Revoke":         repo.Revoke(ctx, "t1", now),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrTerminal) {
			t.Fatalf("%s: expected ErrTerminal, got %v", name, err)
		}
	}
	task, _ := repo.GetByID(ctx, "t1")
	if task.Status != StatusRevoked {
		t.Fatalf("expected REVOKED to stick, got %s", task.Status)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Revoke(ctx, "missing", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on revoke, got %v", err)
	}
}

func TestMemoryRepoListActiveAndCleanup(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = repo.Create(ctx, newTask("c", base.Add(2*time.Second)))
	_ = repo.Create(ctx, newTask("a", base))
	_ = repo.Create(ctx, newTask("b", base.Add(time.Second)))
	_ = repo.Create(ctx, newTask("old", base))
	_ = repo.Fail(ctx, "old", pipeline.Failure{ErrorCode: pipeline.CodeEmptyContent}, base.Add(time.Minute))

	active, err := repo.ListActive(ctx, 0)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 3 || active[0].ID != "a" || active[1].ID != "b" || active[2].ID != "c" {
		t.Fatalf("unexpected active order: %+v", active)
	}
	limited, _ := repo.ListActive(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	n, err := repo.DeleteFinishedBefore(ctx, base.Add(30*time.Second))
	if err != nil || n != 0 {
		t.Fatalf("expected nothing purged yet, got %d, %v", n, err)
	}
	n, err = repo.DeleteFinishedBefore(ctx, base.Add(2*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("expected one purge, got %d, %v", n, err)
	}
	if _, err := repo.GetByID(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected purged task to be gone, got %v", err)
	}
}
