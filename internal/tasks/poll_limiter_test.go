package tasks

import (
	"testing"
	"time"
)

func TestPollLimiterWindowPerClientAndTask(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newPollLimiter(500*time.Millisecond, func() time.Time { return now })

	if !l.Allow("1.2.3.4", "t1") {
		t.Fatalf("first poll should pass")
	}
	if l.Allow("1.2.3.4", "t1") {
		t.Fatalf("second poll inside the window should be rejected")
	}
	if !l.Allow("1.2.3.4", "t2") || !l.Allow("5.6.7.8", "t1") {
		t.Fatalf("other tasks and clients are tracked separately")
	}
	now = now.Add(500 * time.Millisecond)
	if !l.Allow("1.2.3.4", "t1") {
		t.Fatalf("poll after the window should pass")
	}
	if got := l.RetryAfterSeconds(); got != 1 {
		t.Fatalf("expected Retry-After of 1s, got %d", got)
	}
}

func TestPollLimiterSweepsStaleKeys(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newPollLimiter(time.Second, func() time.Time { return now })
	for i := 0; i < pollLimitSweep; i++ {
		l.Allow("client", string(rune('a'+i%26))+time.Duration(i).String())
	}
	now = now.Add(2 * time.Second)
	l.Allow("client", "fresh")
	if len(l.lastHit) != 1 {
		t.Fatalf("expected stale keys swept, %d remain", len(l.lastHit))
	}
}
