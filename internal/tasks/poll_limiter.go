package tasks

import (
	"sync"
	"time"
)

const (
	pollLimitWindow = 500 * time.Millisecond
	pollLimitSweep  = 1024
)

// pollLimiter rejects status polls for the same task from the same client
// that arrive closer together than window.
type pollLimiter struct {
	mu      sync.Mutex
	lastHit map[string]time.Time
	now     func() time.Time
	window  time.Duration
}

func newPollLimiter(window time.Duration, now func() time.Time) *pollLimiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = pollLimitWindow
	}
	return &pollLimiter{
		lastHit: make(map[string]time.Time),
		now:     now,
		window:  window,
	}
}

func (l *pollLimiter) Allow(client, taskID string) bool {
	if l == nil {
		return true
	}
	key := client + "|" + taskID
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastHit[key]; ok && now.Sub(last) < l.window {
		return false
	}
	if len(l.lastHit) >= pollLimitSweep {
		for k, t := range l.lastHit {
			if now.Sub(t) >= l.window {
				delete(l.lastHit, k)
			}
		}
	}
	l.lastHit[key] = now
	return true
}

func (l *pollLimiter) RetryAfterSeconds() int {
	window := pollLimitWindow
	if l != nil {
		window = l.window
	}
	secs := int((window + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
