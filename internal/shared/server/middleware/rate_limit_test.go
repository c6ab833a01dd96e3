package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(now *time.Time) *gin.Engine {
	limiter := NewRateLimiter(func() time.Time { return *now })
	r := gin.New()
	r.Use(Identity())
	r.Use(RateLimit(RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor: GroupByRoute(map[string]string{
			"GET /api/v1/tasks/:id/status": "POLLING",
			"POST /api/v1/match-jobs":      "SUBMIT",
		}),
		Limiter: limiter,
		Rules: map[string]RateLimitRule{
			"SUBMIT":  {Rate: 1, Burst: 2},
			"POLLING": {Rate: 5, Burst: 10},
		},
	}))
	r.GET("/api/v1/tasks/:id/status", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.POST("/api/v1/match-jobs", func(c *gin.Context) { c.JSON(http.StatusAccepted, gin.H{"ok": true}) })
	r.GET("/api/v1/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return r
}

func send(r *gin.Engine, method, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestRateLimitPollingHigherThanSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := newLimitedRouter(&now)

	for i := 0; i < 3; i++ {
		if resp := send(r, http.MethodGet, "/api/v1/tasks/t-1/status", "u1"); resp.Code != http.StatusOK {
			t.Fatalf("polling request %d expected 200, got %d", i+1, resp.Code)
		}
	}
	for i := 0; i < 2; i++ {
		if resp := send(r, http.MethodPost, "/api/v1/match-jobs", "u1"); resp.Code != http.StatusAccepted {
			t.Fatalf("submit request %d expected 202, got %d", i+1, resp.Code)
		}
	}
	if resp := send(r, http.MethodPost, "/api/v1/match-jobs", "u1"); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("submit request 3 expected 429, got %d", resp.Code)
	}
	// Another principal has its own bucket.
	if resp := send(r, http.MethodPost, "/api/v1/match-jobs", "u2"); resp.Code != http.StatusAccepted {
		t.Fatalf("other user expected 202, got %d", resp.Code)
	}
	// Routes without a rule are never limited.
	for i := 0; i < 20; i++ {
		if resp := send(r, http.MethodGet, "/api/v1/health", "u1"); resp.Code != http.StatusOK {
			t.Fatalf("health expected 200, got %d", resp.Code)
		}
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := newLimitedRouter(&now)

	send(r, http.MethodPost, "/api/v1/match-jobs", "")
	send(r, http.MethodPost, "/api/v1/match-jobs", "")
	resp := send(r, http.MethodPost, "/api/v1/match-jobs", "")
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", resp.Header().Get("Retry-After"))
	}

	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected code rate_limited, got %q", payload.Error.Code)
	}
	if _, ok := payload.Error.Details["retry_after_ms"]; !ok {
		t.Fatalf("expected retry_after_ms in details")
	}

	// One second later a token has been refilled.
	now = now.Add(time.Second)
	if resp := send(r, http.MethodPost, "/api/v1/match-jobs", ""); resp.Code != http.StatusAccepted {
		t.Fatalf("expected refill after 1s, got %d", resp.Code)
	}
}

func TestRateLimiterRejectionDoesNotConsume(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 2, Burst: 1}

	if ok, _ := l.Allow("ip|POLLING", rule); !ok {
		t.Fatalf("first call should pass")
	}
	for i := 0; i < 3; i++ {
		ok, wait := l.Allow("ip|POLLING", rule)
		if ok {
			t.Fatalf("call %d should be limited", i+2)
		}
		if wait != 500*time.Millisecond {
			t.Fatalf("expected 500ms wait, got %s", wait)
		}
	}
	now = now.Add(500 * time.Millisecond)
	if ok, _ := l.Allow("ip|POLLING", rule); !ok {
		t.Fatalf("rejected calls must not push the next token further out")
	}
}

func TestRateLimiterDropsIdleBuckets(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 1}

	l.Allow("a|SUBMIT", rule)
	l.Allow("b|SUBMIT", rule)
	if l.Len() != 2 {
		t.Fatalf("expected 2 buckets, got %d", l.Len())
	}
	now = now.Add(defaultBucketIdleTTL + time.Second)
	l.Allow("c|SUBMIT", rule)
	if l.Len() != 1 {
		t.Fatalf("idle buckets should be swept, got %d", l.Len())
	}
}
