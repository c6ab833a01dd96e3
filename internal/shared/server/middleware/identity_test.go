package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIdentityAndRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var gotUser, gotReq string
	router := gin.New()
	router.Use(RequestID(), Identity())
	router.GET("/x", func(c *gin.Context) {
		gotUser = UserIDFromContext(c)
		gotReq = RequestIDFromContext(c)
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name     string
		user     string
		reqID    string
		wantUser string
		keepReq  bool
	}{
		{name: "anonymous", wantUser: ""},
		{name: "user header", user: " alice ", wantUser: "alice", reqID: "abc-123", keepReq: true},
		{name: "oversized user", user: strings.Repeat("x", 200), wantUser: ""},
		{name: "control chars", user: "bob\x00", wantUser: "", reqID: strings.Repeat("r", 300)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.user != "" {
				req.Header.Set("X-User-Id", tc.user)
			}
			if tc.reqID != "" {
				req.Header.Set("X-Request-Id", tc.reqID)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if gotUser != tc.wantUser {
				t.Fatalf("user = %q, want %q", gotUser, tc.wantUser)
			}
			if gotReq == "" || resp.Header().Get("X-Request-Id") != gotReq {
				t.Fatalf("request id not echoed: ctx=%q header=%q", gotReq, resp.Header().Get("X-Request-Id"))
			}
			if tc.keepReq && gotReq != tc.reqID {
				t.Fatalf("expected inbound request id to be kept, got %q", gotReq)
			}
			if !tc.keepReq && gotReq == tc.reqID {
				t.Fatalf("expected generated request id")
			}
		})
	}
}

func TestRecoveryReturnsStandardError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"code":"internal_error"`) {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}
