package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resume-matcher/internal/shared/config"
	"resume-matcher/internal/shared/metrics"
	"resume-matcher/internal/shared/server/middleware"
	"resume-matcher/internal/shared/server/respond"
)

const serviceName = "resume-matcher"

// RouteRegistrar attaches a handler's routes under /api/v1.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// HealthFunc adds component details to the health payload.
type HealthFunc func() gin.H

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, health HealthFunc, handlers ...RouteRegistrar) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Identity(),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: middleware.GroupByRoute(map[string]string{
				"POST /api/v1/match-jobs":      "SUBMIT",
				"GET /api/v1/tasks/:id/status": "POLLING",
			}),
			Rules: map[string]middleware.RateLimitRule{
				"SUBMIT":  {Rate: 0.5, Burst: 5},
				"POLLING": {Rate: 5, Burst: 20},
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		payload := gin.H{
			"status":    "healthy",
			"service":   serviceName,
			"env":       cfg.Env,
			"timestamp": time.Now().UTC(),
		}
		if health != nil {
			for k, v := range health() {
				payload[k] = v
			}
		}
		respond.JSON(c, http.StatusOK, payload)
	})
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}
	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
