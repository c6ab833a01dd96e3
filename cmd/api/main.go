package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"resume-matcher/internal/bootstrap"
	"resume-matcher/internal/shared/config"
	"resume-matcher/internal/shared/server"
	"resume-matcher/internal/shared/telemetry"
	"resume-matcher/internal/tasks"
)

const (
	defaultRetentionHours      = 24
	defaultCleanupMinutes      = 60
	defaultLocalConcurrency    = 2
	defaultShutdownTimeoutSecs = 30
)

func main() {
	cfg := config.Load()
	if err := telemetry.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Printf("logger config: %v", err)
	}
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	var wg sync.WaitGroup
	// Workers outlive the HTTP server so queued tasks drain after shutdown starts.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	wg.Add(2)
	go func() {
		defer wg.Done()
		app.RunLocalWorker(workerCtx, envInt("LOCAL_WORKER_CONCURRENCY", defaultLocalConcurrency))
	}()
	go func() {
		defer wg.Done()
		runCleanup(ctx, app.Tasks,
			time.Duration(envInt("CLEANUP_INTERVAL_MINUTES", defaultCleanupMinutes))*time.Minute,
			time.Duration(envInt("TASK_RETENTION_HOURS", defaultRetentionHours))*time.Hour)
	}()

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		telemetry.Info("api.started", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownTimeout := time.Duration(envInt("RM_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSecs)) * time.Second
	telemetry.Info("api.shutdown", map[string]any{"timeout": shutdownTimeout.String()})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Error("api.shutdown_failed", map[string]any{"error": err.Error()})
	}
	if app.LocalQueue != nil {
		app.LocalQueue.Close()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		stopWorkers()
		telemetry.Warn("api.shutdown_timeout", map[string]any{"reason": "in-flight tasks abandoned"})
	}
}

func runCleanup(ctx context.Context, svc *tasks.Service, every, retention time.Duration) {
	if every <= 0 || retention <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Cleanup(ctx, retention); err != nil && ctx.Err() == nil {
				telemetry.Error("task.cleanup_failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
