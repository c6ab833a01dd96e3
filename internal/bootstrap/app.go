package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resume-matcher/internal/pipeline"
	"resume-matcher/internal/queue"
	"resume-matcher/internal/shared/config"
	"resume-matcher/internal/shared/server"
	"resume-matcher/internal/shared/storage/db"
	"resume-matcher/internal/shared/storage/object"
	localstore "resume-matcher/internal/shared/storage/object/local"
	s3store "resume-matcher/internal/shared/storage/object/s3"
	"resume-matcher/internal/shared/telemetry"
	"resume-matcher/internal/skills"
	"resume-matcher/internal/sources"
	"resume-matcher/internal/tasks"
	"resume-matcher/internal/workerproc"
)

const localQueueSize = 256

// App holds shared dependencies.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Store       object.ObjectStore
	Queue       queue.Client
	Repo        tasks.Repo
	SourceNames []string
	Pipeline    *pipeline.Orchestrator
	Tasks       *tasks.Service
	TaskHandler *tasks.Handler

	// LocalQueue is set when no SQS queue is configured; RunLocalWorker
	// consumes it in-process.
	LocalQueue *queue.MemoryQueue
}

// Build prepares every dependency and the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	logger := telemetry.Logger()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(ctx, cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB, Store: store}
	if sqlDB != nil {
		app.Repo = &tasks.SQLRepo{DB: sqlDB}
	} else {
		app.Repo = tasks.NewMemoryRepo()
	}

	if cfg.SQSQueueURL != "" {
		sqsClient, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			closeDB(sqlDB)
			return nil, err
		}
		app.Queue = sqsClient
	} else {
		app.LocalQueue = queue.NewMemoryQueue(localQueueSize, logger.Named("queue"))
		app.Queue = app.LocalQueue
	}

	app.Pipeline = BuildPipeline(cfg, logger)
	app.SourceNames = EnabledSources(cfg)
	app.Tasks = tasks.NewService(app.Repo, store, app.Queue, app.Pipeline)
	app.TaskHandler = tasks.NewHandler(app.Tasks, tasks.UploadPolicy{
		MaxBytes:     cfg.MaxFileSizeBytes(),
		AllowedTypes: cfg.AllowedFileTypes,
	})
	app.Router = server.NewRouter(cfg, app.health, app.TaskHandler)
	return app, nil
}

// BuildPipeline wires extraction, retrieval and scoring from cfg. Each run
// builds its own aggregator from the same options and closes it when done.
func BuildPipeline(cfg config.Config, logger *zap.Logger) *pipeline.Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := SourceOptions(cfg)
	newSearcher := func() pipeline.Searcher {
		return sources.Build(opts, logger)
	}
	extractor := skills.New(skills.Settings{
		MaxSkills: cfg.Matching.MaxSkillsExtract,
		MaxTitles: cfg.Matching.MaxJobTitlesExtract,
	}, skills.ProductRecognizer{})
	return pipeline.New(PipelineSettings(cfg), extractor, newSearcher, logger.Named("pipeline"))
}

// EnabledSources lists the plugin names a run would query, in order.
func EnabledSources(cfg config.Config) []string {
	agg := sources.Build(SourceOptions(cfg), nil)
	defer agg.Close()
	return agg.Sources()
}

// PipelineSettings maps the matching config onto run defaults.
func PipelineSettings(cfg config.Config) pipeline.Settings {
	settings := pipeline.DefaultSettings()
	settings.Threshold = cfg.Matching.SimilarityThreshold
	if cfg.Matching.MaxMatchedJobs > 0 {
		settings.MaxJobs = cfg.Matching.MaxMatchedJobs
	}
	return settings
}

// SourceOptions maps the scraping config onto plugin selection and fetch limits.
func SourceOptions(cfg config.Config) sources.Options {
	s := cfg.Scraping
	return sources.Options{
		Settings: sources.Settings{
			JobsPerTerm:    cfg.Matching.MaxJobsPerSkill,
			SourceTimeout:  s.Timeout,
			MaxConcurrency: s.MaxConcurrency,
		},
		Fetch: sources.FetcherOptions{
			MinDelay:   s.MinDelay,
			MaxDelay:   s.MaxDelay,
			MaxRetries: s.MaxRetries,
			Timeout:    s.Timeout,
			UserAgent:  s.UserAgent,
		},
		UseMockJobs:      s.UseMockJobs,
		RemoteOK:         s.EnableRemoteOK,
		WeWorkRemotely:   s.EnableWeWorkRemotely,
		Adzuna:           s.EnableAdzuna,
		Greenhouse:       s.EnableGreenhouse,
		EnhancedFallback: s.EnableEnhancedFallback,
		AdzunaConfig: sources.AdzunaConfig{
			AppID:   s.AdzunaAppID,
			AppKey:  s.AdzunaAppKey,
			Country: s.AdzunaCountry,
		},
		GreenhouseBoards: s.GreenhouseBoards,
	}
}

// RunLocalWorker consumes the in-process queue until ctx is done or the queue
// is closed. It returns immediately when an external queue is configured.
func (a *App) RunLocalWorker(ctx context.Context, concurrency int) {
	if a.LocalQueue == nil {
		return
	}
	telemetry.Info("worker.local_started", map[string]any{"concurrency": concurrency})
	a.LocalQueue.Run(ctx, concurrency, workerproc.QueueHandler(a.Tasks))
}

// Close releases pooled resources.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.LocalQueue != nil {
		a.LocalQueue.Close()
	}
	closeDB(a.DB)
}

func (a *App) health() gin.H {
	storage := "memory"
	if a.DB != nil {
		storage = a.Config.DBDriver
	}
	queueKind := "sqs"
	if a.LocalQueue != nil {
		queueKind = "local"
	}
	return gin.H{
		"sources":      a.SourceNames,
		"task_storage": storage,
		"queue":        queueKind,
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Info("bootstrap.memory_repo", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DBDriver, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	// sqlite is the single-node mode; nobody else runs its migrations.
	if cfg.DBDriver == db.DriverSQLite {
		if err := db.RunMigrations(ctx, sqlDB, cfg.DBDriver); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func closeDB(sqlDB *sql.DB) {
	if sqlDB == nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		telemetry.Warn("db.close_failed", map[string]any{"error": err.Error()})
	}
}
