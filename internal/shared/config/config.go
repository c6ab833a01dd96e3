package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"resume-matcher/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port             string
	Env              string
	CORSAllowOrigin  []string
	DatabaseURL      string
	DBDriver         string
	ObjectStoreType  string
	LocalStoreDir    string
	AWSRegion        string
	S3Bucket         string
	S3Prefix         string
	SQSQueueURL      string
	LogLevel         string
	LogFormat        string
	MaxFileSizeMB    int
	AllowedFileTypes []string
	SourcesFile      string
	Matching         Matching
	Scraping         Scraping
}

// Matching carries the extraction and scoring knobs.
type Matching struct {
	SimilarityThreshold float64
	MaxMatchedJobs      int
	MaxJobsPerSkill     int
	MaxSkillsExtract    int
	MaxJobTitlesExtract int
}

// Scraping carries job-source toggles and fetch limits.
type Scraping struct {
	Timeout                time.Duration
	MinDelay               time.Duration
	MaxDelay               time.Duration
	MaxRetries             int
	MaxConcurrency         int
	UserAgent              string
	UseMockJobs            bool
	EnableRemoteOK         bool
	EnableWeWorkRemotely   bool
	EnableAdzuna           bool
	EnableGreenhouse       bool
	EnableEnhancedFallback bool
	AdzunaAppID            string
	AdzunaAppKey           string
	AdzunaCountry          string
	GreenhouseBoards       []string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		Env:              env,
		CORSAllowOrigin:  splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:      dbURL,
		DBDriver:         normalizeDriver(getEnv("DB_DRIVER", "postgres")),
		ObjectStoreType:  normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:    getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:        getEnv("AWS_REGION", ""),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Prefix:         getEnv("S3_PREFIX", ""),
		SQSQueueURL:      strings.TrimSpace(getEnv("RM_SQS_QUEUE_URL", "")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		MaxFileSizeMB:    getEnvInt("MAX_FILE_SIZE_MB", 10),
		AllowedFileTypes: splitAndTrim(getEnv("ALLOWED_FILE_TYPES", "application/pdf,text/plain")),
		SourcesFile:      getEnv("SOURCES_FILE", ""),
		Matching: Matching{
			SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.1),
			MaxMatchedJobs:      getEnvInt("MAX_MATCHED_JOBS", 5),
			MaxJobsPerSkill:     getEnvInt("MAX_JOBS_PER_SKILL", 2),
			MaxSkillsExtract:    getEnvInt("MAX_SKILLS_EXTRACT", 20),
			MaxJobTitlesExtract: getEnvInt("MAX_JOB_TITLES_EXTRACT", 10),
		},
		Scraping: Scraping{
			Timeout:                time.Duration(getEnvInt("JOB_SCRAPING_TIMEOUT", 30)) * time.Second,
			MinDelay:               seconds(getEnvFloat("SCRAPING_MIN_DELAY", 1.0)),
			MaxDelay:               seconds(getEnvFloat("SCRAPING_MAX_DELAY", 3.0)),
			MaxRetries:             getEnvInt("SCRAPING_MAX_RETRIES", 2),
			MaxConcurrency:         getEnvInt("SCRAPING_MAX_CONCURRENCY", 4),
			UserAgent:              getEnv("SCRAPING_USER_AGENT", "Mozilla/5.0 (compatible; ResumeMatcher/1.0)"),
			UseMockJobs:            getEnvBool("USE_MOCK_JOBS", false),
			EnableRemoteOK:         getEnvBool("ENABLE_REMOTEOK", true),
			EnableWeWorkRemotely:   getEnvBool("ENABLE_WEWORKREMOTELY", true),
			EnableAdzuna:           getEnvBool("ENABLE_ADZUNA", false),
			EnableGreenhouse:       getEnvBool("ENABLE_GREENHOUSE", false),
			EnableEnhancedFallback: getEnvBool("ENABLE_ENHANCED_FALLBACK", true),
			AdzunaAppID:            getEnv("ADZUNA_APP_ID", ""),
			AdzunaAppKey:           getEnv("ADZUNA_APP_KEY", ""),
			AdzunaCountry:          getEnv("ADZUNA_COUNTRY", "us"),
			GreenhouseBoards:       splitAndTrim(getEnv("GREENHOUSE_BOARDS", "")),
		},
	}

	if cfg.SourcesFile != "" {
		if err := ApplySourcesFile(cfg.SourcesFile, &cfg); err != nil {
			telemetry.Error("config.sources_file_failed", map[string]any{
				"path":  cfg.SourcesFile,
				"error": err,
			})
		}
	}
	return cfg
}

// MaxFileSizeBytes returns the upload limit in bytes.
func (c Config) MaxFileSizeBytes() int64 {
	if c.MaxFileSizeMB <= 0 {
		return 10 << 20
	}
	return int64(c.MaxFileSizeMB) << 20
}

// IsDevLike reports whether missing infrastructure may fall back to in-memory stand-ins.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
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

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return val
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return val
}

func seconds(v float64) time.Duration {
	if v < 0 {
		v = 0
	}
	return time.Duration(v * float64(time.Second))
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeDriver(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return "postgres"
	}
}
