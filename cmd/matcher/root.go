package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"resume-matcher/internal/shared/config"
	"resume-matcher/internal/shared/telemetry"
)

const app = "resume-matcher"

// envBindings maps viper keys onto the variables config.Load reads.
var envBindings = map[string]string{
	"similarity-threshold": "SIMILARITY_THRESHOLD",
	"max-jobs":             "MAX_MATCHED_JOBS",
	"mock":                 "USE_MOCK_JOBS",
	"sources-file":         "SOURCES_FILE",
	"log-level":            "LOG_LEVEL",
	"log-format":           "LOG_FORMAT",
}

type cli struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:          "matcher",
		Short:        "Match a résumé against live job postings from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is "+app+".yaml in the current directory)")
	flags.Float64("similarity-threshold", 0, "minimum similarity score in [0,1]")
	flags.Int("max-jobs", 0, "maximum number of matches returned")
	flags.Bool("mock", false, "use generated postings only")
	flags.String("sources-file", "", "YAML file overriding source toggles")
	flags.String("log-level", "warn", "log level (debug|info|warn|error)")
	flags.String("log-format", "console", "log format (json|console)")
	for key := range envBindings {
		_ = c.v.BindPFlag(key, flags.Lookup(key))
	}

	root.AddCommand(newMatchCmd(c), newSourcesCmd(c))
	return root
}

func (c *cli) initConfig() error {
	for key, env := range envBindings {
		if err := c.v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		c.v.AddConfigPath(".")
		c.v.SetConfigName(app)
		c.v.SetConfigType("yaml")
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return telemetry.Configure(c.v.GetString("log-level"), c.v.GetString("log-format"))
}

// config layers flags, env and the config file over config.Load defaults.
func (c *cli) config() (config.Config, error) {
	cfg := config.Load()
	if c.v.IsSet("similarity-threshold") {
		cfg.Matching.SimilarityThreshold = c.v.GetFloat64("similarity-threshold")
	}
	if c.v.IsSet("max-jobs") {
		cfg.Matching.MaxMatchedJobs = c.v.GetInt("max-jobs")
	}
	if c.v.IsSet("mock") {
		cfg.Scraping.UseMockJobs = c.v.GetBool("mock")
	}
	if path := strings.TrimSpace(c.v.GetString("sources-file")); path != "" && path != cfg.SourcesFile {
		if err := config.ApplySourcesFile(path, &cfg); err != nil {
			return cfg, err
		}
		cfg.SourcesFile = path
	}
	return cfg, nil
}

func (c *cli) logger() *zap.Logger {
	return telemetry.Logger()
}
