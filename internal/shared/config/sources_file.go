package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SourcesFile is the optional YAML document named by SOURCES_FILE.
// Unset keys keep their environment values.
type SourcesFile struct {
	Sources struct {
		RemoteOK       sourceToggle `yaml:"remoteok"`
		WeWorkRemotely sourceToggle `yaml:"weworkremotely"`
		Fallback       sourceToggle `yaml:"fallback"`
		Adzuna         sourceToggle `yaml:"adzuna"`
		Greenhouse     sourceToggle `yaml:"greenhouse"`
	} `yaml:"sources"`
	Scraping struct {
		MinDelay       string `yaml:"min_delay"`
		MaxDelay       string `yaml:"max_delay"`
		Timeout        string `yaml:"timeout"`
		MaxConcurrency int    `yaml:"max_concurrency"`
		UseMockJobs    *bool  `yaml:"use_mock_jobs"`
	} `yaml:"scraping"`
}

type sourceToggle struct {
	Enabled *bool    `yaml:"enabled"`
	Country string   `yaml:"country"`
	Boards  []string `yaml:"boards"`
}

// ApplySourcesFile overlays the YAML file at path onto cfg.
func ApplySourcesFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sources file: %w", err)
	}
	var f SourcesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse sources file: %w", err)
	}

	s := &cfg.Scraping
	setBool(&s.EnableRemoteOK, f.Sources.RemoteOK.Enabled)
	setBool(&s.EnableWeWorkRemotely, f.Sources.WeWorkRemotely.Enabled)
	setBool(&s.EnableEnhancedFallback, f.Sources.Fallback.Enabled)
	setBool(&s.EnableAdzuna, f.Sources.Adzuna.Enabled)
	setBool(&s.EnableGreenhouse, f.Sources.Greenhouse.Enabled)
	setBool(&s.UseMockJobs, f.Scraping.UseMockJobs)
	if f.Sources.Adzuna.Country != "" {
		s.AdzunaCountry = f.Sources.Adzuna.Country
	}
	if len(f.Sources.Greenhouse.Boards) > 0 {
		s.GreenhouseBoards = append([]string(nil), f.Sources.Greenhouse.Boards...)
	}
	if f.Scraping.MaxConcurrency > 0 {
		s.MaxConcurrency = f.Scraping.MaxConcurrency
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{f.Scraping.MinDelay, &s.MinDelay},
		{f.Scraping.MaxDelay, &s.MaxDelay},
		{f.Scraping.Timeout, &s.Timeout},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", d.raw, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
