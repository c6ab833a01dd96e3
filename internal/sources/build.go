package sources

import (
	"go.uber.org/zap"
)

// Options selects and configures the plugins of an Aggregator.
type Options struct {
	Settings Settings
	Fetch    FetcherOptions

	UseMockJobs      bool
	RemoteOK         bool
	WeWorkRemotely   bool
	Adzuna           bool
	Greenhouse       bool
	EnhancedFallback bool

	AdzunaConfig     AdzunaConfig
	GreenhouseBoards []string
}

// Build wires the enabled plugins in a fixed order behind one shared Fetcher.
// With UseMockJobs only the template generator is queried.
func Build(opts Options, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	fetcher := NewFetcher(opts.Fetch, logger.Named("fetch"))

	var plugins []SourcePlugin
	if opts.UseMockJobs {
		plugins = append(plugins, NewMockGenerator())
	} else {
		if opts.RemoteOK {
			plugins = append(plugins, NewRemoteOK(fetcher, ""))
		}
		if opts.WeWorkRemotely {
			plugins = append(plugins, NewWeWorkRemotely(fetcher, ""))
		}
		if opts.Adzuna {
			az, err := NewAdzuna(fetcher, opts.AdzunaConfig)
			if err != nil {
				logger.Warn("source.disabled", zap.String("source", NameAdzuna), zap.Error(err))
			} else {
				plugins = append(plugins, az)
			}
		}
		if opts.Greenhouse {
			if len(opts.GreenhouseBoards) == 0 {
				logger.Warn("source.disabled", zap.String("source", NameGreenhouse), zap.String("reason", "no boards configured"))
			} else {
				plugins = append(plugins, NewGreenhouse(fetcher, opts.GreenhouseBoards, ""))
			}
		}
	}

	var fallback SourcePlugin
	if opts.EnhancedFallback {
		fallback = NewEnhancedFallback()
	}
	return NewAggregator(opts.Settings, plugins, fallback, fetcher, logger.Named("sources"))
}
