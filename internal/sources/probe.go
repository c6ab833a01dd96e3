package sources

import (
	"context"
	"time"
)

// ProbeResult is one source's answer to a diagnostic query.
type ProbeResult struct {
	Source   string        `json:"source"`
	Status   string        `json:"status"` // ok, empty, unavailable or timeout
	Count    int           `json:"count"`
	Sample   *JobPosting   `json:"sample,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Probe queries every plugin, then the fallback, one after another and
// reports each outcome instead of merging.
func (a *Aggregator) Probe(ctx context.Context, term, location string, limit int) []ProbeResult {
	if limit <= 0 {
		limit = 1
	}
	plugins := append([]SourcePlugin(nil), a.plugins...)
	if a.fallback != nil {
		plugins = append(plugins, a.fallback)
	}

	out := make([]ProbeResult, 0, len(plugins))
	for _, plugin := range plugins {
		if ctx.Err() != nil {
			break
		}
		res := ProbeResult{Source: plugin.Name()}
		start := time.Now()
		sctx, cancel := context.WithTimeout(ctx, a.settings.SourceTimeout)
		postings, err := plugin.Search(sctx, term, location, limit)
		cancel()
		res.Duration = time.Since(start)

		switch {
		case err != nil:
			res.Status = string(KindUnavailable)
			if isTimeout(err) && ctx.Err() == nil {
				res.Status = string(KindTimeout)
			}
			res.Error = err.Error()
		case len(postings) == 0:
			res.Status = "empty"
		default:
			res.Status = "ok"
			res.Count = len(postings)
			sample := postings[0]
			res.Sample = &sample
		}
		out = append(out, res)
	}
	return out
}
