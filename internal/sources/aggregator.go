package sources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"resume-matcher/internal/shared/metrics"
)

const (
	DefaultJobsPerTerm    = 2
	DefaultSourceTimeout  = 30 * time.Second
	DefaultMaxConcurrency = 4
)

// Settings bounds one aggregated search.
type Settings struct {
	JobsPerTerm    int // total postings wanted per search term
	SourceTimeout  time.Duration
	MaxConcurrency int
}

func (s Settings) withDefaults() Settings {
	if s.JobsPerTerm <= 0 {
		s.JobsPerTerm = DefaultJobsPerTerm
	}
	if s.SourceTimeout <= 0 {
		s.SourceTimeout = DefaultSourceTimeout
	}
	if s.MaxConcurrency <= 0 {
		s.MaxConcurrency = DefaultMaxConcurrency
	}
	return s
}

// Aggregator fans a search out over every plugin and term, isolates
// per-source failures and deduplicates the merged postings.
type Aggregator struct {
	settings Settings
	plugins  []SourcePlugin
	fallback SourcePlugin
	fetcher  *Fetcher
	logger   *zap.Logger
}

// NewAggregator builds an aggregator over plugins in the given order. fallback
// may be nil; fetcher is the shared fetch path released by Close and may be nil.
func NewAggregator(settings Settings, plugins []SourcePlugin, fallback SourcePlugin, fetcher *Fetcher, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		settings: settings.withDefaults(),
		plugins:  append([]SourcePlugin(nil), plugins...),
		fallback: fallback,
		fetcher:  fetcher,
		logger:   logger,
	}
}

// Sources lists the plugin names in query order.
func (a *Aggregator) Sources() []string {
	names := make([]string, 0, len(a.plugins))
	for _, p := range a.plugins {
		names = append(names, p.Name())
	}
	return names
}

// Search returns deduplicated postings for terms. Source failures are logged
// and skipped; the only error is cancellation of ctx.
func (a *Aggregator) Search(ctx context.Context, terms []string, location string) ([]JobPosting, error) {
	terms = cleanTerms(terms)
	total := a.settings.JobsPerTerm * len(terms)
	if len(terms) == 0 {
		return []JobPosting{}, nil
	}

	perSource := 0
	if len(a.plugins) > 0 {
		perSource = (a.settings.JobsPerTerm + len(a.plugins) - 1) / len(a.plugins)
	}

	// One slot per (term, plugin) keeps merge order independent of timing.
	slots := make([][]JobPosting, len(terms)*len(a.plugins))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.settings.MaxConcurrency)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ti, term := range terms {
			for pi, plugin := range a.plugins {
				slot := ti*len(a.plugins) + pi
				g.Go(func() error {
					slots[slot] = a.query(gctx, plugin, term, location, perSource)
					return nil
				})
			}
		}
		_ = g.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("sources.search_abandoned", zap.Error(ctx.Err()))
		return nil, ctx.Err()
	}

	d := newDeduper()
	for _, postings := range slots {
		for _, p := range postings {
			d.add(p)
		}
	}

	if a.fallback != nil && d.len()*2 < total {
		a.topUp(ctx, d, terms, location, total)
	}

	a.logger.Info("sources.search_completed",
		zap.Strings("terms", terms),
		zap.Int("postings", d.len()),
		zap.Int("requested", total),
		zap.Int("synthetic", d.synthetic),
	)
	return d.items, nil
}

func (a *Aggregator) query(ctx context.Context, plugin SourcePlugin, term, location string, limit int) (out []JobPosting) {
	name := plugin.Name()
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, a.settings.SourceTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			a.fail(ctx, &SourceError{Source: name, Term: term, Kind: KindUnavailable, Err: fmt.Errorf("panic: %v", r)}, start)
			out = nil
		}
	}()

	postings, err := plugin.Search(sctx, term, location, limit)
	if err != nil {
		kind := KindUnavailable
		if isTimeout(err) && ctx.Err() == nil {
			kind = KindTimeout
		}
		a.fail(ctx, &SourceError{Source: name, Term: term, Kind: kind, Err: err}, start)
		return nil
	}
	if len(postings) > limit {
		postings = postings[:limit]
	}
	for i := range postings {
		if postings[i].Source == "" {
			postings[i].Source = name
		}
	}

	elapsed := time.Since(start)
	metrics.IncSourceRequest(name, "ok")
	metrics.AddPostings(name, len(postings))
	metrics.ObserveSourceDurationMs(float64(elapsed.Milliseconds()))
	a.logger.Debug("source.completed",
		zap.String("source", name),
		zap.String("term", term),
		zap.Int("postings", len(postings)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)
	return postings
}

func (a *Aggregator) fail(ctx context.Context, serr *SourceError, start time.Time) {
	elapsed := time.Since(start)
	if ctx.Err() == nil {
		metrics.IncSourceRequest(serr.Source, string(serr.Kind))
	}
	metrics.ObserveSourceDurationMs(float64(elapsed.Milliseconds()))
	a.logger.Warn("source.failed",
		zap.String("source", serr.Source),
		zap.String("term", serr.Term),
		zap.String("kind", string(serr.Kind)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.Error(serr.Err),
	)
}

// topUp fills the result set with fallback postings, spreading the shortfall
// over the terms in order.
func (a *Aggregator) topUp(ctx context.Context, d *deduper, terms []string, location string, total int) {
	need := total - d.len()
	per := (need + len(terms) - 1) / len(terms)
	for _, term := range terms {
		if d.len() >= total {
			return
		}
		postings := a.query(ctx, a.fallback, term, location, 2*per)
		added := 0
		for _, p := range postings {
			if d.len() >= total || added >= per {
				break
			}
			if d.add(p) {
				added++
			}
		}
	}
}

// Close releases pooled connections. Safe to call when nothing was fetched.
func (a *Aggregator) Close() {
	if a == nil {
		return
	}
	a.fetcher.Close()
}

type deduper struct {
	seen      map[string]struct{}
	items     []JobPosting
	synthetic int
}

func newDeduper() *deduper {
	return &deduper{seen: make(map[string]struct{}), items: []JobPosting{}}
}

func (d *deduper) add(p JobPosting) bool {
	key := dedupKey(p)
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	d.items = append(d.items, p)
	if p.Synthetic {
		d.synthetic++
	}
	return true
}

func (d *deduper) len() int { return len(d.items) }

func dedupKey(p JobPosting) string {
	return normalizeKey(p.Title) + "\x00" + normalizeKey(p.Company)
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
