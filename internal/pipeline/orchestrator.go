package pipeline

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"resume-matcher/internal/extract"
	"resume-matcher/internal/filters"
	"resume-matcher/internal/scoring"
	"resume-matcher/internal/shared/metrics"
	"resume-matcher/internal/skills"
	"resume-matcher/internal/sources"
)

const (
	DefaultMaxSearchTerms = 5

	noJobsMessage = "No jobs found matching your skills"
)

// Searcher retrieves postings for a set of search terms. Close releases
// whatever the searcher pooled during the run.
type Searcher interface {
	Search(ctx context.Context, terms []string, location string) ([]sources.JobPosting, error)
	Close()
}

// SearcherFactory builds a fresh Searcher for one run.
type SearcherFactory func() Searcher

// Settings are the run defaults; Input may override threshold and max jobs.
type Settings struct {
	Threshold      float64
	MaxJobs        int
	MaxFeatures    int
	MaxSearchTerms int
}

func DefaultSettings() Settings {
	return Settings{
		Threshold:      scoring.DefaultThreshold,
		MaxJobs:        scoring.DefaultMaxJobs,
		MaxFeatures:    scoring.DefaultMaxFeatures,
		MaxSearchTerms: DefaultMaxSearchTerms,
	}
}

// Orchestrator runs extraction, attribute analysis, retrieval, scoring and
// filtering in sequence. It keeps no state between runs: every run gets its
// own Searcher and closes it before returning.
type Orchestrator struct {
	settings    Settings
	extractor   *skills.Extractor
	newSearcher SearcherFactory
	logger      *zap.Logger
	now         func() time.Time
}

func New(settings Settings, extractor *skills.Extractor, newSearcher SearcherFactory, logger *zap.Logger) *Orchestrator {
	def := DefaultSettings()
	if settings.Threshold < 0 || settings.Threshold > 1 {
		settings.Threshold = def.Threshold
	}
	if settings.MaxJobs <= 0 {
		settings.MaxJobs = def.MaxJobs
	}
	if settings.MaxFeatures <= 0 {
		settings.MaxFeatures = def.MaxFeatures
	}
	if settings.MaxSearchTerms <= 0 {
		settings.MaxSearchTerms = def.MaxSearchTerms
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		settings:    settings,
		extractor:   extractor,
		newSearcher: newSearcher,
		logger:      logger,
		now:         time.Now,
	}
}

type run struct {
	o       *Orchestrator
	ctx     context.Context
	sink    ProgressSink
	started time.Time
	logger  *zap.Logger
	stage   Stage
}

// Run executes one pipeline. A non-nil error is always a *Error carrying the
// stage and elapsed time; the Result is only meaningful when err is nil.
func (o *Orchestrator) Run(ctx context.Context, in Input, sink ProgressSink) (Result, error) {
	if sink == nil {
		sink = discardSink{}
	}
	r := &run{o: o, ctx: ctx, sink: sink, started: o.now(), logger: o.logger.With(zap.String("filename", in.Document.Filename))}

	var searcher Searcher
	if o.newSearcher != nil {
		searcher = o.newSearcher()
	}
	if searcher != nil {
		defer searcher.Close()
	}

	if err := in.Validate(); err != nil {
		return Result{}, r.fail(err)
	}

	// extracting
	if err := r.enter(StageExtracting); err != nil {
		return Result{}, err
	}
	text, err := extract.Text(ctx, in.Document)
	if err != nil {
		return Result{}, r.fail(err)
	}
	r.logger.Info("pipeline.text_extracted", zap.Int("chars", len(text)))

	// analyzing
	if err := r.enter(StageAnalyzing); err != nil {
		return Result{}, err
	}
	if o.extractor == nil {
		return Result{}, r.fail(skills.ErrEngineUnavailable)
	}
	profile, err := o.extractor.Extract(text)
	if err != nil {
		return Result{}, r.fail(err)
	}
	r.logger.Info("pipeline.skills_extracted", zap.Int("technical_skills", len(profile.TechnicalSkills)))

	result := Result{
		ExtractedSkills: profile,
		MatchedJobs:     []scoring.ScoredMatch{},
		FileInfo: FileInfo{
			Filename:  in.Document.Filename,
			MediaType: in.Document.MediaType,
			SizeBytes: len(in.Document.Data),
		},
		UserID: in.UserID,
	}

	// searching
	if err := r.enter(StageSearching); err != nil {
		return Result{}, err
	}
	terms := profile.TechnicalSkills
	if len(terms) > o.settings.MaxSearchTerms {
		terms = terms[:o.settings.MaxSearchTerms]
	}
	result.SearchQueries = append([]string{}, terms...)

	var postings []sources.JobPosting
	if searcher != nil {
		postings, err = searcher.Search(ctx, terms, locationHint(in.Filters))
		if err != nil {
			return Result{}, r.fail(err)
		}
	}
	result.TotalJobsFound = len(postings)
	if len(postings) == 0 {
		r.logger.Info("pipeline.no_postings", zap.Strings("terms", terms))
		result.Message = noJobsMessage
		return r.finish(result), nil
	}

	// scoring
	if err := r.enter(StageScoring); err != nil {
		return Result{}, err
	}
	maxJobs := o.settings.MaxJobs
	if in.MaxJobs != nil {
		maxJobs = *in.MaxJobs
	}
	threshold := o.settings.Threshold
	if in.Threshold != nil {
		threshold = *in.Threshold
	}
	// With filters active every match above the threshold is scored so that
	// filtering does not eat into the max_jobs budget.
	scoreCap := maxJobs
	if in.Filters.Active() {
		scoreCap = len(postings)
	}
	scorer := scoring.New(scoring.Settings{Threshold: threshold, MaxJobs: scoreCap, MaxFeatures: o.settings.MaxFeatures}, r.logger)
	matches := scorer.Score(text, postings, profile.TechnicalSkills)

	// finalizing
	if err := r.enter(StageFinalizing); err != nil {
		return Result{}, err
	}
	if in.Filters.Active() {
		var stats filters.Stats
		matches, stats = filters.Apply(matches, in.Filters, r.logger)
		result.FilterStats = &stats
		if len(matches) > maxJobs {
			matches = matches[:maxJobs]
		}
	}
	result.MatchedJobs = matches
	result.MatchedJobsCount = len(matches)
	for _, m := range matches {
		if m.Synthetic {
			result.SyntheticCount++
		}
	}
	return r.finish(result), nil
}

// enter checks for cancellation and publishes the stage transition.
func (r *run) enter(stage Stage) error {
	if err := r.ctx.Err(); err != nil {
		return r.fail(err)
	}
	r.stage = stage
	metrics.IncStage(string(stage), "entered")
	r.sink.Report(stage, stage.Percent())
	r.logger.Debug("pipeline.stage", zap.String("stage", string(stage)), zap.Int("percentage", stage.Percent()))
	return nil
}

func (r *run) finish(result Result) Result {
	result.ProcessingTimeSeconds = r.elapsed()
	r.sink.Report(StageDone, StageDone.Percent())
	r.logger.Info("pipeline.completed",
		zap.Int("total_jobs_found", result.TotalJobsFound),
		zap.Int("matched_jobs_count", result.MatchedJobsCount),
		zap.Float64("processing_time_seconds", result.ProcessingTimeSeconds),
	)
	return result
}

func (r *run) fail(err error) error {
	perr := &Error{Stage: r.stage, Err: err, Elapsed: r.elapsed()}
	if r.stage != "" {
		metrics.IncStage(string(r.stage), "failed")
	}
	level := r.logger.Error
	if errors.Is(err, context.Canceled) {
		level = r.logger.Warn
	}
	level("pipeline.failed",
		zap.String("stage", string(r.stage)),
		zap.String("error_code", perr.Code()),
		zap.Float64("processing_time_seconds", perr.Elapsed),
		zap.Error(err),
	)
	return perr
}

func (r *run) elapsed() float64 {
	secs := r.o.now().Sub(r.started).Seconds()
	return math.Round(secs*100) / 100
}

// locationHint forwards a single preferred location to the sources.
func locationHint(c filters.Criteria) string {
	if len(c.PreferredLocations) == 1 {
		return c.PreferredLocations[0]
	}
	return ""
}
