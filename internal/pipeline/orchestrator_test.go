package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-matcher/internal/extract"
	"resume-matcher/internal/filters"
	"resume-matcher/internal/skills"
	"resume-matcher/internal/sources"
)

const resumeText = "Python, FastAPI, 5 years experience"

type progressEvent struct {
	stage Stage
	pct   int
}

type recordingSink struct {
	events []progressEvent
}

func (s *recordingSink) Report(stage Stage, pct int) {
	s.events = append(s.events, progressEvent{stage, pct})
}

func (s *recordingSink) stages() []Stage {
	out := make([]Stage, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.stage)
	}
	return out
}

type fakeSearcher struct {
	postings []sources.JobPosting
	err      error
	onSearch func()
	terms    []string
	location string
	closed   int
}

func (f *fakeSearcher) Close() { f.closed++ }

func searcherOf(s Searcher) SearcherFactory {
	return func() Searcher { return s }
}

func (f *fakeSearcher) Search(_ context.Context, terms []string, location string) ([]sources.JobPosting, error) {
	f.terms = terms
	f.location = location
	if f.onSearch != nil {
		f.onSearch()
	}
	return f.postings, f.err
}

type boardPlugin struct {
	name     string
	postings []sources.JobPosting
}

func (b boardPlugin) Name() string { return b.name }

func (b boardPlugin) Search(context.Context, string, string, int) ([]sources.JobPosting, error) {
	return b.postings, nil
}

func textDoc(body string) extract.Document {
	return extract.Document{Data: []byte(body), MediaType: extract.MediaText, Filename: "resume.txt"}
}

func newOrchestrator(searcher Searcher) *Orchestrator {
	return New(DefaultSettings(), skills.New(skills.DefaultSettings(), skills.ProductRecognizer{}), searcherOf(searcher), nil)
}

func posting(title, company, salary, desc string) sources.JobPosting {
	return sources.JobPosting{Title: title, Company: company, SalaryRange: salary, Description: desc, Location: "Remote"}
}

func TestRunEndToEnd(t *testing.T) {
	boardA := boardPlugin{name: "board-a", postings: []sources.JobPosting{
		posting("Python Backend Engineer", "Acme", "$120,000 - $150,000", "Build FastAPI services in Python with years of experience."),
		posting("Data Engineer", "Beta", "$60,000 - $80,000", "Python pipelines and SQL warehouses."),
		posting("API Developer", "Gamma", "$90,000 - $110,000", "Design FastAPI endpoints, Python required."),
	}}
	boardB := boardPlugin{name: "board-b", postings: []sources.JobPosting{
		posting("Platform Engineer", "Delta", "Competitive", "Python tooling for platform teams."),
		posting("Senior Python Developer", "Epsilon", "$50/hour", "Python and FastAPI experience, 5 years."),
		posting("Django Developer", "Zeta", "Up to $95,000", "Python Django web apps."),
	}}
	agg := sources.NewAggregator(sources.Settings{JobsPerTerm: 6}, []sources.SourcePlugin{boardA, boardB}, nil, nil, nil)
	defer agg.Close()

	threshold := 0.05
	minSalary := 100000
	sink := &recordingSink{}
	res, err := newOrchestrator(agg).Run(context.Background(), Input{
		Document:  textDoc(resumeText),
		Threshold: &threshold,
		Filters:   filters.Criteria{MinSalary: &minSalary},
	}, sink)
	require.NoError(t, err)

	assert.Contains(t, res.ExtractedSkills.TechnicalSkills, "python")
	require.NotNil(t, res.ExtractedSkills.ExperienceYears)
	assert.Equal(t, 5, *res.ExtractedSkills.ExperienceYears)
	assert.Equal(t, 6, res.TotalJobsFound)

	require.NotNil(t, res.FilterStats)
	assert.Equal(t, res.MatchedJobsCount, res.FilterStats.FinalCount)
	assert.LessOrEqual(t, res.MatchedJobsCount, 5)
	assert.Equal(t, len(res.MatchedJobs), res.MatchedJobsCount)
	require.NotEmpty(t, res.MatchedJobs)

	for i, m := range res.MatchedJobs {
		_, max := filters.ParseSalary(m.SalaryRange)
		require.NotNil(t, max, m.Title)
		assert.GreaterOrEqual(t, *max, minSalary, m.Title)
		assert.GreaterOrEqual(t, m.SimilarityScore, 0.0)
		assert.LessOrEqual(t, m.SimilarityScore, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, res.MatchedJobs[i-1].SimilarityScore, m.SimilarityScore)
		}
		assert.NotContains(t, []string{"Data Engineer", "Platform Engineer", "Django Developer"}, m.Title)
	}

	assert.Equal(t, []Stage{StageExtracting, StageAnalyzing, StageSearching, StageScoring, StageFinalizing, StageDone}, sink.stages())
	assert.Equal(t, FileInfo{Filename: "resume.txt", MediaType: extract.MediaText, SizeBytes: len(resumeText)}, res.FileInfo)
}

func TestRunProgressIsMonotonic(t *testing.T) {
	searcher := &fakeSearcher{postings: []sources.JobPosting{
		posting("Python Engineer", "Acme", "", "Python and FastAPI"),
	}}
	sink := &recordingSink{}
	_, err := newOrchestrator(searcher).Run(context.Background(), Input{Document: textDoc(resumeText)}, sink)
	require.NoError(t, err)

	want := []int{10, 25, 50, 75, 90, 100}
	require.Len(t, sink.events, len(want))
	for i, e := range sink.events {
		assert.Equal(t, want[i], e.pct)
	}
}

func TestRunSearchesTopFiveSkills(t *testing.T) {
	searcher := &fakeSearcher{}
	resume := "Python, Java, JavaScript, TypeScript, Ruby, Rust and Docker"

	res, err := newOrchestrator(searcher).Run(context.Background(), Input{
		Document: textDoc(resume),
		Filters:  filters.Criteria{PreferredLocations: []string{"Austin, TX"}},
	}, nil)
	require.NoError(t, err)

	require.Len(t, searcher.terms, DefaultMaxSearchTerms)
	assert.Equal(t, res.ExtractedSkills.TechnicalSkills[:5], searcher.terms)
	assert.Equal(t, searcher.terms, res.SearchQueries)
	assert.Equal(t, "Austin, TX", searcher.location)
}

func TestRunNoPostingsIsSuccess(t *testing.T) {
	sink := &recordingSink{}
	res, err := newOrchestrator(&fakeSearcher{}).Run(context.Background(), Input{Document: textDoc(resumeText)}, sink)
	require.NoError(t, err)

	assert.NotNil(t, res.MatchedJobs)
	assert.Empty(t, res.MatchedJobs)
	assert.Zero(t, res.TotalJobsFound)
	assert.Zero(t, res.MatchedJobsCount)
	assert.Equal(t, noJobsMessage, res.Message)
	assert.Equal(t, []Stage{StageExtracting, StageAnalyzing, StageSearching, StageDone}, sink.stages())
}

func TestRunNoSkillsIsFatal(t *testing.T) {
	sink := &recordingSink{}
	_, err := newOrchestrator(&fakeSearcher{}).Run(context.Background(), Input{
		Document: textDoc("Enthusiastic people person with great leadership."),
	}, sink)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageAnalyzing, perr.Stage)
	assert.Equal(t, CodeNoSkillsFound, perr.Code())
	assert.ErrorIs(t, err, skills.ErrNoSkillsFound)

	f := perr.Failure()
	assert.Equal(t, CodeNoSkillsFound, f.ErrorCode)
	assert.NotEmpty(t, f.Error)
	assert.GreaterOrEqual(t, f.ProcessingTimeSeconds, 0.0)
	assert.Equal(t, []Stage{StageExtracting, StageAnalyzing}, sink.stages())
}

func TestRunExtractionFailures(t *testing.T) {
	cases := []struct {
		name string
		doc  extract.Document
		code string
	}{
		{"unsupported", extract.Document{Data: []byte("GIF89a"), MediaType: "image/gif", Filename: "a.gif"}, CodeUnsupportedMediaType},
		{"corrupt pdf", extract.Document{Data: []byte("%PDF-1.4 garbage"), MediaType: extract.MediaPDF, Filename: "a.pdf"}, CodeCorruptDocument},
		{"blank text", extract.Document{Data: []byte("   \n  "), MediaType: extract.MediaText, Filename: "a.txt"}, CodeEmptyContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newOrchestrator(&fakeSearcher{}).Run(context.Background(), Input{Document: tc.doc}, nil)
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, StageExtracting, perr.Stage)
			assert.Equal(t, tc.code, perr.Code())
		})
	}
}

func TestRunRejectsInvalidInput(t *testing.T) {
	bad := 1.5
	_, err := newOrchestrator(&fakeSearcher{}).Run(context.Background(), Input{Document: textDoc(resumeText), Threshold: &bad}, nil)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeInvalidInput, perr.Code())

	zero := 0
	_, err = newOrchestrator(&fakeSearcher{}).Run(context.Background(), Input{Document: textDoc(resumeText), MaxJobs: &zero}, nil)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeInvalidInput, perr.Code())
}

func TestRunMissingExtractorIsUnavailable(t *testing.T) {
	o := New(DefaultSettings(), nil, searcherOf(&fakeSearcher{}), nil)
	_, err := o.Run(context.Background(), Input{Document: textDoc(resumeText)}, nil)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeEngineUnavailable, perr.Code())
}

func TestRunObservesCancellationAtStageBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	searcher := &fakeSearcher{
		postings: []sources.JobPosting{posting("Python Engineer", "Acme", "", "Python")},
		onSearch: cancel,
	}
	sink := &recordingSink{}

	_, err := newOrchestrator(searcher).Run(ctx, Input{Document: textDoc(resumeText)}, sink)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeCancelled, perr.Code())
	assert.Equal(t, StageSearching, perr.Stage)
	assert.NotContains(t, sink.stages(), StageScoring)
}

func TestRunSearchErrorFails(t *testing.T) {
	searcher := &fakeSearcher{err: fmt.Errorf("search abandoned: %w", context.DeadlineExceeded)}
	_, err := newOrchestrator(searcher).Run(context.Background(), Input{Document: textDoc(resumeText)}, nil)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeCancelled, perr.Code())
}

func TestRunClosesSearcherOnEveryPath(t *testing.T) {
	cases := []struct {
		name     string
		searcher *fakeSearcher
		doc      extract.Document
		cancel   bool
		wantErr  bool
	}{
		{name: "success", searcher: &fakeSearcher{postings: []sources.JobPosting{posting("Python Engineer", "Acme", "", "Python FastAPI")}}, doc: textDoc(resumeText)},
		{name: "no postings", searcher: &fakeSearcher{}, doc: textDoc(resumeText)},
		{name: "search failure", searcher: &fakeSearcher{err: errors.New("upstream gone")}, doc: textDoc(resumeText), wantErr: true},
		{name: "extraction failure", searcher: &fakeSearcher{}, doc: extract.Document{Data: []byte("   "), MediaType: extract.MediaText, Filename: "a.txt"}, wantErr: true},
		{name: "cancelled", searcher: &fakeSearcher{postings: []sources.JobPosting{posting("Python Engineer", "Acme", "", "Python")}}, doc: textDoc(resumeText), cancel: true, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tc.cancel {
				tc.searcher.onSearch = cancel
			}
			_, err := newOrchestrator(tc.searcher).Run(ctx, Input{Document: tc.doc}, nil)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, 1, tc.searcher.closed)
		})
	}
}

func TestRunBuildsSearcherPerRun(t *testing.T) {
	var built []*fakeSearcher
	o := New(DefaultSettings(), skills.New(skills.DefaultSettings(), skills.ProductRecognizer{}), func() Searcher {
		s := &fakeSearcher{}
		built = append(built, s)
		return s
	}, nil)

	for i := 0; i < 2; i++ {
		_, err := o.Run(context.Background(), Input{Document: textDoc(resumeText)}, nil)
		require.NoError(t, err)
	}
	require.Len(t, built, 2)
	assert.NotSame(t, built[0], built[1])
	for _, s := range built {
		assert.Equal(t, 1, s.closed)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	var postings []sources.JobPosting
	for i := 0; i < 8; i++ {
		postings = append(postings, posting(
			fmt.Sprintf("Python Role %d", i), fmt.Sprintf("Company %d", i), "",
			fmt.Sprintf("Python FastAPI services, team %d, experience with APIs and years of delivery.", i),
		))
	}
	o := newOrchestrator(&fakeSearcher{postings: postings})
	in := Input{Document: textDoc(resumeText)}

	first, err := o.Run(context.Background(), in, nil)
	require.NoError(t, err)
	second, err := o.Run(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, first.MatchedJobs, second.MatchedJobs)
}

func TestRunRespectsMaxJobsAndCountsSynthetic(t *testing.T) {
	var postings []sources.JobPosting
	for i := 0; i < 6; i++ {
		p := posting(fmt.Sprintf("Python Dev %d", i), "Acme", "", "Python and FastAPI work")
		p.Synthetic = i%2 == 0
		postings = append(postings, p)
	}
	maxJobs := 3
	res, err := newOrchestrator(&fakeSearcher{postings: postings}).Run(context.Background(), Input{Document: textDoc(resumeText), MaxJobs: &maxJobs}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, res.MatchedJobsCount)
	assert.LessOrEqual(t, res.MatchedJobsCount, res.TotalJobsFound)
	synthetic := 0
	for _, m := range res.MatchedJobs {
		if m.Synthetic {
			synthetic++
		}
	}
	assert.Equal(t, synthetic, res.SyntheticCount)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, CodeCancelled, Classify(context.Canceled))
	assert.Equal(t, CodeInternal, Classify(errors.New("boom")))
	assert.Equal(t, CodeInternal, Classify(nil))
	assert.Equal(t, CodeEmptyContent, Classify(fmt.Errorf("wrap: %w", extract.ErrEmptyContent)))
}
