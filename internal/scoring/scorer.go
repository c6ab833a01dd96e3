package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"resume-matcher/internal/sources"
)

const (
	DefaultThreshold   = 0.1
	DefaultMaxJobs     = 5
	DefaultMaxFeatures = 1000

	skillBonusStep = 0.05
	skillBonusCap  = 0.25
)

// Settings tunes a Scorer.
type Settings struct {
	Threshold   float64
	MaxJobs     int
	MaxFeatures int
}

// ScoredMatch is a posting with its similarity score and a presentation-length description.
type ScoredMatch struct {
	sources.JobPosting
	SimilarityScore float64 `json:"similarity_score"`
}

// Scorer ranks postings against résumé text.
type Scorer struct {
	settings Settings
	logger   *zap.Logger
}

func New(settings Settings, logger *zap.Logger) *Scorer {
	if settings.Threshold < 0 || settings.Threshold > 1 {
		settings.Threshold = DefaultThreshold
	}
	if settings.MaxJobs <= 0 {
		settings.MaxJobs = DefaultMaxJobs
	}
	if settings.MaxFeatures <= 0 {
		settings.MaxFeatures = DefaultMaxFeatures
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{settings: settings, logger: logger}
}

// Score returns the postings at or above the threshold, best first, at most MaxJobs.
// Ties keep retrieval order.
func (s *Scorer) Score(resume string, postings []sources.JobPosting, skills []string) []ScoredMatch {
	if len(postings) == 0 {
		return []ScoredMatch{}
	}

	scores := s.similarities(resume, postings)
	if len(skills) > 0 {
		applySkillBonus(scores, postings, skills)
	}

	out := make([]ScoredMatch, 0, len(postings))
	for i, p := range postings {
		if scores[i] < s.settings.Threshold {
			continue
		}
		p.Description = Truncate(p.Description, DescriptionLimit)
		out = append(out, ScoredMatch{JobPosting: p, SimilarityScore: round3(scores[i])})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SimilarityScore > out[j].SimilarityScore
	})
	if len(out) > s.settings.MaxJobs {
		out = out[:s.settings.MaxJobs]
	}
	return out
}

// similarities returns cosine scores in [0,1]. A failure inside the vector
// space degrades to all zeros.
func (s *Scorer) similarities(resume string, postings []sources.JobPosting) (scores []float64) {
	scores = make([]float64, len(postings))
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scoring.similarity_failed", zap.String("error", fmt.Sprint(r)))
			scores = make([]float64, len(postings))
		}
	}()

	docs := make([]string, 0, len(postings)+1)
	docs = append(docs, resume)
	for _, p := range postings {
		docs = append(docs, p.Description)
	}
	vecs := vectorizer{
		minDF:       2,
		maxDFRatio:  0.95,
		sublinearTF: true,
		maxFeatures: s.settings.MaxFeatures,
	}.fitTransform(docs)

	for i := range postings {
		scores[i] = clamp01(cosine(vecs[0], vecs[i+1]))
	}
	return scores
}

func applySkillBonus(scores []float64, postings []sources.JobPosting, skills []string) {
	lowered := make([]string, 0, len(skills))
	seen := map[string]struct{}{}
	for _, sk := range skills {
		l := strings.ToLower(strings.TrimSpace(sk))
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		lowered = append(lowered, l)
	}

	for i, p := range postings {
		text := strings.ToLower(p.Title + " " + p.Description + " " + p.Company)
		hits := 0
		for _, sk := range lowered {
			if strings.Contains(text, sk) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		bonus := math.Min(float64(hits)*skillBonusStep, skillBonusCap)
		scores[i] = clamp01(scores[i] + bonus)
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
