package filters

import (
	"go.uber.org/zap"

	"resume-matcher/internal/scoring"
	"resume-matcher/internal/sources"
)

// Criteria narrows scored matches. The zero value keeps everything.
type Criteria struct {
	MinSalary          *int     `json:"min_salary,omitempty"`
	MaxSalary          *int     `json:"max_salary,omitempty"`
	PreferredLocations []string `json:"preferred_locations,omitempty"`
	JobTypes           []string `json:"job_types,omitempty"`
	RemoteOnly         bool     `json:"remote_only"`
}

// Active reports whether any constraint is set.
func (c Criteria) Active() bool {
	return c.MinSalary != nil || c.MaxSalary != nil || len(c.PreferredLocations) > 0 ||
		len(c.JobTypes) > 0 || c.RemoteOnly
}

// Step describes one filtering stage.
type Step struct {
	Name    string
	Initial int
	Dropped int
	Left    int
}

// Stats counts survivors after each stage.
type Stats struct {
	OriginalCount       int `json:"original_count"`
	AfterLocationFilter int `json:"after_location_filter"`
	AfterJobTypeFilter  int `json:"after_job_type_filter"`
	AfterSalaryFilter   int `json:"after_salary_filter"`
	FinalCount          int `json:"final_count"`
}

type stage struct {
	name   string
	active bool
	keep   func(sources.JobPosting) bool
}

// Apply runs the location, job-type and salary stages in that order.
// Inactive stages pass everything through.
func Apply(matches []scoring.ScoredMatch, c Criteria, logger *zap.Logger) ([]scoring.ScoredMatch, Stats) {
	if logger == nil {
		logger = zap.NewNop()
	}
	stages := []stage{
		{
			name:   "location",
			active: len(c.PreferredLocations) > 0 || c.RemoteOnly,
			keep: func(p sources.JobPosting) bool {
				return locationPasses(p, c.PreferredLocations, c.RemoteOnly)
			},
		},
		{
			name:   "job_type",
			active: len(c.JobTypes) > 0,
			keep:   func(p sources.JobPosting) bool { return jobTypePasses(p, c.JobTypes) },
		},
		{
			name:   "salary",
			active: c.MinSalary != nil || c.MaxSalary != nil,
			keep: func(p sources.JobPosting) bool {
				lo, hi := ParseSalary(p.SalaryRange)
				return salaryPasses(lo, hi, c.MinSalary, c.MaxSalary)
			},
		},
	}

	stats := Stats{OriginalCount: len(matches)}
	counts := make([]int, len(stages))
	for i, st := range stages {
		var step Step
		matches, step = run(st, matches)
		counts[i] = step.Left
		if st.active {
			logger.Debug("filter step",
				zap.String("name", step.Name),
				zap.Int("initial", step.Initial),
				zap.Int("dropped", step.Dropped),
				zap.Int("left", step.Left),
			)
		}
	}
	stats.AfterLocationFilter = counts[0]
	stats.AfterJobTypeFilter = counts[1]
	stats.AfterSalaryFilter = counts[2]
	stats.FinalCount = len(matches)
	return matches, stats
}

func run(st stage, in []scoring.ScoredMatch) ([]scoring.ScoredMatch, Step) {
	step := Step{Name: st.name, Initial: len(in)}
	if !st.active {
		step.Left = len(in)
		return in, step
	}
	out := make([]scoring.ScoredMatch, 0, len(in))
	for _, m := range in {
		if st.keep(m.JobPosting) {
			out = append(out, m)
		}
	}
	step.Left = len(out)
	step.Dropped = step.Initial - step.Left
	return out, step
}
