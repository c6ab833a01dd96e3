package filters

import (
	"strings"

	"resume-matcher/internal/sources"
)

var jobTypeSynonyms = []struct {
	jobType  string
	keywords []string
}{
	{"full-time", []string{"full time", "full-time", "permanent", "regular"}},
	{"part-time", []string{"part time", "part-time"}},
	{"contract", []string{"contract", "contractor", "temporary", "temp"}},
	{"freelance", []string{"freelance", "freelancer"}},
	{"internship", []string{"intern", "internship", "co-op", "coop"}},
	{"remote", []string{"remote", "work from home", "wfh", "virtual", "telecommute"}},
	{"hybrid", []string{"hybrid", "flexible", "partially remote"}},
}

// InferJobTypes returns the canonical job types whose keywords appear in text.
func InferJobTypes(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, syn := range jobTypeSynonyms {
		if containsAny(lower, syn.keywords...) {
			out = append(out, syn.jobType)
		}
	}
	return out
}

func jobTypePasses(p sources.JobPosting, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	norm := make([]string, 0, len(wanted))
	for _, w := range wanted {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			norm = append(norm, w)
		}
	}
	if len(norm) == 0 {
		return true
	}

	jobType := strings.ToLower(strings.TrimSpace(p.JobType))
	if jobType == "" {
		for _, inferred := range InferJobTypes(p.Description + " " + p.Title) {
			for _, w := range norm {
				if inferred == w {
					return true
				}
			}
		}
		return false
	}
	for _, w := range norm {
		if jobType == w || strings.Contains(jobType, w) {
			return true
		}
	}
	return false
}
