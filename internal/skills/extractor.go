package skills

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrEngineUnavailable = errors.New("extraction engine unavailable")
	ErrNoSkillsFound     = errors.New("no technical skills found")
)

const (
	maxSoftSkills = 10
	maxLanguages  = 10
	maxFrameworks = 10
	maxTools      = 15
	maxExperience = 50
)

// Settings caps the extracted lists.
type Settings struct {
	MaxSkills int
	MaxTitles int
}

// DefaultSettings mirrors MAX_SKILLS_EXTRACT and MAX_JOB_TITLES_EXTRACT.
func DefaultSettings() Settings {
	return Settings{MaxSkills: 20, MaxTitles: 10}
}

// Profile is the structured attribute set derived from résumé text.
type Profile struct {
	TechnicalSkills      []string `json:"technical_skills"`
	SoftSkills           []string `json:"soft_skills"`
	ProgrammingLanguages []string `json:"programming_languages"`
	Frameworks           []string `json:"frameworks"`
	Tools                []string `json:"tools"`
	JobTitles            []string `json:"job_titles"`
	ExperienceYears      *int     `json:"experience_years"`
	EducationLevel       *string  `json:"education_level"`
}

type matcher struct {
	term string
	re   *regexp.Regexp // nil means plain substring
}

func (m matcher) match(lower string) bool {
	if m.re != nil {
		return m.re.MatchString(lower)
	}
	return strings.Contains(lower, m.term)
}

// Extractor derives a Profile from text. Build one with New; the zero value
// reports ErrEngineUnavailable.
type Extractor struct {
	settings   Settings
	recognizer EntityRecognizer
	technical  []matcher
	soft       []matcher
	titles     []*regexp.Regexp
	experience []*regexp.Regexp
	education  []educationRule
}

type educationRule struct {
	level string
	re    *regexp.Regexp
}

// New compiles the vocabulary. A nil recognizer disables entity augmentation.
func New(settings Settings, recognizer EntityRecognizer) *Extractor {
	if settings.MaxSkills <= 0 {
		settings.MaxSkills = DefaultSettings().MaxSkills
	}
	if settings.MaxTitles <= 0 {
		settings.MaxTitles = DefaultSettings().MaxTitles
	}
	e := &Extractor{settings: settings, recognizer: recognizer}
	for _, s := range technicalSkills {
		e.technical = append(e.technical, newMatcher(s))
	}
	for _, s := range softSkills {
		e.soft = append(e.soft, newMatcher(s))
	}
	for _, p := range titlePatterns {
		e.titles = append(e.titles, compileTerm(p))
	}
	for _, p := range experiencePatterns {
		e.experience = append(e.experience, regexp.MustCompile(p))
	}
	for _, r := range educationPatterns {
		e.education = append(e.education, educationRule{level: r.level, re: regexp.MustCompile(r.pattern)})
	}
	return e
}

// newMatcher uses word boundaries for very short terms ("r", "go", "ai")
// which would otherwise match inside almost any word.
func newMatcher(term string) matcher {
	if len(term) <= 2 && isAlnum(term) {
		return matcher{term: term, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)}
	}
	return matcher{term: term}
}

func compileTerm(pattern string) *regexp.Regexp {
	if len(pattern) <= 3 && isAlnum(pattern) {
		return regexp.MustCompile(`\b` + pattern + `\b`)
	}
	return regexp.MustCompile(pattern)
}

// Extract returns the Profile for text. It fails with ErrNoSkillsFound when no
// technical skill is present, since nothing can be searched for.
func (e *Extractor) Extract(text string) (Profile, error) {
	if e == nil || len(e.technical) == 0 {
		return Profile{}, ErrEngineUnavailable
	}
	lower := strings.ToLower(text)

	technical := matchAll(e.technical, lower)
	if e.recognizer != nil {
		extra, err := e.entitySkills(text)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		technical = appendUnique(technical, extra...)
	}
	if len(technical) == 0 {
		return Profile{}, ErrNoSkillsFound
	}

	langs, fws, tools := categorize(technical)
	return Profile{
		TechnicalSkills:      capList(technical, e.settings.MaxSkills),
		SoftSkills:           capList(matchAll(e.soft, lower), maxSoftSkills),
		ProgrammingLanguages: capList(langs, maxLanguages),
		Frameworks:           capList(fws, maxFrameworks),
		Tools:                capList(tools, maxTools),
		JobTitles:            capList(e.jobTitles(lower), e.settings.MaxTitles),
		ExperienceYears:      e.experienceYears(lower),
		EducationLevel:       e.educationLevel(lower),
	}, nil
}

func matchAll(ms []matcher, lower string) []string {
	var out []string
	for _, m := range ms {
		if m.match(lower) {
			out = append(out, m.term)
		}
	}
	return out
}

func (e *Extractor) jobTitles(lower string) []string {
	var out []string
	for _, re := range e.titles {
		out = appendUnique(out, re.FindAllString(lower, -1)...)
	}
	return out
}

func (e *Extractor) experienceYears(lower string) *int {
	best := -1
	for _, re := range e.experience {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n > maxExperience {
				continue
			}
			if n > best {
				best = n
			}
		}
	}
	if best < 0 {
		return nil
	}
	return &best
}

func (e *Extractor) educationLevel(lower string) *string {
	for _, r := range e.education {
		if r.re.MatchString(lower) {
			level := r.level
			return &level
		}
	}
	return nil
}

func (e *Extractor) entitySkills(text string) ([]string, error) {
	ents, err := e.recognizer.Entities(text)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, ent := range ents {
		switch ent.Label {
		case LabelOrg, LabelProduct, LabelLanguage:
		default:
			continue
		}
		if len(ent.Text) <= 2 {
			continue
		}
		candidate := strings.ToLower(strings.TrimSpace(ent.Text))
		if !hasLetter(candidate) {
			continue
		}
		if _, stop := entityStoplist[candidate]; stop {
			continue
		}
		out = appendUnique(out, candidate)
	}
	return out, nil
}

func categorize(skills []string) (langs, fws, tools []string) {
	for _, s := range skills {
		if _, ok := programmingLanguages[s]; ok {
			langs = append(langs, s)
			continue
		}
		if _, ok := frameworks[s]; ok {
			fws = append(fws, s)
			continue
		}
		tools = append(tools, s)
	}
	return langs, fws, tools
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, d := range dst {
		seen[d] = struct{}{}
	}
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		dst = append(dst, it)
	}
	return dst
}

func capList(in []string, n int) []string {
	if in == nil {
		return []string{}
	}
	if len(in) > n {
		return in[:n]
	}
	return in
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
