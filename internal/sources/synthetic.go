package sources

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	NameMock             = "mock"
	NameEnhancedFallback = "enhanced_fallback"

	maxMockPostings = 12
)

var (
	mockCompanies = []string{
		"Tech Corp", "Innovation Labs", "Digital Solutions", "StartupXYZ",
		"Enterprise Inc", "Future Systems", "Cloud Dynamics", "Data Insights",
		"AI Innovations", "Web Solutions", "Mobile First", "Quantum Labs",
	}
	mockLocations = []string{
		"San Francisco, CA", "New York, NY", "Austin, TX", "Seattle, WA",
		"Chicago, IL", "Boston, MA", "Denver, CO", "Atlanta, GA",
		"Los Angeles, CA", "Portland, OR", "Remote", "Hybrid",
	}
	mockJobTypes = []string{
		"Software Engineer", "Senior Developer", "Full Stack Developer",
		"Backend Engineer", "Frontend Developer", "DevOps Engineer",
		"Data Scientist", "Machine Learning Engineer", "Product Manager",
		"Technical Lead", "Principal Engineer", "Staff Engineer",
	}
	mockSalaries = map[string]string{
		"Software Engineer":         "$90,000 - $130,000",
		"Senior Developer":          "$120,000 - $170,000",
		"Full Stack Developer":      "$95,000 - $140,000",
		"Principal Engineer":        "$160,000 - $220,000",
		"Staff Engineer":            "$180,000 - $250,000",
		"Data Scientist":            "$110,000 - $160,000",
		"Machine Learning Engineer": "$130,000 - $180,000",
		"DevOps Engineer":           "$100,000 - $150,000",
		"Product Manager":           "$120,000 - $170,000",
		"Technical Lead":            "$140,000 - $190,000",
	}
	mockIntros = map[string]string{
		"Software Engineer": "We are looking for a skilled software engineer with experience in %[1]s. " +
			"Join our dynamic team at %[2]s and work on cutting-edge projects that impact millions of users.",
		"Senior Developer": "Senior developer position requiring expertise in %[1]s and related technologies. " +
			"At %[2]s, you'll lead technical initiatives and mentor junior developers.",
		"Full Stack Developer": "Full stack developer with strong %[1]s skills needed for our growing team. " +
			"%[2]s offers great benefits and growth opportunities in a collaborative environment.",
		"Data Scientist": "Data scientist role focusing on %[1]s and machine learning applications. " +
			"Work with large datasets and build predictive models at %[2]s.",
		"DevOps Engineer": "DevOps engineer position requiring knowledge of %[1]s and cloud infrastructure. " +
			"Help scale our systems and improve deployment processes at %[2]s.",
	}
)

const defaultSalary = "$80,000 - $120,000"

// MockGenerator synthesizes postings from static templates. It never fails.
type MockGenerator struct {
	now func() time.Time
}

func NewMockGenerator() *MockGenerator { return &MockGenerator{now: time.Now} }

func (m *MockGenerator) Name() string { return NameMock }

func (m *MockGenerator) Search(ctx context.Context, term, location string, limit int) ([]JobPosting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := min(limit, maxMockPostings)
	posted := m.now().UTC()
	out := make([]JobPosting, 0, max(n, 0))
	for i := 0; i < n; i++ {
		company := mockCompanies[i%len(mockCompanies)]
		jobType := mockJobTypes[i%len(mockJobTypes)]
		loc := location
		if loc == "" {
			loc = mockLocations[i%len(mockLocations)]
		}
		out = append(out, JobPosting{
			Title:       mockTitle(jobType, term),
			Company:     company,
			Location:    loc,
			Description: mockDescription(term, jobType, company),
			URL:         fmt.Sprintf("https://example.com/jobs/%s-%d", slug(company), i+1),
			SalaryRange: mockSalary(jobType),
			JobType:     "Full-time",
			Remote:      boolPtr(strings.Contains(loc, "Remote") || strings.Contains(loc, "Hybrid")),
			PostedDate:  &posted,
			Source:      NameMock,
			Synthetic:   true,
		})
	}
	return out, nil
}

func mockTitle(jobType, term string) string {
	if strings.Contains(strings.ToLower(jobType), strings.ToLower(term)) {
		return jobType
	}
	return jobType + " - " + titleCase(term)
}

func mockSalary(jobType string) string {
	if s, ok := mockSalaries[jobType]; ok {
		return s
	}
	return defaultSalary
}

func mockDescription(term, jobType, company string) string {
	intro, ok := mockIntros[jobType]
	if !ok {
		intro = "Exciting opportunity for a %[3]s with %[1]s experience at %[2]s. " +
			"Join our innovative team and make a real impact."
	}
	var b strings.Builder
	fmt.Fprintf(&b, intro, term, company, jobType)
	b.WriteString("\n\nKey Responsibilities:")
	fmt.Fprintf(&b, "\n• Develop and maintain applications using %s", term)
	b.WriteString("\n• Collaborate with cross-functional teams")
	b.WriteString("\n• Participate in code reviews and technical discussions")
	b.WriteString("\n• Contribute to architectural decisions")
	b.WriteString("\n\nRequirements:")
	fmt.Fprintf(&b, "\n• Strong experience with %s", term)
	b.WriteString("\n• Bachelor's degree in Computer Science or related field")
	b.WriteString("\n• Excellent problem-solving skills")
	b.WriteString("\n• Strong communication abilities")
	b.WriteString("\n\nBenefits:")
	b.WriteString("\n• Competitive salary and equity")
	b.WriteString("\n• Health, dental, and vision insurance")
	b.WriteString("\n• Flexible work arrangements")
	b.WriteString("\n• Professional development opportunities")
	return b.String()
}

var (
	fallbackSeniority = []string{"Junior", "Mid-level", "Senior", "Lead"}
	fallbackRoles     = []string{"Engineer", "Developer", "Specialist", "Consultant"}
	fallbackCompanies = []string{
		"Northwind Software", "Bluefin Analytics", "Copperleaf Systems", "Harbor Cloud",
		"Lumen Works", "Meridian Data", "Pinecrest Labs", "Summit Platforms",
	}
	fallbackFocus = []string{
		"building reliable backend services",
		"shipping customer-facing product features",
		"scaling data pipelines",
		"improving developer tooling and automation",
	}
	fallbackBands = [][2]float64{{70000, 100000}, {95000, 135000}, {125000, 175000}, {150000, 210000}}
	fallbackNS    = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
)

// EnhancedFallback tops up thin result sets with synthesized postings. Output
// depends only on the term, location and index, so repeated runs agree.
type EnhancedFallback struct{}

func NewEnhancedFallback() *EnhancedFallback { return &EnhancedFallback{} }

func (EnhancedFallback) Name() string { return NameEnhancedFallback }

func (EnhancedFallback) Search(ctx context.Context, term, location string, limit int) ([]JobPosting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	term = strings.TrimSpace(term)
	if term == "" || limit <= 0 {
		return []JobPosting{}, nil
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(term)))
	rng := rand.New(rand.NewPCG(h.Sum64(), uint64(len(term))))

	display := titleCase(term)
	out := make([]JobPosting, 0, limit)
	for i := 0; i < limit; i++ {
		level := rng.IntN(len(fallbackSeniority))
		role := fallbackRoles[rng.IntN(len(fallbackRoles))]
		company := fallbackCompanies[rng.IntN(len(fallbackCompanies))]
		focus := fallbackFocus[rng.IntN(len(fallbackFocus))]
		loc := location
		if loc == "" {
			loc = mockLocations[rng.IntN(len(mockLocations))]
		}
		band := fallbackBands[level]
		title := fmt.Sprintf("%s %s %s", fallbackSeniority[level], display, role)
		id := uuid.NewSHA1(fallbackNS, []byte(fmt.Sprintf("%s|%s|%d", strings.ToLower(term), loc, i)))

		out = append(out, JobPosting{
			Title:    title,
			Company:  company,
			Location: loc,
			Description: fmt.Sprintf(
				"%s is hiring a %s with hands-on %s experience. You will focus on %s, "+
					"work closely with product and design, and own features end to end. "+
					"Requirements: professional experience with %s, clear written communication, "+
					"and comfort with code review and testing.",
				company, strings.ToLower(title), term, focus, term),
			URL:         "https://jobs.example.com/postings/" + id.String(),
			SalaryRange: formatSalary(band[0], band[1]),
			JobType:     "Full-time",
			Remote:      boolPtr(strings.Contains(loc, "Remote") || strings.Contains(loc, "Hybrid")),
			Source:      NameEnhancedFallback,
			Synthetic:   true,
		})
	}
	return out, nil
}
