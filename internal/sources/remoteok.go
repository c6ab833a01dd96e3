package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	NameRemoteOK       = "remoteok"
	defaultRemoteOKURL = "https://remoteok.com/api"
)

// RemoteOK searches the public remoteok.com JSON feed. The feed returns every
// open job; the first array element is a legal notice, not a job.
type RemoteOK struct {
	fetcher *Fetcher
	baseURL string
}

func NewRemoteOK(fetcher *Fetcher, baseURL string) *RemoteOK {
	if baseURL == "" {
		baseURL = defaultRemoteOKURL
	}
	return &RemoteOK{fetcher: fetcher, baseURL: baseURL}
}

func (r *RemoteOK) Name() string { return NameRemoteOK }

type remoteOKJob struct {
	ID          json.RawMessage `json:"id"`
	Date        string          `json:"date"`
	Company     string          `json:"company"`
	Position    string          `json:"position"`
	Tags        []string        `json:"tags"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	SalaryMin   float64         `json:"salary_min"`
	SalaryMax   float64         `json:"salary_max"`
	URL         string          `json:"url"`
	ApplyURL    string          `json:"apply_url"`
}

func (r *RemoteOK) Search(ctx context.Context, term, _ string, limit int) ([]JobPosting, error) {
	body, err := r.fetcher.Get(ctx, r.baseURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("remoteok: decode feed: %w", err)
	}
	if len(raw) > 0 {
		raw = raw[1:]
	}

	out := make([]JobPosting, 0, limit)
	for _, item := range raw {
		if len(out) >= limit {
			break
		}
		var job remoteOKJob
		if err := json.Unmarshal(item, &job); err != nil || job.Position == "" {
			continue
		}
		desc := htmlToText(job.Description)
		if !matchesTerm(term, job.Position, strings.Join(job.Tags, " "), desc) {
			continue
		}
		location := strings.TrimSpace(job.Location)
		if location == "" {
			location = "Remote"
		}
		link := job.URL
		if link == "" {
			link = job.ApplyURL
		}
		p := JobPosting{
			Title:       strings.TrimSpace(job.Position),
			Company:     strings.TrimSpace(job.Company),
			Location:    location,
			Description: desc,
			URL:         link,
			SalaryRange: formatSalary(job.SalaryMin, job.SalaryMax),
			Remote:      boolPtr(true),
			Source:      NameRemoteOK,
		}
		if ts, err := time.Parse(time.RFC3339, job.Date); err == nil {
			p.PostedDate = &ts
		}
		out = append(out, p)
	}
	return out, nil
}
