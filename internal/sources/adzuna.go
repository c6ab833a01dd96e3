package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	NameAdzuna           = "adzuna"
	defaultAdzunaBaseURL = "https://api.adzuna.com"
	defaultAdzunaCountry = "us"
)

// AdzunaConfig holds API credentials.
type AdzunaConfig struct {
	AppID   string
	AppKey  string
	Country string
	BaseURL string
}

// Adzuna searches the Adzuna job search API.
type Adzuna struct {
	fetcher *Fetcher
	cfg     AdzunaConfig
}

func NewAdzuna(fetcher *Fetcher, cfg AdzunaConfig) (*Adzuna, error) {
	if cfg.AppID == "" || cfg.AppKey == "" {
		return nil, errors.New("adzuna: app_id and app_key are required")
	}
	if cfg.Country == "" {
		cfg.Country = defaultAdzunaCountry
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAdzunaBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Adzuna{fetcher: fetcher, cfg: cfg}, nil
}

func (a *Adzuna) Name() string { return NameAdzuna }

type adzunaResponse struct {
	Results []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Created     string `json:"created"`
		RedirectURL string `json:"redirect_url"`
		Contract    string `json:"contract_time"`
		Company     struct {
			DisplayName string `json:"display_name"`
		} `json:"company"`
		Location struct {
			DisplayName string `json:"display_name"`
		} `json:"location"`
		SalaryMin float64 `json:"salary_min"`
		SalaryMax float64 `json:"salary_max"`
	} `json:"results"`
}

func (a *Adzuna) Search(ctx context.Context, term, location string, limit int) ([]JobPosting, error) {
	searchURL, err := a.searchURL(term, location, limit)
	if err != nil {
		return nil, err
	}
	body, err := a.fetcher.Get(ctx, searchURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	var payload adzunaResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("adzuna: decode response: %w", err)
	}

	out := make([]JobPosting, 0, len(payload.Results))
	for _, r := range payload.Results {
		if len(out) >= limit {
			break
		}
		p := JobPosting{
			Title:       htmlToText(r.Title),
			Company:     r.Company.DisplayName,
			Location:    r.Location.DisplayName,
			Description: htmlToText(r.Description),
			URL:         r.RedirectURL,
			SalaryRange: formatSalary(r.SalaryMin, r.SalaryMax),
			JobType:     contractLabel(r.Contract),
			Remote:      remoteFromText(r.Location.DisplayName, r.Title),
			Source:      NameAdzuna,
		}
		if ts, err := time.Parse(time.RFC3339, r.Created); err == nil {
			p.PostedDate = &ts
		}
		out = append(out, p)
	}
	return out, nil
}

func (a *Adzuna) searchURL(term, location string, limit int) (string, error) {
	if strings.TrimSpace(term) == "" {
		return "", errors.New("adzuna: query is required")
	}
	u, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("adzuna: parse base url: %w", err)
	}
	u.Path = path.Join(u.Path, "v1", "api", "jobs", a.cfg.Country, "search", "1")

	values := url.Values{}
	values.Set("app_id", a.cfg.AppID)
	values.Set("app_key", a.cfg.AppKey)
	values.Set("what", term)
	values.Set("results_per_page", fmt.Sprint(limit))
	values.Set("content-type", "application/json")
	if location != "" && !strings.EqualFold(location, "remote") {
		values.Set("where", location)
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

func contractLabel(raw string) string {
	switch strings.ToLower(raw) {
	case "full_time":
		return "Full-time"
	case "part_time":
		return "Part-time"
	default:
		return ""
	}
}
