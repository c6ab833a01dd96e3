package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	NameGreenhouse           = "greenhouse"
	defaultGreenhouseBaseURL = "https://boards-api.greenhouse.io"
)

// Greenhouse searches the public job boards of a fixed list of companies.
type Greenhouse struct {
	fetcher *Fetcher
	boards  []string
	baseURL string
}

func NewGreenhouse(fetcher *Fetcher, boards []string, baseURL string) *Greenhouse {
	if baseURL == "" {
		baseURL = defaultGreenhouseBaseURL
	}
	return &Greenhouse{fetcher: fetcher, boards: boards, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (g *Greenhouse) Name() string { return NameGreenhouse }

type greenhouseBoard struct {
	Jobs []struct {
		Title       string `json:"title"`
		AbsoluteURL string `json:"absolute_url"`
		Content     string `json:"content"`
		UpdatedAt   string `json:"updated_at"`
		Location    struct {
			Name string `json:"name"`
		} `json:"location"`
	} `json:"jobs"`
}

// Search walks the boards in order. A board that fails is skipped as long as
// at least one other board answered.
func (g *Greenhouse) Search(ctx context.Context, term, _ string, limit int) ([]JobPosting, error) {
	var (
		out      []JobPosting
		firstErr error
		answered int
	)
	for _, board := range g.boards {
		if len(out) >= limit {
			break
		}
		jobs, err := g.searchBoard(ctx, board, term, limit-len(out))
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		answered++
		out = append(out, jobs...)
	}
	if answered == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (g *Greenhouse) searchBoard(ctx context.Context, board, term string, limit int) ([]JobPosting, error) {
	boardURL := fmt.Sprintf("%s/v1/boards/%s/jobs?content=true", g.baseURL, url.PathEscape(board))
	body, err := g.fetcher.Get(ctx, boardURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	var payload greenhouseBoard
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("greenhouse %s: decode board: %w", board, err)
	}

	company := titleCase(strings.ReplaceAll(board, "-", " "))
	var out []JobPosting
	for _, j := range payload.Jobs {
		if len(out) >= limit {
			break
		}
		desc := htmlToText(j.Content)
		if !matchesTerm(term, j.Title, desc) {
			continue
		}
		p := JobPosting{
			Title:       strings.TrimSpace(j.Title),
			Company:     company,
			Location:    strings.TrimSpace(j.Location.Name),
			Description: desc,
			URL:         j.AbsoluteURL,
			Remote:      remoteFromText(j.Location.Name),
			Source:      NameGreenhouse,
		}
		if ts, err := time.Parse(time.RFC3339, j.UpdatedAt); err == nil {
			p.PostedDate = &ts
		}
		out = append(out, p)
	}
	return out, nil
}
