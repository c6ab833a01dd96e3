package sources

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

const (
	NameWeWorkRemotely       = "weworkremotely"
	defaultWeWorkRemotelyURL = "https://weworkremotely.com/remote-jobs.rss"
)

// WeWorkRemotely searches the weworkremotely.com RSS feed. Item titles have
// the form "Company: Job Title".
type WeWorkRemotely struct {
	fetcher *Fetcher
	feedURL string
}

func NewWeWorkRemotely(fetcher *Fetcher, feedURL string) *WeWorkRemotely {
	if feedURL == "" {
		feedURL = defaultWeWorkRemotelyURL
	}
	return &WeWorkRemotely{fetcher: fetcher, feedURL: feedURL}
}

func (w *WeWorkRemotely) Name() string { return NameWeWorkRemotely }

type rssFeed struct {
	Items []rssItem `xml:"channel>item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Region      string `xml:"region"`
	Type        string `xml:"type"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

func (w *WeWorkRemotely) Search(ctx context.Context, term, _ string, limit int) ([]JobPosting, error) {
	body, err := w.fetcher.Get(ctx, w.feedURL, map[string]string{"Accept": "application/rss+xml"})
	if err != nil {
		return nil, err
	}
	var feed rssFeed
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	if err := dec.Decode(&feed); err != nil {
		return nil, fmt.Errorf("weworkremotely: decode feed: %w", err)
	}

	out := make([]JobPosting, 0, limit)
	for _, item := range feed.Items {
		if len(out) >= limit {
			break
		}
		company, title := splitFeedTitle(item.Title)
		if title == "" {
			continue
		}
		desc := htmlToText(item.Description)
		if !matchesTerm(term, title, desc) {
			continue
		}
		location := strings.TrimSpace(item.Region)
		if location == "" {
			location = "Remote"
		}
		p := JobPosting{
			Title:       title,
			Company:     company,
			Location:    location,
			Description: desc,
			URL:         strings.TrimSpace(item.Link),
			JobType:     strings.TrimSpace(item.Type),
			Remote:      boolPtr(true),
			Source:      NameWeWorkRemotely,
		}
		if ts, err := time.Parse(time.RFC1123Z, strings.TrimSpace(item.PubDate)); err == nil {
			p.PostedDate = &ts
		}
		out = append(out, p)
	}
	return out, nil
}

func splitFeedTitle(raw string) (company, title string) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, ":"); i > 0 {
		return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+1:])
	}
	return "Unknown Company", raw
}
