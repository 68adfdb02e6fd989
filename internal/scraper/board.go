// Package scraper discovers job postings from configured board feeds.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobagent.local/internal/config"
	"jobagent.local/internal/domain"
	"jobagent.local/internal/extract"
)

// Board scrapes one job board exposing a JSON feed. The search URL is a
// template with {title} and {location} placeholders filled per query.
type Board struct {
	name        string
	urlTemplate string
	client      *http.Client
	extractor   *extract.Extractor
}

// posting is one entry of a board's JSON feed.
type posting struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// NewBoard creates a scraper from config. A nil client uses a default with a
// 30s timeout.
func NewBoard(sc config.SourceConfig, client *http.Client, extractor *extract.Extractor) (*Board, error) {
	if sc.Name == "" || sc.URL == "" {
		return nil, fmt.Errorf("source needs name and url, got %+v", sc)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Board{
		name:        sc.Name,
		urlTemplate: sc.URL,
		client:      client,
		extractor:   extractor,
	}, nil
}

func (b *Board) Name() string {
	return b.name
}

// Scrape fetches the feed for one title/location query and converts postings
// to jobs, extracting candidate recipient emails from each description.
func (b *Board) Scrape(ctx context.Context, title, location string) ([]domain.Job, error) {
	searchURL := b.buildURL(title, location)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch %s: %w", b.name, searchURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: fetch %s: status %d", b.name, searchURL, resp.StatusCode)
	}

	var postings []posting
	if err := json.NewDecoder(resp.Body).Decode(&postings); err != nil {
		return nil, fmt.Errorf("%s: decode feed: %w", b.name, err)
	}

	var jobs []domain.Job
	for _, p := range postings {
		if p.URL == "" {
			continue
		}
		jobs = append(jobs, domain.Job{
			Source:      b.name,
			Company:     p.Company,
			Title:       p.Title,
			Location:    p.Location,
			Description: p.Description,
			URL:         p.URL,
			Emails:      b.extractor.Extract(p.Description),
		})
	}
	return jobs, nil
}

func (b *Board) buildURL(title, location string) string {
	u := strings.ReplaceAll(b.urlTemplate, "{title}", url.QueryEscape(title))
	return strings.ReplaceAll(u, "{location}", url.QueryEscape(location))
}
