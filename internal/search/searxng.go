package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearxNG queries a SearxNG instance's /search endpoint with format=json.
// The instance must list json under search.formats in its settings or it
// answers 403.
type SearxNG struct {
	BaseURL    string
	APIKey     string // optional
	HTTPClient *http.Client
	UserAgent  string // optional custom UA
	// Language narrows results to one language code ("en", "fi"). Empty
	// lets the instance detect it per query.
	Language string
}

func (s *SearxNG) Name() string { return "searxng" }

// searxHit is the subset of a SearxNG result entry the pipeline consumes.
type searxHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type searxPage struct {
	Results []searxHit `json:"results"`
}

func (s *SearxNG) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if s.BaseURL == "" {
		return nil, fmt.Errorf("missing searxng base url")
	}
	if limit <= 0 {
		limit = 10
	}

	endpoint, err := s.endpoint(query, limit)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	hc := s.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode}
	}

	var page searxPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}

	out := make([]Result, 0, min(limit, len(page.Results)))
	for _, hit := range page.Results {
		r, ok := hit.toResult()
		if !ok {
			continue
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// endpoint builds the /search URL for one query.
func (s *SearxNG) endpoint(query string, limit int) (string, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(u.Path, "/search") {
		u.Path = strings.TrimRight(u.Path, "/") + "/search"
	}
	lang := s.Language
	if lang == "" {
		lang = "auto"
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("language", lang)
	q.Set("safesearch", "1")
	q.Set("categories", "general")
	q.Set("count", strconv.Itoa(limit))
	if s.APIKey != "" {
		q.Set("apikey", s.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// toResult validates and normalizes one hit. Hits without a title or a
// fetchable http(s) URL are dropped here so downstream stages never see them.
func (hit searxHit) toResult() (Result, bool) {
	title := strings.TrimSpace(hit.Title)
	raw := strings.TrimSpace(hit.URL)
	if title == "" || raw == "" {
		return Result{}, false
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Result{}, false
	}
	return Result{
		Title:   title,
		URL:     raw,
		Snippet: strings.TrimSpace(hit.Content),
		Source:  "searxng",
	}, true
}
