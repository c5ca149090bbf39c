// Package robots fetches, caches, and evaluates robots.txt policy so the
// fetcher can honor exclusions before touching a page.
package robots

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hyperifyio/goanswer/internal/cache"
)

// Source reports where a Rules value came from, for logging.
type Source int

const (
	SourceNetwork Source = iota
	SourceMemory
	SourceCache304
)

// Manager resolves robots.txt rules per host. Parsed rules live in memory
// for EntryExpiry; raw bodies go through the shared page cache with
// conditional revalidation.
type Manager struct {
	HTTPClient        *http.Client
	Cache             *cache.PageCache
	UserAgent         string
	EntryExpiry       time.Duration
	AllowPrivateHosts bool

	mu  sync.Mutex
	mem map[string]memEntry
	now func() time.Time
}

type memEntry struct {
	rules  Rules
	expiry time.Time
}

// Allowed reports whether pageURL may be fetched under the host's robots
// policy. A missing robots.txt defaults to allow; a host whose robots.txt is
// failing (5xx, timeout) is temporarily disallowed.
func (m *Manager) Allowed(ctx context.Context, pageURL string) (bool, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return false, fmt.Errorf("unsupported url scheme: %q", pageURL)
	}
	rules, _, err := m.Get(ctx, robotsURLFor(u))
	if err != nil {
		// Scheme and private-host errors; the fetch guard handles those.
		return true, nil
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.IsAllowed(m.UserAgent, path), nil
}

// CrawlDelay returns the crawl delay declared for pageURL's host and our
// user agent, or zero when none applies.
func (m *Manager) CrawlDelay(ctx context.Context, pageURL string) time.Duration {
	u, err := url.Parse(pageURL)
	if err != nil || !isHTTPScheme(u) {
		return 0
	}
	rules, _, err := m.Get(ctx, robotsURLFor(u))
	if err != nil {
		return 0
	}
	if d := rules.CrawlDelayFor(m.UserAgent); d != nil {
		return *d
	}
	return 0
}

func robotsURLFor(u *url.URL) string {
	return u.Scheme + "://" + u.Host + "/robots.txt"
}

// Get returns the rules for a robots.txt URL, consulting memory, then the
// page cache with a conditional request, then the network.
func (m *Manager) Get(ctx context.Context, robotsURL string) (Rules, Source, error) {
	if m.now == nil {
		m.now = time.Now
	}
	if m.mem == nil {
		m.mem = make(map[string]memEntry)
	}
	u, err := url.Parse(robotsURL)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return Rules{}, SourceNetwork, fmt.Errorf("unsupported url scheme: %q", robotsURL)
	}
	host := u.Hostname()
	if !m.AllowPrivateHosts && isLocalOrPrivateHost(host) {
		return Rules{}, SourceNetwork, fmt.Errorf("private host not allowed: %s", host)
	}

	m.mu.Lock()
	if ent, ok := m.mem[robotsURL]; ok && m.now().Before(ent.expiry) {
		r := ent.rules
		m.mu.Unlock()
		return r, SourceMemory, nil
	}
	m.mu.Unlock()

	var etag, lastMod string
	if m.Cache != nil {
		if meta, err := m.Cache.Meta(ctx, robotsURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("new request: %w", err)
	}
	if m.UserAgent != "" {
		req.Header.Set("User-Agent", m.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}
	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		// Unreachable policy: err on the side of not crawling the host
		// until the entry expires.
		rules := disallowAll()
		m.storeMem(robotsURL, rules)
		return rules, SourceNetwork, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && m.Cache != nil {
		body, err := m.Cache.Body(ctx, robotsURL)
		if err != nil {
			return Rules{}, SourceCache304, fmt.Errorf("load cached robots: %w", err)
		}
		rules := Parse(string(body))
		m.storeMem(robotsURL, rules)
		return rules, SourceCache304, nil
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// No policy published: everything is allowed.
		rules := Rules{}
		m.storeMem(robotsURL, rules)
		return rules, SourceNetwork, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		// 401/403/5xx: treat the host as temporarily off limits.
		rules := disallowAll()
		m.storeMem(robotsURL, rules)
		return rules, SourceNetwork, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("read robots: %w", err)
	}
	if m.Cache != nil {
		_ = m.Cache.Store(ctx, robotsURL, "text/plain", resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), data)
	}
	rules := Parse(string(data))
	m.storeMem(robotsURL, rules)
	return rules, SourceNetwork, nil
}

func disallowAll() Rules {
	return Rules{Groups: []Group{{Agents: []string{"*"}, Disallow: []string{"/"}}}}
}

func (m *Manager) storeMem(key string, rules Rules) {
	exp := m.EntryExpiry
	if exp <= 0 {
		exp = 30 * time.Minute
	}
	m.mu.Lock()
	m.mem[key] = memEntry{rules: rules, expiry: m.now().Add(exp)}
	m.mu.Unlock()
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isLocalOrPrivateHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "localhost" || h == "localhost.localdomain" || h == "::1" || h == "[::1]" {
		return true
	}
	if ip := net.ParseIP(h); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return true
		}
	}
	return false
}
