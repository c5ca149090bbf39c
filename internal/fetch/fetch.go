// Package fetch retrieves candidate pages politely: robots-aware, cached,
// capped, and tolerant of per-URL failure.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hyperifyio/goanswer/internal/cache"
	"github.com/hyperifyio/goanswer/internal/robots"
)

// DefaultMaxBodyBytes caps how much of a page body is read. Oversized pages
// are truncated, not rejected; extraction works fine on a prefix.
const DefaultMaxBodyBytes int64 = 2 << 20

// Client fetches pages with timeouts, bounded retry on transient errors, a
// redirect hop cap, and an HTML-only content-type gate. All failure modes
// surface as Document statuses rather than errors.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string

	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int

	// PerRequestTimeout bounds each attempt.
	PerRequestTimeout time.Duration

	// Cache enables conditional GETs and serving revalidated bodies.
	Cache *cache.PageCache

	// BypassCache skips conditional headers, fetching fresh, but still
	// saves the latest response.
	BypassCache bool

	// Robots, when set, is consulted before each fetch; disallowed URLs
	// come back StatusBlocked without a page request.
	Robots *robots.Manager

	// AllowPrivateHosts disables the loopback/private address guard.
	// Tests need it on; production keeps it off.
	AllowPrivateHosts bool

	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int

	// MaxConcurrent limits in-flight requests per client instance on top of
	// whatever the caller's fan-out does. Zero means unlimited.
	MaxConcurrent int

	// MaxBodyBytes truncates bodies larger than this. Zero means
	// DefaultMaxBodyBytes.
	MaxBodyBytes int64

	limiter     chan struct{}
	limiterOnce sync.Once

	// per-host pacing when robots.txt declares a crawl delay
	hostMu   sync.Mutex
	hostLast map[string]time.Time
}

// Fetch retrieves one URL and always returns a Document; per-URL failures
// are encoded in Document.Status.
func (c *Client) Fetch(ctx context.Context, rawURL string) Document {
	doc := Document{URL: rawURL, FetchedAt: time.Now().UTC()}

	u, err := url.Parse(rawURL)
	if err != nil || !isHTTPScheme(u) {
		doc.Status = StatusBlocked
		doc.Err = fmt.Sprintf("unsupported url: %q", rawURL)
		return doc
	}
	if !c.AllowPrivateHosts && isLocalOrPrivateHost(u.Hostname()) {
		doc.Status = StatusBlocked
		doc.Err = fmt.Sprintf("private host not allowed: %s", u.Hostname())
		return doc
	}
	if c.Robots != nil {
		allowed, err := c.Robots.Allowed(ctx, rawURL)
		if err == nil && !allowed {
			doc.Status = StatusBlocked
			doc.Err = "disallowed by robots.txt"
			return doc
		}
		if delay := c.Robots.CrawlDelay(ctx, rawURL); delay > 0 {
			if err := c.waitPolitely(ctx, u.Host, delay); err != nil {
				return failureDoc(doc, err)
			}
		}
	}

	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.Meta(ctx, rawURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}

	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, err := c.tryOnce(ctx, rawURL, etag, lastMod)
		if err == nil {
			if resp.code == http.StatusNotModified && c.Cache != nil {
				cached, cerr := c.Cache.Body(ctx, rawURL)
				if cerr == nil {
					doc.Status = StatusOK
					doc.HTTPStatus = resp.code
					doc.Body = cached
					doc.ContentType = resp.contentType
					if doc.ContentType == "" {
						if meta, merr := c.Cache.Meta(ctx, rawURL); merr == nil {
							doc.ContentType = meta.ContentType
						}
					}
					return doc
				}
				// Cache vanished between the conditional request and now;
				// refetch fresh.
				etag, lastMod = "", ""
				lastErr = cerr
				continue
			}
			if c.Cache != nil && resp.code == http.StatusOK {
				_ = c.Cache.Store(ctx, rawURL, resp.contentType, resp.etag, resp.lastMod, resp.body)
			}
			doc.Status = StatusOK
			doc.HTTPStatus = resp.code
			doc.Body = resp.body
			doc.ContentType = resp.contentType
			return doc
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
		if i < attempts-1 {
			select {
			case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
			case <-ctx.Done():
				return failureDoc(doc, ctx.Err())
			}
		}
	}
	return failureDoc(doc, lastErr)
}

// failureDoc classifies err into the Document failure statuses.
func failureDoc(doc Document, err error) Document {
	if err == nil {
		err = errors.New("unknown error")
	}
	doc.Err = err.Error()
	var be *blockedError
	var se *httpStatusError
	switch {
	case errors.As(err, &be):
		doc.Status = StatusBlocked
	case errors.As(err, &se):
		doc.Status = StatusHTTPError
		doc.HTTPStatus = se.code
	case isTimeout(err):
		doc.Status = StatusTimeout
	default:
		doc.Status = StatusHTTPError
	}
	return doc
}

type response struct {
	body        []byte
	contentType string
	etag        string
	lastMod     string
	code        int
}

func (c *Client) tryOnce(ctx context.Context, rawURL, etag, lastMod string) (response, error) {
	c.acquire()
	defer c.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("new request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	httpClient := c.getHTTPClient()
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return response{
			contentType: resp.Header.Get("Content-Type"),
			etag:        resp.Header.Get("ETag"),
			lastMod:     resp.Header.Get("Last-Modified"),
			code:        resp.StatusCode,
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return response{}, &httpStatusError{code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isAllowedHTMLContentType(contentType) {
		return response{}, &blockedError{reason: fmt.Sprintf("unsupported content type: %s", contentType)}
	}
	maxBody := c.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}
	return response{
		body:        b,
		contentType: contentType,
		etag:        resp.Header.Get("ETag"),
		lastMod:     resp.Header.Get("Last-Modified"),
		code:        resp.StatusCode,
	}, nil
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating the
		// caller's client.
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.code)
}

type blockedError struct {
	reason string
}

func (e *blockedError) Error() string { return e.reason }

func isTransient(err error) bool {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return isTimeout(err)
}

// isTimeout also covers context.Canceled: when the run deadline fires, the
// shared context cancels outstanding fetches and those should read as
// timeouts in the per-source record.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
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

func isAllowedHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// waitPolitely spaces requests to one host at least delay apart. The slot is
// reserved before sleeping so concurrent fetchers queue rather than stampede
// when the delay elapses.
func (c *Client) waitPolitely(ctx context.Context, host string, delay time.Duration) error {
	c.hostMu.Lock()
	if c.hostLast == nil {
		c.hostLast = make(map[string]time.Time)
	}
	now := time.Now()
	var wait time.Duration
	if last, ok := c.hostLast[host]; ok {
		if next := last.Add(delay); next.After(now) {
			wait = next.Sub(now)
		}
	}
	c.hostLast[host] = now.Add(wait)
	c.hostMu.Unlock()
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}
