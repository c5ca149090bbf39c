package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/goanswer/internal/cache"
)

func TestManager_FetchOncePerRun_WithETagRevalidation(t *testing.T) {
	t.Parallel()
	var hits int32
	const etag = `W/"v1"`
	body := "User-agent: *\nDisallow: /private\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	m := &Manager{
		HTTPClient:        srv.Client(),
		Cache:             &cache.PageCache{Dir: t.TempDir()},
		UserAgent:         "goanswer-test/1.0",
		EntryExpiry:       time.Hour,
		AllowPrivateHosts: true,
	}

	u := srv.URL + "/robots.txt"
	rules1, src1, err := m.Get(ctx, u)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if src1 != SourceNetwork {
		t.Fatalf("expected SourceNetwork on first get, got %v", src1)
	}
	if len(rules1.Groups) == 0 || rules1.Groups[0].Disallow[0] != "/private" {
		t.Fatalf("parsed rules wrong: %+v", rules1)
	}

	// Second fetch within expiry must come from memory.
	_, src2, err := m.Get(ctx, u)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if src2 != SourceMemory {
		t.Fatalf("expected SourceMemory, got %v", src2)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 server hit, got %d", hits)
	}

	// Expire and force conditional revalidation; server returns 304.
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	rules3, src3, err := m.Get(ctx, u)
	if err != nil {
		t.Fatalf("third get: %v", err)
	}
	if src3 != SourceCache304 {
		t.Fatalf("expected SourceCache304, got %v", src3)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected 2 server hits, got %d", hits)
	}
	if rules3.Groups[0].Disallow[0] != "/private" {
		t.Fatal("rules changed unexpectedly after revalidation")
	}
}

func TestMissingRobots404_ProceedAllowed_WithMemCache(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	m := &Manager{
		HTTPClient:        srv.Client(),
		UserAgent:         "goanswer-test/1.0",
		EntryExpiry:       time.Minute,
		AllowPrivateHosts: true,
	}
	u := srv.URL + "/robots.txt"
	rules1, src1, err1 := m.Get(ctx, u)
	if err1 != nil {
		t.Fatalf("get 404 robots: %v", err1)
	}
	if src1 != SourceNetwork {
		t.Fatalf("expected SourceNetwork, got %v", src1)
	}
	if !rules1.IsAllowed("goanswer", "/any/path") {
		t.Fatal("missing robots.txt should allow")
	}
	// Second call reuses memory.
	_, src2, err2 := m.Get(ctx, u)
	if err2 != nil {
		t.Fatalf("second get: %v", err2)
	}
	if src2 != SourceMemory {
		t.Fatalf("expected SourceMemory, got %v", src2)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit total, got %d", hits)
	}
}

func TestFailingRobots_TemporaryDisallow(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	m := &Manager{HTTPClient: srv.Client(), UserAgent: "goanswer-test", EntryExpiry: time.Minute, AllowPrivateHosts: true}
	u := srv.URL + "/robots.txt"
	rules, src, err := m.Get(ctx, u)
	if err != nil {
		t.Fatalf("5xx policy should not error: %v", err)
	}
	if src != SourceNetwork {
		t.Fatalf("expected SourceNetwork, got %v", src)
	}
	if rules.IsAllowed("goanswer", "/any") {
		t.Fatal("expected disallow-all while robots.txt is failing")
	}
	// Memory reuse, no second hit.
	if _, src2, _ := m.Get(ctx, u); src2 != SourceMemory {
		t.Fatalf("expected SourceMemory, got %v", src2)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
}

func TestUnreachableRobots_TemporaryDisallow(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	base := *srv.Client()
	base.Timeout = 50 * time.Millisecond
	m := &Manager{HTTPClient: &base, UserAgent: "goanswer-test", EntryExpiry: time.Minute, AllowPrivateHosts: true}
	rules, _, err := m.Get(context.Background(), srv.URL+"/robots.txt")
	if err != nil {
		t.Fatalf("timeout policy should not error: %v", err)
	}
	if rules.IsAllowed("goanswer", "/any") {
		t.Fatal("expected disallow-all while robots.txt is unreachable")
	}
}

func TestAllowed_DerivesRobotsURLAndPath(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			t.Errorf("manager fetched %q, want /robots.txt", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /admin\n"))
	}))
	t.Cleanup(srv.Close)

	m := &Manager{HTTPClient: srv.Client(), UserAgent: "goanswer", AllowPrivateHosts: true}
	ok, err := m.Allowed(context.Background(), srv.URL+"/admin/settings")
	if err != nil {
		t.Fatalf("allowed: %v", err)
	}
	if ok {
		t.Fatal("expected /admin/settings to be disallowed")
	}
	ok, err = m.Allowed(context.Background(), srv.URL+"/docs")
	if err != nil || !ok {
		t.Fatalf("expected /docs allowed, ok=%v err=%v", ok, err)
	}
}

func TestEvaluate_UAPrecedence_AndPathDecisions(t *testing.T) {
	t.Parallel()
	rules := Parse(`User-agent: goanswer
Disallow: /private

User-agent: *
Allow: /
`)
	if rules.IsAllowed("goanswer", "/private/page") {
		t.Fatal("expected disallow for goanswer on /private/page")
	}
	if !rules.IsAllowed("otheragent", "/private/page") {
		t.Fatal("expected allow for otheragent via wildcard group")
	}

	rules2 := Parse(`User-agent: goanswer
Disallow: /private
Allow: /private/public
`)
	if !rules2.IsAllowed("goanswer", "/private/public/info") {
		t.Fatal("expected allow from the longer Allow rule")
	}
	if rules2.IsAllowed("goanswer", "/private/else") {
		t.Fatal("expected disallow under the shorter Disallow rule")
	}
}

func TestEvaluate_Wildcards_And_Anchors(t *testing.T) {
	t.Parallel()
	rules := Parse(`User-agent: goanswer
Disallow: /*.zip$
Allow: /downloads/*.zip$
`)
	if rules.IsAllowed("goanswer", "/foo/file.zip") {
		t.Fatal("expected disallow for generic *.zip")
	}
	if !rules.IsAllowed("goanswer", "/downloads/file.zip") {
		t.Fatal("expected allow for downloads/*.zip")
	}

	rules2 := Parse(`User-agent: *
Disallow: /*?session=
`)
	if rules2.IsAllowed("any", "/index.html?session=1") {
		t.Fatal("expected disallow when wildcard matches into the query")
	}
}

func TestEvaluate_CrawlDelayForMatchedGroup(t *testing.T) {
	t.Parallel()
	rules := Parse(`User-agent: goanswer
Crawl-delay: 2

User-agent: *
Crawl-delay: 7
`)
	if d := rules.CrawlDelayFor("goanswer"); d == nil || *d != 2*time.Second {
		t.Fatalf("expected 2s crawl delay for goanswer, got %v", d)
	}
	if d := rules.CrawlDelayFor("other"); d == nil || *d != 7*time.Second {
		t.Fatalf("expected 7s crawl delay via wildcard, got %v", d)
	}
}

func TestManagerCrawlDelay(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nCrawl-delay: 3\n"))
	}))
	t.Cleanup(srv.Close)

	m := &Manager{HTTPClient: srv.Client(), UserAgent: "goanswer", AllowPrivateHosts: true}
	if d := m.CrawlDelay(context.Background(), srv.URL+"/page"); d != 3*time.Second {
		t.Fatalf("CrawlDelay = %v, want 3s", d)
	}
}
