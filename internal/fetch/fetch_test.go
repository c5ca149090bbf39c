package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/goanswer/internal/cache"
	"github.com/hyperifyio/goanswer/internal/robots"
)

func testClient() *Client {
	return &Client{
		UserAgent:         "goanswer-test",
		MaxAttempts:       2,
		PerRequestTimeout: 2 * time.Second,
		AllowPrivateHosts: true,
	}
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	doc := testClient().Fetch(context.Background(), srv.URL)
	if doc.Status != StatusOK {
		t.Fatalf("status = %q (err %q)", doc.Status, doc.Err)
	}
	if doc.HTTPStatus != 200 || len(doc.Body) == 0 || doc.ContentType == "" {
		t.Fatalf("incomplete document: %+v", doc)
	}
	if doc.FetchedAt.IsZero() {
		t.Fatal("FetchedAt not set")
	}
	if !doc.OK() {
		t.Fatal("OK() should be true for StatusOK")
	}
}

func TestFetch_RetryOn5xx(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(502)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	doc := testClient().Fetch(context.Background(), srv.URL)
	if doc.Status != StatusOK {
		t.Fatalf("expected success after retry, got %q (%s)", doc.Status, doc.Err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestFetch_ExhaustedRetriesReportHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer srv.Close()

	doc := testClient().Fetch(context.Background(), srv.URL)
	if doc.Status != StatusHTTPError {
		t.Fatalf("status = %q, want http-error", doc.Status)
	}
	if doc.HTTPStatus != 503 {
		t.Fatalf("HTTPStatus = %d, want 503", doc.HTTPStatus)
	}
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(404)
	}))
	defer srv.Close()

	doc := testClient().Fetch(context.Background(), srv.URL)
	if doc.Status != StatusHTTPError || doc.HTTPStatus != 404 {
		t.Fatalf("doc = %+v", doc)
	}
	if calls != 1 {
		t.Fatalf("404 must not be retried, calls = %d", calls)
	}
}

func TestFetch_Conditional304_UsesCache(t *testing.T) {
	var calls int
	etag := `"abc123"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/html")
		if calls == 1 {
			w.Header().Set("ETag", etag)
			_, _ = w.Write([]byte("first"))
			return
		}
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		fmt.Fprintln(w, "unexpected")
	}))
	defer srv.Close()

	c := testClient()
	c.MaxAttempts = 1
	c.Cache = &cache.PageCache{Dir: t.TempDir()}

	d1 := c.Fetch(context.Background(), srv.URL)
	if d1.Status != StatusOK || string(d1.Body) != "first" {
		t.Fatalf("first fetch: %+v", d1)
	}
	d2 := c.Fetch(context.Background(), srv.URL)
	if d2.Status != StatusOK {
		t.Fatalf("second fetch: %+v", d2)
	}
	if string(d2.Body) != "first" {
		t.Fatalf("expected revalidated cached body, got %q", d2.Body)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestFetch_RejectsNonHTTPScheme(t *testing.T) {
	doc := testClient().Fetch(context.Background(), "file:///etc/hosts")
	if doc.Status != StatusBlocked {
		t.Fatalf("status = %q, want blocked", doc.Status)
	}
}

func TestFetch_BlocksPrivateHostsByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should never reach the server")
	}))
	defer srv.Close()

	c := testClient()
	c.AllowPrivateHosts = false
	doc := c.Fetch(context.Background(), srv.URL)
	if doc.Status != StatusBlocked {
		t.Fatalf("status = %q, want blocked for loopback", doc.Status)
	}
}

func TestFetch_ContentTypeGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	doc := testClient().Fetch(context.Background(), srv.URL)
	if doc.Status != StatusBlocked {
		t.Fatalf("status = %q, want blocked for pdf", doc.Status)
	}
	if !strings.Contains(doc.Err, "content type") {
		t.Fatalf("diagnostic missing: %q", doc.Err)
	}
}

func TestFetch_RedirectLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/next", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient()
	c.MaxAttempts = 1
	c.RedirectMaxHops = 1
	doc := c.Fetch(context.Background(), srv.URL)
	if doc.Status == StatusOK {
		t.Fatal("expected redirect limit failure")
	}
}

func TestFetch_TimeoutStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	c := testClient()
	c.MaxAttempts = 1
	c.PerRequestTimeout = 50 * time.Millisecond
	doc := c.Fetch(context.Background(), srv.URL)
	if doc.Status != StatusTimeout {
		t.Fatalf("status = %q (err %q), want timeout", doc.Status, doc.Err)
	}
}

func TestFetch_RobotsDisallowBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>secret</html>"))
	}))
	defer srv.Close()

	c := testClient()
	c.Robots = &robots.Manager{
		HTTPClient:        srv.Client(),
		UserAgent:         "goanswer-test",
		AllowPrivateHosts: true,
	}
	doc := c.Fetch(context.Background(), srv.URL+"/private/page")
	if doc.Status != StatusBlocked {
		t.Fatalf("status = %q, want blocked by robots", doc.Status)
	}
	open := c.Fetch(context.Background(), srv.URL+"/public")
	if open.Status != StatusOK {
		t.Fatalf("public path should fetch: %+v", open)
	}
}

func TestFetch_HonorsCrawlDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("User-agent: *\nCrawl-delay: 0.3\n"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := testClient()
	c.Robots = &robots.Manager{HTTPClient: srv.Client(), UserAgent: "goanswer-test", AllowPrivateHosts: true}

	start := time.Now()
	if d := c.Fetch(context.Background(), srv.URL+"/a"); d.Status != StatusOK {
		t.Fatalf("first fetch: %+v", d)
	}
	if d := c.Fetch(context.Background(), srv.URL+"/b"); d.Status != StatusOK {
		t.Fatalf("second fetch: %+v", d)
	}
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Fatalf("second fetch not delayed: elapsed %v", elapsed)
	}
}

func TestFetch_MaxConcurrent(t *testing.T) {
	var inFlight, maxObserved int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		curr := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxObserved)
			if curr <= prev || atomic.CompareAndSwapInt32(&maxObserved, prev, curr) {
				break
			}
		}
		time.Sleep(150 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
		atomic.AddInt32(&inFlight, -1)
	}))
	defer srv.Close()

	c := testClient()
	c.MaxAttempts = 1
	c.MaxConcurrent = 2

	var wg sync.WaitGroup
	start := make(chan struct{})
	const num = 6
	wg.Add(num)
	for i := 0; i < num; i++ {
		go func() {
			defer wg.Done()
			<-start
			_ = c.Fetch(context.Background(), srv.URL)
		}()
	}
	close(start)
	wg.Wait()

	if maxObserved > 2 {
		t.Fatalf("expected max concurrency <= 2, got %d", maxObserved)
	}
}

func TestFetch_TruncatesOversizedBody(t *testing.T) {
	big := strings.Repeat("a", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(big))
	}))
	defer srv.Close()

	c := testClient()
	c.MaxBodyBytes = 1024
	doc := c.Fetch(context.Background(), srv.URL)
	if doc.Status != StatusOK {
		t.Fatalf("status = %q", doc.Status)
	}
	if len(doc.Body) != 1024 {
		t.Fatalf("body len = %d, want 1024", len(doc.Body))
	}
}
