package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestPageCache_StoreAndLoad(t *testing.T) {
	t.Parallel()
	c := &PageCache{Dir: t.TempDir()}
	url := "https://example.com/a"
	body := []byte("<html><body>hello</body></html>")
	if err := c.Store(context.Background(), url, "text/html", `"v1"`, "Mon, 02 Jan 2006 15:04:05 GMT", body); err != nil {
		t.Fatalf("store: %v", err)
	}
	meta, err := c.Meta(context.Background(), url)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.URL != url || meta.ETag != `"v1"` || meta.ContentType != "text/html" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if meta.SavedAt.IsZero() {
		t.Fatal("SavedAt not recorded")
	}
	got, err := c.Body(context.Background(), url)
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if string(got) != string(body) {
		t.Fatal("body mismatch")
	}
}

func TestPageCache_MissIsError(t *testing.T) {
	t.Parallel()
	c := &PageCache{Dir: t.TempDir()}
	if _, err := c.Meta(context.Background(), "https://example.com/missing"); err == nil {
		t.Fatal("expected error for missing meta")
	}
	if _, err := c.Body(context.Background(), "https://example.com/missing"); err == nil {
		t.Fatal("expected error for missing body")
	}
}

func TestEnforcePageCacheLimits_Count(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &PageCache{Dir: dir}
	urls := []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"}
	for i, u := range urls {
		if err := c.Store(context.Background(), u, "text/html", "", "", []byte(fmt.Sprintf("body-%d", i))); err != nil {
			t.Fatalf("store %d: %v", i, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Touch the first so the second becomes the LRU victim.
	if _, err := c.Body(context.Background(), urls[0]); err != nil {
		t.Fatalf("touch: %v", err)
	}
	removed, err := EnforcePageCacheLimits(dir, 0, 2)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := c.Body(context.Background(), urls[1]); err == nil {
		t.Fatal("expected least recently used entry evicted")
	}
	if _, err := c.Body(context.Background(), urls[0]); err != nil {
		t.Fatal("recently touched entry should survive")
	}
}

func TestEnforcePageCacheLimits_Bytes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &PageCache{Dir: dir}
	if err := c.Store(context.Background(), "https://b.com/1", "text/html", "", "", []byte("1111111111")); err != nil {
		t.Fatalf("store 1: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := c.Store(context.Background(), "https://b.com/2", "text/html", "", "", []byte("22")); err != nil {
		t.Fatalf("store 2: %v", err)
	}
	removed, err := EnforcePageCacheLimits(dir, 5, 0)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if removed < 1 {
		t.Fatalf("expected at least 1 eviction, got %d", removed)
	}
}
