package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestClearDirRecreatesEmpty(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "cache")
	c := &CompletionCache{Dir: dir}
	if err := c.Save(context.Background(), Key("m", "p"), []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("dir should be recreated: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dir not empty after clear: %d entries", len(entries))
	}
	if err := ClearDir("  "); err == nil {
		t.Fatal("blank dir must be rejected")
	}
}

func TestPurgePagesByAge(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &PageCache{Dir: dir}
	if err := c.Store(context.Background(), "https://old.example/", "text/html", "", "", []byte("old")); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := c.Store(context.Background(), "https://new.example/", "text/html", "", "", []byte("new")); err != nil {
		t.Fatalf("store: %v", err)
	}
	// Rewrite the first entry's meta with an ancient SavedAt.
	key := urlKey("https://old.example/")
	metaPath := filepath.Join(dir, key+".meta.json")
	old := PageMeta{URL: "https://old.example/", SavedAt: time.Now().UTC().Add(-48 * time.Hour)}
	b, _ := json.Marshal(old)
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		t.Fatalf("rewrite meta: %v", err)
	}
	removed, err := PurgePagesByAge(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := c.Body(context.Background(), "https://old.example/"); err == nil {
		t.Fatal("expired body should be gone")
	}
	if _, err := c.Body(context.Background(), "https://new.example/"); err != nil {
		t.Fatal("fresh entry should survive")
	}
}

func TestPurgeCompletionsByAgeSkipsPageFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cc := &CompletionCache{Dir: dir}
	if err := cc.Save(context.Background(), Key("m", "p"), []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	pc := &PageCache{Dir: dir}
	if err := pc.Store(context.Background(), "https://example.com/", "text/html", "", "", []byte("b")); err != nil {
		t.Fatalf("store: %v", err)
	}
	// Age everything past the cutoff.
	past := time.Now().Add(-2 * time.Hour)
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		_ = os.Chtimes(p, past, past)
	}
	removed, err := PurgeCompletionsByAge(dir, time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want only the completion entry", removed)
	}
	if _, err := pc.Meta(context.Background(), "https://example.com/"); err != nil {
		t.Fatal("page meta should be untouched")
	}
}

func TestPurgeZeroAgeIsNoop(t *testing.T) {
	t.Parallel()
	if n, err := PurgePagesByAge(t.TempDir(), 0); err != nil || n != 0 {
		t.Fatalf("pages: n=%d err=%v", n, err)
	}
	if n, err := PurgeCompletionsByAge(t.TempDir(), 0); err != nil || n != 0 {
		t.Fatalf("completions: n=%d err=%v", n, err)
	}
}
