package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents, then recreates it so the
// location remains a valid empty cache.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgePagesByAge removes page cache entries older than maxAge, judged by the
// SavedAt timestamp inside each meta record. Both the meta and body files go.
// Returns the number of entries removed.
func PurgePagesByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".meta.json") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil // skip unreadable
		}
		var m PageMeta
		if err := json.Unmarshal(b, &m); err != nil {
			return nil // skip malformed
		}
		if now.Sub(m.SavedAt) <= maxAge {
			return nil
		}
		removed++
		_ = os.Remove(path)
		_ = os.Remove(strings.TrimSuffix(path, ".meta.json") + ".body")
		return nil
	})
	return removed, err
}

type lruItem struct {
	paths []string
	mtime time.Time
	size  int64
}

// EnforcePageCacheLimits evicts least recently used page entries until the
// directory holds at most maxCount entries and maxBytes of meta+body data.
// Zero disables the corresponding limit. Returns entries removed.
func EnforcePageCacheLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	if maxBytes <= 0 && maxCount <= 0 {
		return 0, nil
	}
	var items []lruItem
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".meta.json") {
			return nil
		}
		it := lruItem{paths: []string{path}}
		if info, err := d.Info(); err == nil {
			it.mtime = info.ModTime()
			it.size = info.Size()
		}
		body := strings.TrimSuffix(path, ".meta.json") + ".body"
		if info, err := os.Stat(body); err == nil {
			it.paths = append(it.paths, body)
			it.size += info.Size()
			// Body mtime is the access signal; prefer it when newer.
			if info.ModTime().After(it.mtime) {
				it.mtime = info.ModTime()
			}
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return evictLRU(items, maxBytes, maxCount), nil
}

// EnforceCompletionCacheLimits evicts least recently used completion entries
// until the directory holds at most maxCount files and maxBytes of data.
// Zero disables the corresponding limit. Returns entries removed.
func EnforceCompletionCacheLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	if maxBytes <= 0 && maxCount <= 0 {
		return 0, nil
	}
	var items []lruItem
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".meta.json") || strings.HasSuffix(name, ".body") {
			return nil
		}
		if !strings.HasSuffix(name, ".json") {
			return nil
		}
		it := lruItem{paths: []string{path}}
		if info, err := d.Info(); err == nil {
			it.mtime = info.ModTime()
			it.size = info.Size()
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return evictLRU(items, maxBytes, maxCount), nil
}

func evictLRU(items []lruItem, maxBytes int64, maxCount int) int {
	sort.Slice(items, func(i, j int) bool { return items[i].mtime.Before(items[j].mtime) })
	var total int64
	for _, it := range items {
		total += it.size
	}
	removed := 0
	for _, it := range items {
		overCount := maxCount > 0 && len(items)-removed > maxCount
		overBytes := maxBytes > 0 && total > maxBytes
		if !overCount && !overBytes {
			break
		}
		for _, p := range it.paths {
			_ = os.Remove(p)
		}
		total -= it.size
		removed++
	}
	return removed
}

// PurgeCompletionsByAge removes completion cache entries older than maxAge by
// file mtime. Get touches mtime on every hit, so this keeps recently used
// answers around.
func PurgeCompletionsByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		// Page cache files share the tree in some layouts; leave them alone.
		if strings.HasSuffix(name, ".meta.json") || strings.HasSuffix(name, ".body") {
			return nil
		}
		if !strings.HasSuffix(name, ".json") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime().UTC()) <= maxAge {
			return nil
		}
		removed++
		_ = os.Remove(path)
		return nil
	})
	return removed, err
}
