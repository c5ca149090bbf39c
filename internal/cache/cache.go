// Package cache provides the on-disk caches that persist between answering
// runs: fetched page bodies with conditional revalidation metadata, and model
// completions keyed by prompt digest. Entries are plain files under a
// configured directory so the caches survive restarts and stay inspectable
// with ordinary shell tools. No eviction runs implicitly; callers purge by
// age explicitly.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key builds a completion cache key from the model name and the full prompt
// text. The two are joined with a blank line before hashing so that model
// boundaries can never collide with prompt content.
func Key(model, prompt string) string {
	h := sha256.Sum256([]byte(model + "\n\n" + prompt))
	return hex.EncodeToString(h[:])
}

func urlKey(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(h[:])
}
