// Package aggregate merges the hits from all query variants into one
// deduplicated, rank-annotated list.
package aggregate

import (
	"net/url"
	"strings"

	"github.com/hyperifyio/goanswer/internal/search"
)

// Merge canonicalizes result URLs, drops duplicates keeping the first
// occurrence, and assigns 1-based Rank values in the surviving order. First
// occurrence wins because variants are searched in plan order, so earlier
// means the more literal phrasing of the user's question.
func Merge(results []search.Result) []search.Result {
	seen := map[string]struct{}{}
	out := make([]search.Result, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		canon, err := CanonicalURL(r.URL)
		if err != nil {
			continue
		}
		if _, ok := seen[canon]; ok {
			continue
		}
		seen[canon] = struct{}{}
		r.URL = canon
		r.Rank = len(out) + 1
		out = append(out, r)
	}
	return out
}

// CanonicalURL lowercases the host, drops the fragment, and strips common
// tracking parameters so that syntactic variants of one page collapse to a
// single key.
func CanonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	q := u.Query()
	for _, p := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
