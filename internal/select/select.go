// Package selecter trims the aggregated hit list down to the sources worth
// fetching. Selection is stable: aggregation rank order is preserved and
// caps only remove entries, so reruns over identical input pick identical
// sources.
package selecter

import (
	"net/url"
	"strings"

	"github.com/hyperifyio/goanswer/internal/aggregate"
	"github.com/hyperifyio/goanswer/internal/search"
)

// Options configures selection constraints.
type Options struct {
	// MaxTotal caps how many sources the fetch stage receives.
	MaxTotal int

	// PerDomain caps hits per host so one site cannot crowd out the rest.
	PerDomain int

	// MinSnippetChars drops results whose snippet has fewer than this many
	// characters after trimming. Zero disables low-signal filtering.
	MinSnippetChars int
}

// Select applies the caps in aggregation order and returns at most MaxTotal
// results.
func Select(results []search.Result, opt Options) []search.Result {
	if opt.MaxTotal <= 0 {
		opt.MaxTotal = 10
	}
	if opt.PerDomain <= 0 {
		opt.PerDomain = 3
	}
	domainCounts := map[string]int{}
	seenURL := map[string]struct{}{}

	out := make([]search.Result, 0, opt.MaxTotal)
	for _, r := range results {
		if opt.MinSnippetChars > 0 && len(strings.TrimSpace(r.Snippet)) < opt.MinSnippetChars {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(r.URL))
		if err != nil || u.Host == "" {
			continue
		}
		canon, err := aggregate.CanonicalURL(r.URL)
		if err != nil {
			continue
		}
		if _, ok := seenURL[canon]; ok {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if domainCounts[host] >= opt.PerDomain {
			continue
		}
		seenURL[canon] = struct{}{}
		domainCounts[host]++
		out = append(out, r)
		if len(out) >= opt.MaxTotal {
			break
		}
	}
	return out
}
