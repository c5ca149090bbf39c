// Package search turns query text into ranked web hits. Providers implement
// one backend each; Client adds retries and runs the planned query variants.
package search

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable reports that no provider response could be obtained for any
// planned query. The pipeline treats it as fatal because everything
// downstream needs at least one hit to work with.
var ErrUnavailable = errors.New("search unavailable")

// Result represents a single search hit from any provider. Rank is the
// 1-based position after aggregation; providers leave it zero and preserve
// their native ordering in the slice instead.
type Result struct {
	Title   string
	URL     string
	Snippet string
	Source  string // provider name for observability
	Rank    int
}

// Provider is a minimal interface for search providers.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Name() string
}

// statusError distinguishes retryable provider failures (5xx, 429) from ones
// another attempt cannot fix.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("search provider status %d", e.code)
}

func (e *statusError) Temporary() bool {
	return e.code == 429 || e.code >= 500
}
