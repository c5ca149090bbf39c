package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Client runs planned query variants against one Provider, retrying each
// variant on transient failures. A run survives individual variant failures;
// only a total blank across all variants is fatal.
type Client struct {
	Provider Provider

	// MaxRetries bounds re-attempts per variant beyond the first try.
	// Zero means the default of 2.
	MaxRetries int

	// InitialBackoff seeds the exponential backoff. Zero means 200ms.
	// Tests shrink it to keep retry paths fast.
	InitialBackoff time.Duration
}

// SearchAll queries every variant in order and concatenates the provider
// results, preserving variant order and provider order within each variant.
// Returns ErrUnavailable when no variant produced a response at all.
func (c *Client) SearchAll(ctx context.Context, variants []string, perVariant int) ([]Result, error) {
	if c.Provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrUnavailable)
	}
	var out []Result
	var lastErr error
	succeeded := 0
	for _, v := range variants {
		res, err := c.searchOne(ctx, v, perVariant)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("provider", c.Provider.Name()).Str("query", v).Msg("search variant failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}
		succeeded++
		out = append(out, res...)
	}
	if succeeded == 0 {
		if lastErr == nil {
			lastErr = errors.New("no query variants")
		}
		return nil, fmt.Errorf("%w: provider %s: %v", ErrUnavailable, c.Provider.Name(), lastErr)
	}
	return out, nil
}

func (c *Client) searchOne(ctx context.Context, query string, limit int) ([]Result, error) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	initial := c.InitialBackoff
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxElapsedTime = 0 // attempt count is the bound

	var out []Result
	op := func() error {
		res, err := c.Provider.Search(ctx, query, limit)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && !se.Temporary() {
				return backoff.Permanent(err)
			}
			return err
		}
		out = res
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries)), ctx))
	if err != nil {
		return nil, err
	}
	return out, nil
}
