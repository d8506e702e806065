package adapter

import (
	"context"
	"fmt"

	"github.com/alnah/go-dub/internal/apierr"
	"github.com/alnah/go-dub/internal/logging"
)

// Chain tries providers in order. Each provider gets retries with backoff
// for transient errors; when one provider exhausts its retries or fails
// hard, the next takes over. Only when every provider has failed does the
// chain give up.
type Chain[P Provider] struct {
	providers []P
	retry     apierr.RetryConfig
	log       *logging.Logger
}

// NewChain builds a chain over the given providers, first preferred.
func NewChain[P Provider](log *logging.Logger, retry apierr.RetryConfig, providers ...P) *Chain[P] {
	return &Chain[P]{providers: providers, retry: retry, log: log}
}

// Providers returns the chain members in preference order.
func (c *Chain[P]) Providers() []P {
	return c.providers
}

// Do runs fn against each provider until one succeeds, returning the
// result and the name of the serving provider. Context cancellation stops
// the chain immediately instead of falling through to the next provider.
func Do[P Provider, T any](ctx context.Context, c *Chain[P], op string, fn func(context.Context, P) (T, error)) (T, string, error) {
	var zero T
	if len(c.providers) == 0 {
		return zero, "", fmt.Errorf("%w: no providers configured for %s", apierr.ErrAllProvidersFailed, op)
	}

	var lastErr error
	for _, p := range c.providers {
		result, err := apierr.RetryWithBackoff(ctx, c.retry, func() (T, error) {
			return fn(ctx, p)
		}, nil)
		if err == nil {
			return result, p.Name(), nil
		}

		if ctx.Err() != nil {
			return zero, "", fmt.Errorf("%s: %w", op, ctx.Err())
		}

		c.log.Errorf("%s: provider %s failed: %v", op, p.Name(), err)
		lastErr = err
	}

	return zero, "", fmt.Errorf("%w: %s: %v", apierr.ErrAllProvidersFailed, op, lastErr)
}
