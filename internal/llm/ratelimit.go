package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// RateLimited paces calls to p with limiter. A wait that cannot finish before
// the context deadline fails immediately as a ProviderError, so callers fall
// back instead of queueing behind a saturated backend.
func RateLimited(p Provider, limiter *rate.Limiter) Provider {
	if limiter == nil {
		return p
	}
	return &rateLimited{Provider: p, limiter: limiter}
}

func (r *rateLimited) Complete(ctx context.Context, systemPrompt string, turns []Message) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", NewProviderError(r.Name(), "", fmt.Errorf("%w: %v", ErrRateLimited, err))
	}
	return r.Provider.Complete(ctx, systemPrompt, turns)
}
