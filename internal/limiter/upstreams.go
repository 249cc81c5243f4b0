// Package limiter wires the generic token-bucket primitive
// (internal/ratelimit) into the gateway's named upstreams, per spec.md
// §4.3: one-per-second/55-per-minute-sustained for the quotes provider
// (composed via MultiLimiter), 0.3s minimum spacing for search
// providers.
package limiter

import (
	"context"

	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/ratelimit"
)

// Upstreams bundles the per-upstream limiters used throughout the
// gateway.
type Upstreams struct {
	Quotes  *ratelimit.MultiLimiter
	Search  *ratelimit.Limiter
}

// NewUpstreams builds the default limiter set.
func NewUpstreams() *Upstreams {
	// Burst bucket: 1 req/s with a small burst.
	burst := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 1, BurstSize: 2, Enabled: true})
	// Sustained bucket: 55/min averaged, larger burst window so the
	// burst bucket is the binding constraint second-to-second.
	sustained := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 55.0 / 60.0, BurstSize: 55, Enabled: true})

	search := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 1.0 / 0.3, BurstSize: 1, Enabled: true})

	return &Upstreams{
		Quotes: ratelimit.NewMultiLimiter(burst, sustained),
		Search: search,
	}
}

// AcquireQuotes blocks (bounded by ctx) for a token from the quotes
// upstream's composed bucket, surfacing RateLimited on timeout.
func (u *Upstreams) AcquireQuotes(ctx context.Context, symbol string) error {
	if !u.Quotes.Acquire(ctx, symbol) {
		return gatewayerr.New(gatewayerr.RateLimited, "quotes upstream rate limit exceeded", ctx.Err())
	}
	return nil
}

// AcquireSearch blocks (bounded by ctx) for a token from the named
// search provider's bucket.
func (u *Upstreams) AcquireSearch(ctx context.Context, provider string) error {
	if !u.Search.Acquire(ctx, provider) {
		return gatewayerr.New(gatewayerr.RateLimited, provider+" search rate limit exceeded", ctx.Err())
	}
	return nil
}
