// Package breaker wires the generic circuit breaker primitive
// (internal/infra.CircuitBreaker) into the gateway's named upstreams and
// translates its sentinel error into the gatewayerr taxonomy.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/infra"
)

// Named upstreams consulted by C6 and C8.
const (
	UpstreamBrave   = "brave"
	UpstreamDDG     = "ddgs"
	UpstreamWebFetch = "web-fetch"
	UpstreamQuotes  = "quotes"
)

// ModelProvider returns the breaker name for a model provider, e.g.
// "model:anthropic".
func ModelProvider(name string) string { return "model:" + name }

// Tunables per upstream, per spec.md §4.2 (failure threshold 3-5,
// recovery seconds 30-120).
type Tunables struct {
	FailureThreshold int
	RecoverySeconds  int
}

var defaultTunables = map[string]Tunables{
	UpstreamBrave:    {FailureThreshold: 4, RecoverySeconds: 30},
	UpstreamDDG:      {FailureThreshold: 5, RecoverySeconds: 30},
	UpstreamWebFetch: {FailureThreshold: 4, RecoverySeconds: 45},
	UpstreamQuotes:   {FailureThreshold: 5, RecoverySeconds: 60},
}

// Registry is the process-wide breaker registry. One instance is shared
// by C6 and C8 call sites.
type Registry struct {
	reg *infra.CircuitBreakerRegistry
	cfg map[string]Tunables
}

// NewRegistry builds a registry seeded with the defaults above; extra
// overrides (e.g. loaded from Config) may be supplied.
func NewRegistry(overrides map[string]Tunables) *Registry {
	cfg := make(map[string]Tunables, len(defaultTunables))
	for k, v := range defaultTunables {
		cfg[k] = v
	}
	for k, v := range overrides {
		cfg[k] = v
	}
	return &Registry{
		reg: infra.NewCircuitBreakerRegistry(infra.CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
		}),
		cfg: cfg,
	}
}

func (r *Registry) breaker(upstream string) *infra.CircuitBreaker {
	t, ok := r.cfg[upstream]
	if !ok {
		return r.reg.Get(upstream)
	}
	return r.reg.GetWithConfig(upstream, infra.CircuitBreakerConfig{
		FailureThreshold: t.FailureThreshold,
		SuccessThreshold: 1,
		Timeout:          time.Duration(t.RecoverySeconds) * time.Second,
	})
}

// Run executes fn under the named upstream's breaker. A call rejected
// because the breaker is open surfaces as gatewayerr.UpstreamUnavailable.
func Run[T any](ctx context.Context, r *Registry, upstream string, fn func(context.Context) (T, error)) (T, error) {
	result, err := infra.ExecuteWithResult(r.breaker(upstream), ctx, fn)
	if errors.Is(err, infra.ErrCircuitOpen) {
		var zero T
		return zero, gatewayerr.New(gatewayerr.UpstreamUnavailable, upstream+" unavailable (breaker open)", err)
	}
	return result, err
}

// State returns the current state of the named upstream's breaker.
func (r *Registry) State(upstream string) string { return r.breaker(upstream).State() }

// Stats exposes all breaker states/counters for C12.
func (r *Registry) Stats() []infra.CircuitBreakerStats { return r.reg.Stats() }
