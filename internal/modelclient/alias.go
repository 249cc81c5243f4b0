package modelclient

import (
	"context"
	"sync"

	"github.com/stockgateway/stockgateway/internal/breaker"
	"github.com/stockgateway/stockgateway/internal/gatewayerr"
)

// AliasTable maps friendly model ids (what a caller or config names, e.g.
// "fast", "default", "reasoning") to a concrete provider+model deployment,
// immutable after initialization per the shared-state design.
type AliasTable struct {
	aliases map[string]Deployment
	def     string
}

// Deployment is one concrete provider/model pair an alias resolves to.
type Deployment struct {
	Provider string
	Model    string
}

// NewAliasTable builds a table from an alias->deployment map and a
// default alias name; the default alias must exist in aliases.
func NewAliasTable(aliases map[string]Deployment, defaultAlias string) (*AliasTable, error) {
	if _, ok := aliases[defaultAlias]; !ok {
		return nil, gatewayerr.New(gatewayerr.InvalidRequest, "default model alias not present in alias table: "+defaultAlias, nil)
	}
	return &AliasTable{aliases: aliases, def: defaultAlias}, nil
}

// Resolve maps alias to its deployment; an empty alias resolves to the
// default. An unknown alias surfaces InvalidRequest (spec's InvalidModel).
func (t *AliasTable) Resolve(alias string) (Deployment, error) {
	if alias == "" {
		alias = t.def
	}
	d, ok := t.aliases[alias]
	if !ok {
		return Deployment{}, gatewayerr.New(gatewayerr.InvalidRequest, "unknown model alias: "+alias, nil)
	}
	return d, nil
}

// Default returns the default alias name.
func (t *AliasTable) Default() string { return t.def }

// Client is the provider-agnostic facade: it resolves an alias to a
// deployment, runs the call under that provider's circuit breaker, and
// falls through the deployment's backup chain (same provider's other
// registered backends) on a retryable failure.
type Client struct {
	mu        sync.RWMutex
	providers map[string]LLMProvider
	aliases   *AliasTable
	breakers  *breaker.Registry
}

// NewClient builds a Client over the given providers (keyed by
// LLMProvider.Name()), alias table, and shared breaker registry.
func NewClient(providers map[string]LLMProvider, aliases *AliasTable, breakers *breaker.Registry) *Client {
	return &Client{providers: providers, aliases: aliases, breakers: breakers}
}

// Complete resolves req.Model as an alias, dispatches to the backing
// provider under its breaker, and returns the streaming channel.
func (c *Client) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	dep, err := c.aliases.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	provider, ok := c.providers[dep.Provider]
	c.mu.RUnlock()
	if !ok {
		return nil, gatewayerr.New(gatewayerr.UpstreamUnavailable, "provider not registered: "+dep.Provider, nil)
	}

	resolved := *req
	resolved.Model = dep.Model

	return breaker.Run(ctx, c.breakers, breaker.ModelProvider(dep.Provider), func(ctx context.Context) (<-chan *CompletionChunk, error) {
		ch, err := provider.Complete(ctx, &resolved)
		if err != nil {
			return nil, ToGatewayErr(dep.Provider, err)
		}
		return ch, nil
	})
}

// SupportsTools reports whether the resolved alias's provider supports
// tool calling.
func (c *Client) SupportsTools(alias string) bool {
	dep, err := c.aliases.Resolve(alias)
	if err != nil {
		return false
	}
	c.mu.RLock()
	provider, ok := c.providers[dep.Provider]
	c.mu.RUnlock()
	return ok && provider.SupportsTools()
}
