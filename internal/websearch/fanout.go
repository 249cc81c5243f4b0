// Package websearch is the parallel multi-provider fan-out described in
// spec.md §4.6: the primary (Brave) and fallback (DuckDuckGo-like)
// backends are queried concurrently, each gated by its own circuit
// breaker and rate limiter with its own timeout, and merged by URL with
// primary-preferred ordering. Generalizes
// internal/tools/websearch.WebSearchTool's single-backend-with-fallback
// path into true concurrent fan-out.
package websearch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stockgateway/stockgateway/internal/breaker"
	"github.com/stockgateway/stockgateway/internal/models"
	"github.com/stockgateway/stockgateway/internal/tools/websearch"
)

// Mode is the web-search speed/quality tradeoff named by WEB_SEARCH_MODE.
type Mode string

const (
	ModeFast          Mode = "fast"
	ModeBalanced      Mode = "balanced"
	ModeComprehensive Mode = "comprehensive"
)

// Config configures the fan-out provider.
type Config struct {
	ResultCount      int
	PrimaryTimeout   time.Duration
	FallbackTimeout  time.Duration
	Mode             Mode
}

// DefaultConfig mirrors spec.md §6's SEARCH_PRIMARY_TIMEOUT_MS (1500) and
// SEARCH_FALLBACK_TIMEOUT_MS (2000).
func DefaultConfig() Config {
	return Config{
		ResultCount:     8,
		PrimaryTimeout:  1500 * time.Millisecond,
		FallbackTimeout: 2000 * time.Millisecond,
		Mode:            ModeBalanced,
	}
}

// Provider fans a query out to the primary and fallback backends in
// parallel and merges their results.
type Provider struct {
	cfg      Config
	primary  *websearch.WebSearchTool
	fallback *websearch.WebSearchTool
	breakers *breaker.Registry
	primaryLimiter  *rate.Limiter
	fallbackLimiter *rate.Limiter
}

// New builds a fan-out Provider. primary and fallback may be the same
// underlying *WebSearchTool configured for different backends (Brave and
// DuckDuckGo respectively), or distinct instances.
func New(cfg Config, primary, fallback *websearch.WebSearchTool, breakers *breaker.Registry) *Provider {
	if cfg.ResultCount <= 0 {
		cfg = DefaultConfig()
	}
	return &Provider{
		cfg: cfg, primary: primary, fallback: fallback, breakers: breakers,
		// Search providers: 0.3s minimum inter-call spacing per spec.md §4.3.
		primaryLimiter:  rate.NewLimiter(rate.Every(300*time.Millisecond), 3),
		fallbackLimiter: rate.NewLimiter(rate.Every(300*time.Millisecond), 3),
	}
}

// Search runs the fan-out: both providers are queried concurrently under
// their own breaker/limiter/timeout; neither a breaker-open nor a timeout
// from either provider causes Search itself to fail -- that provider
// simply contributes an empty slice, per spec.md §4.6's "never throws on
// upstream failure" contract. fastMode skips content extraction.
func (p *Provider) Search(ctx context.Context, query string, fastMode bool) []models.SearchResult {
	var wg sync.WaitGroup
	var primaryResults, fallbackResults []models.SearchResult

	wg.Add(2)
	go func() {
		defer wg.Done()
		primaryResults = p.run(ctx, breaker.UpstreamBrave, p.primary, websearch.BackendBraveSearch, p.primaryLimiter, p.cfg.PrimaryTimeout, query, fastMode)
	}()
	go func() {
		defer wg.Done()
		fallbackResults = p.run(ctx, breaker.UpstreamDDG, p.fallback, websearch.BackendDuckDuckGo, p.fallbackLimiter, p.cfg.FallbackTimeout, query, fastMode)
	}()
	wg.Wait()

	return merge(primaryResults, fallbackResults)
}

// run executes one provider's search under its breaker, limiter, and
// deadline, converting any failure into an empty result set rather than
// propagating the error.
func (p *Provider) run(ctx context.Context, upstream string, tool *websearch.WebSearchTool, backend websearch.SearchBackend, limiter *rate.Limiter, timeout time.Duration, query string, fastMode bool) []models.SearchResult {
	if tool == nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := limiter.Wait(callCtx); err != nil {
		return nil
	}

	results, err := breaker.Run(callCtx, p.breakers, upstream, func(innerCtx context.Context) ([]models.SearchResult, error) {
		count := p.cfg.ResultCount
		resp, err := tool.SearchBackend(innerCtx, backend, websearch.SearchParams{
			Query:          query,
			ResultCount:    count,
			ExtractContent: !fastMode,
		})
		if err != nil {
			return nil, err
		}
		return convert(resp, backend), nil
	})
	if err != nil {
		return nil
	}
	return results
}

func convert(resp *websearch.SearchResponse, backend websearch.SearchBackend) []models.SearchResult {
	out := make([]models.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, models.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       r.Snippet,
			ExtractedText: r.Content,
			Provider:      string(backend),
			RawScore:      1.0,
		})
	}
	return out
}

// merge combines primary and fallback results by URL, preferring the
// primary's copy and position when a URL appears in both, per spec.md
// §4.6's "merged by URL (primary preferred, position preserved)".
func merge(primary, fallback []models.SearchResult) []models.SearchResult {
	seen := make(map[string]bool, len(primary)+len(fallback))
	out := make([]models.SearchResult, 0, len(primary)+len(fallback))
	for _, r := range primary {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	for _, r := range fallback {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}
