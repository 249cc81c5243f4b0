// Package websearchtool adapts the C6 fan-out provider and the C7
// ranker/synthesizer into the perplexity_search tool-registry entry
// point (spec.md §4.6/§4.7, S3's "parallel web search" scenario),
// generalizing internal/tools/websearch.WebSearchTool's single-call
// shape into the fan-out+rerank+cite pipeline.
package websearchtool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/models"
	"github.com/stockgateway/stockgateway/internal/ranker"
)

// SearchProvider is the fan-out collaborator (internal/websearch.Provider).
type SearchProvider interface {
	Search(ctx context.Context, query string, fastMode bool) []models.SearchResult
}

// Tool bundles fan-out search, ranking, and optional synthesis behind
// one tool handler.
type Tool struct {
	search SearchProvider
	rank   *ranker.Ranker
	synth  *ranker.Synthesizer // nil elides synthesis, per spec.md §4.10
}

// New builds the perplexity_search tool. synth may be nil, which
// elides the synthesis LLM call entirely (its Respond degrades to
// citation assembly only).
func New(search SearchProvider, rank *ranker.Ranker, synth *ranker.Synthesizer) *Tool {
	return &Tool{search: search, rank: rank, synth: synth}
}

// Descriptor returns the perplexity_search registry descriptor.
func (t *Tool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "perplexity_search",
		Description: "Search the web across multiple providers, rerank by relevance, and return cited results (optionally synthesized into a prose answer).",
		Schema: mustSchema(map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{"type": "string", "description": "The search query."},
				"mode":  map[string]interface{}{"type": "string", "enum": []string{"fast", "balanced", "comprehensive"}, "description": "Speed/quality tradeoff (default balanced)."},
			},
			"required": []string{"query"},
		}),
		Capabilities:   []string{"web-search"},
		Heavy:          true,
		DefaultTimeout: 8 * time.Second,
	}
}

type searchArgs struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

// Handle implements the perplexity_search tool handler.
func (t *Tool) Handle(ctx context.Context, params json.RawMessage) (string, error) {
	var args searchArgs
	if err := json.Unmarshal(params, &args); err != nil || args.Query == "" {
		return "", gatewayerr.New(gatewayerr.ToolArgInvalid, "query is required", err)
	}
	fastMode := args.Mode == "fast"

	start := time.Now()
	raw := t.search.Search(ctx, args.Query, fastMode)
	searchTime := time.Since(start)

	ranked := t.rank.RankWithMetrics(ctx, args.Query, raw, fastMode)

	resp, err := t.synth.Respond(ctx, args.Query, ranked, searchTime)
	if err != nil {
		return "", gatewayerr.New(gatewayerr.ModelError, "synthesis failed", err)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return "", gatewayerr.New(gatewayerr.Internal, "failed to encode search response", err)
	}
	return string(payload), nil
}

func mustSchema(schema map[string]interface{}) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
