// Package rag adapts the index manager's document search into the
// rag_search tool-registry entry point, following the
// Descriptor()/Handle() shape internal/tools/marketdata and
// internal/predict already establish.
package rag

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/models"
	pkgmodels "github.com/stockgateway/stockgateway/pkg/models"
)

// Searcher is the index manager collaborator.
type Searcher interface {
	Search(ctx context.Context, req *pkgmodels.DocumentSearchRequest) (*pkgmodels.DocumentSearchResponse, error)
}

// Tool wraps a Searcher into a registrable rag_search tool.
type Tool struct {
	search Searcher
}

// New builds the rag_search tool.
func New(search Searcher) *Tool {
	return &Tool{search: search}
}

// Descriptor returns the rag_search registry descriptor.
func (t *Tool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "rag_search",
		Description: "Search indexed documents (filings, notes, research) for passages relevant to a query.",
		Schema: mustSchema(map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{"type": "string", "description": "The search query."},
				"limit": map[string]interface{}{"type": "integer", "description": "Maximum results to return (default 5)."},
			},
			"required": []string{"query"},
		}),
		Capabilities:   []string{"document-search"},
		Heavy:          true,
		DefaultTimeout: 5 * time.Second,
	}
}

type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Handle implements the rag_search tool handler.
func (t *Tool) Handle(ctx context.Context, params json.RawMessage) (string, error) {
	var args searchArgs
	if err := json.Unmarshal(params, &args); err != nil || args.Query == "" {
		return "", gatewayerr.New(gatewayerr.ToolArgInvalid, "query is required", err)
	}
	if args.Limit <= 0 {
		args.Limit = 5
	}

	resp, err := t.search.Search(ctx, &pkgmodels.DocumentSearchRequest{
		Query: args.Query,
		Limit: args.Limit,
	})
	if err != nil {
		return "", gatewayerr.New(gatewayerr.UpstreamUnavailable, "document search failed", err)
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
