// Package marketdata wires the quote/history/news tools named in
// spec.md §4.4 to a pluggable upstream provider, gated by the shared
// rate limiter (C3, "quotes" bucket: 1/s, 55/min sustained) and circuit
// breaker (C2, "quotes" upstream).
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stockgateway/stockgateway/internal/breaker"
	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/models"
	"github.com/stockgateway/stockgateway/internal/ratelimit"
)

// Quote is a single point-in-time price.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	AsOf          time.Time `json:"as_of"`
}

// HistoryPoint is one bar of historical price data.
type HistoryPoint struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
	Volume int64  `json:"volume"`
}

// NewsItem is one headline from the news upstream.
type NewsItem struct {
	Headline  string    `json:"headline"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	Sentiment string    `json:"sentiment,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Provider is the external market-data collaborator. The concrete
// implementation (a real quotes API client) lives outside this core; a
// deterministic StubProvider ships for local/dev/test use.
type Provider interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
	History(ctx context.Context, symbol string, days int) ([]HistoryPoint, error)
	News(ctx context.Context, symbol string, limit int) ([]NewsItem, error)
}

// Tools bundles the three market-data tool implementations over one
// rate-limited, breaker-gated provider.
type Tools struct {
	provider Provider
	limiter  *ratelimit.MultiLimiter
	breakers *breaker.Registry
}

// New builds the market-data tool bundle. limiter should be the
// per-second+per-minute composed bucket spec.md §4.3 describes for the
// "quotes" upstream.
func New(provider Provider, limiter *ratelimit.MultiLimiter, breakers *breaker.Registry) *Tools {
	return &Tools{provider: provider, limiter: limiter, breakers: breakers}
}

func (t *Tools) acquire(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	if !t.limiter.Acquire(ctx, breaker.UpstreamQuotes) {
		return gatewayerr.New(gatewayerr.RateLimited, "quotes upstream rate limit exceeded", nil)
	}
	return nil
}

type quoteArgs struct {
	Symbol string `json:"symbol"`
}

// QuoteDescriptor returns the get_stock_quote registry descriptor.
func (t *Tools) QuoteDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "get_stock_quote",
		Description: "Get the current price and day change for a stock ticker.",
		Schema:      mustSchema(symbolSchema()),
		Capabilities: []string{"market-data"},
	}
}

// Quote handles get_stock_quote.
func (t *Tools) Quote(ctx context.Context, params json.RawMessage) (string, error) {
	var args quoteArgs
	if err := json.Unmarshal(params, &args); err != nil || args.Symbol == "" {
		return "", gatewayerr.New(gatewayerr.ToolArgInvalid, "symbol is required", err)
	}
	if err := t.acquire(ctx); err != nil {
		return "", err
	}

	quote, err := breaker.Run(ctx, t.breakers, breaker.UpstreamQuotes, func(ctx context.Context) (Quote, error) {
		return t.provider.Quote(ctx, args.Symbol)
	})
	if err != nil {
		return "", classify(err)
	}

	payload, err := json.Marshal(quote)
	if err != nil {
		return "", fmt.Errorf("encode quote: %w", err)
	}
	return string(payload), nil
}

type historyArgs struct {
	Symbol string `json:"symbol"`
	Days   int    `json:"days"`
}

// HistoryDescriptor returns the get_stock_history registry descriptor.
func (t *Tools) HistoryDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "get_stock_history",
		Description: "Get historical daily price bars for a stock ticker.",
		Schema: mustSchema(map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"symbol": map[string]interface{}{"type": "string"},
				"days":   map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 365, "description": "Number of trailing days of history (default 30)."},
			},
			"required": []string{"symbol"},
		}),
		Capabilities: []string{"market-data"},
		Heavy:        true,
	}
}

// History handles get_stock_history.
func (t *Tools) History(ctx context.Context, params json.RawMessage) (string, error) {
	var args historyArgs
	if err := json.Unmarshal(params, &args); err != nil || args.Symbol == "" {
		return "", gatewayerr.New(gatewayerr.ToolArgInvalid, "symbol is required", err)
	}
	if args.Days <= 0 {
		args.Days = 30
	}
	if err := t.acquire(ctx); err != nil {
		return "", err
	}

	history, err := breaker.Run(ctx, t.breakers, breaker.UpstreamQuotes, func(ctx context.Context) ([]HistoryPoint, error) {
		return t.provider.History(ctx, args.Symbol, args.Days)
	})
	if err != nil {
		return "", classify(err)
	}

	payload, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}
	return string(payload), nil
}

type newsArgs struct {
	Symbol string `json:"symbol"`
	Limit  int    `json:"limit"`
}

// NewsDescriptor returns the get_stock_news registry descriptor.
func (t *Tools) NewsDescriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "get_stock_news",
		Description: "Get recent news headlines for a stock ticker.",
		Schema: mustSchema(map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"symbol": map[string]interface{}{"type": "string"},
				"limit":  map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 50, "description": "Maximum headlines to return (default 10)."},
			},
			"required": []string{"symbol"},
		}),
		Capabilities: []string{"market-data"},
	}
}

// News handles get_stock_news.
func (t *Tools) News(ctx context.Context, params json.RawMessage) (string, error) {
	var args newsArgs
	if err := json.Unmarshal(params, &args); err != nil || args.Symbol == "" {
		return "", gatewayerr.New(gatewayerr.ToolArgInvalid, "symbol is required", err)
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}
	if err := t.acquire(ctx); err != nil {
		return "", err
	}

	news, err := breaker.Run(ctx, t.breakers, breaker.UpstreamQuotes, func(ctx context.Context) ([]NewsItem, error) {
		return t.provider.News(ctx, args.Symbol, args.Limit)
	})
	if err != nil {
		return "", classify(err)
	}

	payload, err := json.Marshal(news)
	if err != nil {
		return "", fmt.Errorf("encode news: %w", err)
	}
	return string(payload), nil
}

func symbolSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"symbol": map[string]interface{}{"type": "string", "description": "Ticker symbol, e.g. AAPL."},
		},
		"required": []string{"symbol"},
	}
}

// classify maps an opaque provider error into the gatewayerr taxonomy
// when it isn't already one (e.g. a circuit-open error from breaker.Run).
func classify(err error) error {
	if _, ok := gatewayerr.As(err); ok {
		return err
	}
	return gatewayerr.New(gatewayerr.UpstreamUnavailable, "market-data upstream error", err)
}

func mustSchema(schema map[string]interface{}) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
