package marketdata

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stockgateway/stockgateway/internal/breaker"
)

func newTestTools() *Tools {
	return New(StubProvider{}, nil, breaker.NewRegistry(nil))
}

func TestQuoteReturnsStubPrice(t *testing.T) {
	tools := newTestTools()
	out, err := tools.Quote(context.Background(), json.RawMessage(`{"symbol":"AAPL"}`))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	var q Quote
	if err := json.Unmarshal([]byte(out), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if q.Price != 172.34 {
		t.Errorf("expected stub price 172.34, got %v", q.Price)
	}
	if q.Symbol != "AAPL" {
		t.Errorf("expected symbol AAPL, got %q", q.Symbol)
	}
}

func TestQuoteRejectsMissingSymbol(t *testing.T) {
	tools := newTestTools()
	if _, err := tools.Quote(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing symbol")
	}
}

func TestHistoryDefaultsDaysTo30(t *testing.T) {
	tools := newTestTools()
	out, err := tools.History(context.Background(), json.RawMessage(`{"symbol":"AAPL"}`))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var points []HistoryPoint
	if err := json.Unmarshal([]byte(out), &points); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(points) != 30 {
		t.Errorf("expected 30 default days, got %d", len(points))
	}
}

func TestNewsRespectsLimit(t *testing.T) {
	tools := newTestTools()
	out, err := tools.News(context.Background(), json.RawMessage(`{"symbol":"AAPL","limit":1}`))
	if err != nil {
		t.Fatalf("News: %v", err)
	}
	var items []NewsItem
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}
