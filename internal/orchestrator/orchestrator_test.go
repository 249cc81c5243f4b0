package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stockgateway/stockgateway/internal/breaker"
	"github.com/stockgateway/stockgateway/internal/cache"
	"github.com/stockgateway/stockgateway/internal/convstore"
	"github.com/stockgateway/stockgateway/internal/modelclient"
	"github.com/stockgateway/stockgateway/internal/models"
	"github.com/stockgateway/stockgateway/internal/selector"
	"github.com/stockgateway/stockgateway/internal/stream"
	"github.com/stockgateway/stockgateway/internal/toolregistry"
)

// fakeProvider answers a fixed script of chunk batches, one batch per
// call to Complete, so a test can script a multi-round tool-calling turn.
type fakeProvider struct {
	name    string
	batches [][]*modelclient.CompletionChunk
	calls   int
}

func (f *fakeProvider) Complete(ctx context.Context, req *modelclient.CompletionRequest) (<-chan *modelclient.CompletionChunk, error) {
	batch := f.batches[f.calls]
	f.calls++
	ch := make(chan *modelclient.CompletionChunk, len(batch))
	for _, c := range batch {
		ch <- c
	}
	close(ch)
	return ch, nil
}
func (f *fakeProvider) Name() string                { return f.name }
func (f *fakeProvider) Models() []modelclient.Model { return []modelclient.Model{{ID: "fast"}} }
func (f *fakeProvider) SupportsTools() bool         { return true }

func newTestOrchestrator(t *testing.T, batches [][]*modelclient.CompletionChunk) (*Orchestrator, *fakeProvider) {
	t.Helper()
	provider := &fakeProvider{name: "fake", batches: batches}
	aliases, err := modelclient.NewAliasTable(map[string]modelclient.Deployment{
		"default": {Provider: "fake", Model: "fast"},
	}, "default")
	if err != nil {
		t.Fatalf("NewAliasTable: %v", err)
	}
	client := modelclient.NewClient(map[string]modelclient.LLMProvider{"fake": provider}, aliases, breaker.NewRegistry(nil))

	registry := toolregistry.NewRegistry()
	schema := json.RawMessage(`{"type":"object","properties":{"symbol":{"type":"string"}},"required":["symbol"]}`)
	if err := registry.Register(models.ToolDescriptor{Name: "get_stock_quote", Description: "quote", Schema: schema}, func(ctx context.Context, args json.RawMessage) (string, error) {
		return `{"price":172.34}`, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	executor := toolregistry.NewExecutor(registry, toolregistry.DefaultExecutorConfig())
	heuristic := selector.NewHeuristic(selector.DefaultHeuristicConfig())
	sel := selector.AsSelector(heuristic)
	conv := convstore.NewStore(0, 0)
	responses := cache.NewResponseCache()
	simple := cache.NewSimpleQueryCache()

	settings := DefaultSettings()
	settings.DefaultModelAlias = "default"
	settings.TurnDeadline = 5 * time.Second

	return New(client, registry, executor, sel, heuristic, conv, responses, simple, settings), provider
}

func TestOrchestratorNoToolCallAnswersDirectly(t *testing.T) {
	o, _ := newTestOrchestrator(t, [][]*modelclient.CompletionChunk{
		{{Text: "Hello there"}, {Done: true, InputTokens: 5, OutputTokens: 3}},
	})

	mux := stream.New()
	done := make(chan struct{})
	var events []stream.Event
	go func() {
		for ev := range mux.Events() {
			events = append(events, ev)
		}
		close(done)
	}()

	result, err := o.Run(context.Background(), Request{Prompt: "Hello"}, mux)
	<-done
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer != "Hello there" {
		t.Errorf("expected answer 'Hello there', got %q", result.Answer)
	}
	if events[0].Type != stream.EventStart {
		t.Errorf("expected first event start, got %s", events[0].Type)
	}
	if events[len(events)-1].Type != stream.EventDone {
		t.Errorf("expected last event done, got %s", events[len(events)-1].Type)
	}
}

func TestOrchestratorToolCallRoundTrip(t *testing.T) {
	o, _ := newTestOrchestrator(t, [][]*modelclient.CompletionChunk{
		{
			{ToolCall: &models.ToolCallRequest{ID: "call1", ToolName: "get_stock_quote", Arguments: json.RawMessage(`{"symbol":"AAPL"}`)}},
			{Done: true, InputTokens: 10, OutputTokens: 2},
		},
		{
			{Text: "AAPL is trading at 172.34"},
			{Done: true, InputTokens: 20, OutputTokens: 8},
		},
	})

	mux := stream.New()
	go func() {
		for range mux.Events() {
		}
	}()

	result, err := o.Run(context.Background(), Request{Prompt: "What is the current price of AAPL?"}, mux)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer != "AAPL is trading at 172.34" {
		t.Errorf("expected final synthesized answer, got %q", result.Answer)
	}
}

func TestOrchestratorCacheHitOnRepeat(t *testing.T) {
	o, provider := newTestOrchestrator(t, [][]*modelclient.CompletionChunk{
		{{Text: "cached answer"}, {Done: true, InputTokens: 1, OutputTokens: 1}},
	})

	mux1 := stream.New()
	go func() {
		for range mux1.Events() {
		}
	}()
	first, err := o.Run(context.Background(), Request{Prompt: "Explain diversification"}, mux1)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Cached {
		t.Error("first call should not be cached")
	}

	mux2 := stream.New()
	go func() {
		for range mux2.Events() {
		}
	}()
	second, err := o.Run(context.Background(), Request{Prompt: "Explain diversification"}, mux2)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !second.Cached {
		t.Error("second identical call should be served from cache")
	}
	if second.Answer != first.Answer {
		t.Errorf("cached answer mismatch: %q vs %q", second.Answer, first.Answer)
	}
	if provider.calls != 1 {
		t.Errorf("expected model to be called once, got %d", provider.calls)
	}
}
