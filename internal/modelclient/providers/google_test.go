package providers

import (
	"encoding/json"
	"testing"

	"github.com/stockgateway/stockgateway/internal/modelclient"
	"github.com/stockgateway/stockgateway/internal/models"
)

func TestGoogleConvertMessages(t *testing.T) {
	p := &GoogleProvider{defaultModel: "gemini-2.0-flash"}

	tests := []struct {
		name     string
		messages []modelclient.CompletionMessage
		wantLen  int
	}{
		{
			name: "system message skipped",
			messages: []modelclient.CompletionMessage{
				{Role: "system", Content: "be terse"},
				{Role: "user", Content: "hello"},
			},
			wantLen: 1,
		},
		{
			name: "assistant tool call",
			messages: []modelclient.CompletionMessage{
				{
					Role: "assistant",
					ToolCalls: []models.ToolCallRequest{
						{ID: "call_1", ToolName: "lookup", Arguments: json.RawMessage(`{"ticker":"AAPL"}`)},
					},
				},
			},
			wantLen: 1,
		},
		{
			name: "tool result resolves name from prior call",
			messages: []modelclient.CompletionMessage{
				{
					Role: "assistant",
					ToolCalls: []models.ToolCallRequest{
						{ID: "call_1", ToolName: "lookup", Arguments: json.RawMessage(`{}`)},
					},
				},
				{Role: "tool", Content: `{"price":150.25}`, ToolCallID: "call_1"},
			},
			wantLen: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.convertMessages(tt.messages)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("got %d contents, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestGetToolNameFromID(t *testing.T) {
	messages := []modelclient.CompletionMessage{
		{
			Role: "assistant",
			ToolCalls: []models.ToolCallRequest{
				{ID: "call_1", ToolName: "lookup"},
			},
		},
	}

	if got := getToolNameFromID("call_1", messages); got != "lookup" {
		t.Errorf("getToolNameFromID = %q, want lookup", got)
	}

	if got := getToolNameFromID("call_unknown_12345", messages); got != "unknown" {
		t.Errorf("fallback parse of unmatched id = %q, want unknown", got)
	}
}

func TestGoogleCountTokens(t *testing.T) {
	p := &GoogleProvider{}
	req := &modelclient.CompletionRequest{
		System: "be terse",
		Messages: []modelclient.CompletionMessage{
			{Role: "user", Content: "what is the price of AAPL?"},
		},
		Tools: []modelclient.Tool{
			{Name: "lookup", Description: "price lookup", Schema: json.RawMessage(`{}`)},
		},
	}

	if got := p.CountTokens(req); got <= 0 {
		t.Errorf("CountTokens = %d, want > 0", got)
	}
}

func TestGoogleModelsAndName(t *testing.T) {
	p := &GoogleProvider{defaultModel: "gemini-2.0-flash"}
	if p.Name() != "google" {
		t.Errorf("unexpected name: %s", p.Name())
	}
	if !p.SupportsTools() {
		t.Error("expected SupportsTools to be true")
	}
	if len(p.Models()) == 0 {
		t.Error("expected at least one model")
	}
}
