package providers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stockgateway/stockgateway/internal/modelclient"
	"github.com/stockgateway/stockgateway/internal/models"
)

func TestBedrockConvertMessages(t *testing.T) {
	p := &BedrockProvider{defaultModel: "anthropic.claude-3-sonnet-20240229-v1:0"}

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
			name: "tool result",
			messages: []modelclient.CompletionMessage{
				{Role: "tool", Content: "150.25", ToolCallID: "call_1"},
			},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.convertMessages(context.Background(), tt.messages)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("got %d messages, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestBedrockModelsAndName(t *testing.T) {
	p := &BedrockProvider{defaultModel: "anthropic.claude-3-sonnet-20240229-v1:0"}
	if p.Name() != "bedrock" {
		t.Errorf("unexpected name: %s", p.Name())
	}
	if !p.SupportsTools() {
		t.Error("expected SupportsTools to be true")
	}
	models := p.Models()
	if len(models) == 0 {
		t.Fatal("expected at least one model")
	}
	for _, m := range models {
		if m.ID == "" || m.ContextSize == 0 {
			t.Errorf("model missing required fields: %+v", m)
		}
	}
}

func TestBedrockCompleteRequiresClient(t *testing.T) {
	p := &BedrockProvider{}
	_, err := p.Complete(context.Background(), &modelclient.CompletionRequest{Model: "anthropic.claude-3-sonnet-20240229-v1:0"})
	if err == nil {
		t.Fatal("expected error when client is not initialized")
	}
}
