// Package modelclient is the provider-agnostic model client: a common
// LLMProvider interface implemented per backend (Anthropic, OpenAI,
// Bedrock, Gemini), plus the model-alias failover chain that sits above
// them.
package modelclient

import (
	"context"

	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/models"
)

// LLMProvider is implemented once per backend. Implementations must be
// safe for concurrent use; multiple goroutines may call Complete
// simultaneously for different requests.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name, e.g. "anthropic".
	Name() string

	// Models returns the models this provider exposes.
	Models() []Model

	// SupportsTools reports whether the provider can accept Tools in a
	// CompletionRequest.
	SupportsTools() bool
}

// CompletionRequest is a complete request to an LLMProvider: conversation
// history, system prompt, available tools, and generation parameters.
type CompletionRequest struct {
	// Model selects which backend model to use; empty uses the
	// provider's default.
	Model string `json:"model"`

	// System is the system prompt.
	System string `json:"system,omitempty"`

	// Messages is the conversation history in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools lists the tool descriptors the model may call this round.
	Tools []Tool `json:"tools,omitempty"`

	// MaxTokens bounds the generated response length.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// CompletionMessage is one turn in CompletionRequest.Messages.
type CompletionMessage struct {
	Role       string                   `json:"role"`
	Content    string                   `json:"content,omitempty"`
	ToolCalls  []models.ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID string                   `json:"tool_call_id,omitempty"`
}

// CompletionChunk is one chunk of a streaming LLMProvider response.
type CompletionChunk struct {
	Text string `json:"text,omitempty"`

	// ToolCall is populated when the model requests a tool invocation.
	ToolCall *models.ToolCallRequest `json:"tool_call,omitempty"`

	// Done is true on the final chunk of a successful stream.
	Done bool `json:"done,omitempty"`

	// Error terminates the stream; never serialized.
	Error error `json:"-"`

	// InputTokens/OutputTokens are populated only on the final chunk.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// Model describes one model a provider exposes.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContextSize int    `json:"context_size"`
}

// Tool is the wire-format description of a callable tool, built from a
// models.ToolDescriptor by the orchestrator before each request.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      []byte `json:"schema"`
}

// ToFromDescriptor converts a registry descriptor into the wire-format
// Tool a CompletionRequest carries.
func ToolFromDescriptor(d models.ToolDescriptor) Tool {
	return Tool{Name: d.Name, Description: d.Description, Schema: d.Schema}
}

// ErrNoProvidersConfigured is returned when a client has no backend able
// to serve a request (e.g. none configured, or all unhealthy).
var ErrNoProvidersConfigured = gatewayerr.New(gatewayerr.UpstreamUnavailable, "no model providers configured", nil)
