// Package models defines the conversation data model: Conversation,
// Message, ToolCallRequest, ToolResult and ToolDescriptor, plus the
// search/cache/breaker value types that flow between components.
package models

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// ToolCallRequest is the model's request to execute a named tool with
// validated arguments. Immutable once emitted.
type ToolCallRequest struct {
	ID        string          `json:"id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a ToolCallRequest: either a
// structured payload or a classified error with a user-safe message.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
}

// maxToolResultChars caps the content fed back to the model; longer
// payloads are summarized (truncated with a marker) before storage.
const maxToolResultChars = 4000

// CapResult truncates content over maxToolResultChars, appending a marker
// so the model knows the payload was summarized rather than complete.
func CapResult(content string) string {
	if len(content) <= maxToolResultChars {
		return content
	}
	return content[:maxToolResultChars] + "...[truncated]"
}

// Message is one turn element in a Conversation. Token count is memoized
// and invalidated whenever Content (or the tool-call set) changes via
// SetContent/SetToolCalls rather than direct field mutation.
type Message struct {
	ID          string            `json:"id"`
	Role        Role              `json:"role"`
	Content     string            `json:"content,omitempty"`
	ToolCalls   []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID  string            `json:"tool_call_id,omitempty"` // set on RoleTool messages
	CreatedAt   time.Time         `json:"created_at"`

	mu         sync.Mutex
	tokenCount int
	tokenValid bool
}

// NewMessage constructs a Message with a fresh, unmemoized token count.
func NewMessage(role Role, content string) *Message {
	return &Message{Role: role, Content: content, CreatedAt: time.Now()}
}

// SetContent replaces the message content and invalidates the memoized
// token count.
func (m *Message) SetContent(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Content = content
	m.tokenValid = false
}

// SetToolCalls replaces the tool-call set and invalidates the memoized
// token count (the schema/argument text contributes to estimated size).
func (m *Message) SetToolCalls(calls []ToolCallRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ToolCalls = calls
	m.tokenValid = false
}

// TokenCount returns the memoized token estimate, computing it on first
// access or after the content has changed. Estimation is a deterministic
// heuristic (~4 characters per token, the same proxy the teacher's context
// packer uses) rather than a provider-specific tokenizer, since the core
// never needs exact provider token counts, only a stable truncation
// budget.
func (m *Message) TokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokenValid {
		return m.tokenCount
	}
	n := len(m.Content) / 4
	for _, tc := range m.ToolCalls {
		n += (len(tc.ToolName) + len(tc.Arguments)) / 4
	}
	if n < 1 && (m.Content != "" || len(m.ToolCalls) > 0) {
		n = 1
	}
	m.tokenCount = n
	m.tokenValid = true
	return n
}

// Conversation is an ordered sequence of Messages identified by an opaque
// id. Mutated only by the orchestrator; evicted by TTL from the store.
type Conversation struct {
	ID        string
	Messages  []*Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConversation creates an empty conversation.
func NewConversation(id string) *Conversation {
	now := time.Now()
	return &Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
}

// Append adds messages to the conversation in order and bumps UpdatedAt.
func (c *Conversation) Append(msgs ...*Message) {
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = time.Now()
}

// LastUserContent returns the content of the most recent user message, or
// empty string if none exists.
func (c *Conversation) LastUserContent() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i].Content
		}
	}
	return ""
}

// NormalizePrompt lowercases, trims, collapses internal whitespace, and
// strips a small stopword prefix, for use in cache-fingerprint keys.
var fingerprintStopwords = []string{"please ", "could you ", "can you "}

func NormalizePrompt(prompt string) string {
	s := strings.ToLower(strings.TrimSpace(prompt))
	s = strings.Join(strings.Fields(s), " ")
	for _, sw := range fingerprintStopwords {
		if strings.HasPrefix(s, sw) {
			s = strings.TrimPrefix(s, sw)
			break
		}
	}
	return s
}

// ToolDescriptor describes one entry in the tool registry: its schema,
// capability tags, and execution policy. Handler is not part of the
// descriptor's JSON view; it is attached separately by the registry.
type ToolDescriptor struct {
	Name            string
	Description     string
	Schema          json.RawMessage
	Capabilities    []string
	Heavy           bool
	DefaultTimeout  time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
}

// HasCapability reports whether the descriptor is tagged with cap.
func (d ToolDescriptor) HasCapability(cap string) bool {
	for _, c := range d.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}
