// Package stream implements the SSE-style event framing and
// back-pressure described in spec.md §4.11: a typed event writer over an
// orchestrator's event channel, multiplexing model token deltas with
// tool-lifecycle events for a single streamed turn.
package stream

import (
	"encoding/json"
)

// EventType is the closed set of SSE event kinds the multiplexer emits.
type EventType string

const (
	EventStart       EventType = "start"
	EventContent     EventType = "content"
	EventToolCall    EventType = "tool_call"
	EventToolsCalled EventType = "tools_called"
	EventError       EventType = "error"
	EventDone        EventType = "done"
)

// ToolCallStatus is the lifecycle state carried on a tool_call event.
type ToolCallStatus string

const (
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallError     ToolCallStatus = "error"
)

// Event is one framed record of the stream. Only the fields relevant to
// Type are populated; the rest are omitted from the wire encoding.
type Event struct {
	Type EventType `json:"type"`

	// content
	Delta string `json:"delta,omitempty"`

	// tool_call
	ToolName   string         `json:"name,omitempty"`
	ToolStatus ToolCallStatus `json:"status,omitempty"`
	ToolError  string         `json:"error,omitempty"`

	// tools_called
	ToolsCalled int `json:"tools_called,omitempty"`
	Round       int `json:"round,omitempty"`

	// error
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`

	// done
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	Cached       bool   `json:"cached,omitempty"`
}

// Marshal renders the event as the SSE `data: <json>\n\n` wire format.
func (e Event) Marshal() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+8)
	out = append(out, "data: "...)
	out = append(out, body...)
	out = append(out, '\n', '\n')
	return out, nil
}

// StartEvent is the first event of every stream.
func StartEvent() Event { return Event{Type: EventStart} }

// ContentEvent carries one text delta.
func ContentEvent(delta string) Event { return Event{Type: EventContent, Delta: delta} }

// ToolCallEvent reports a tool's lifecycle transition.
func ToolCallEvent(name string, status ToolCallStatus, errMsg string) Event {
	return Event{Type: EventToolCall, ToolName: name, ToolStatus: status, ToolError: errMsg}
}

// ToolsCalledEvent summarizes one completed round's tool dispatch.
func ToolsCalledEvent(round, count int) Event {
	return Event{Type: EventToolsCalled, Round: round, ToolsCalled: count}
}

// ErrorEvent terminates the stream with a classified, user-safe message.
func ErrorEvent(kind, message string) Event {
	return Event{Type: EventError, Kind: kind, Message: message}
}

// DoneEvent terminates the stream successfully with aggregate metadata.
func DoneEvent(model string, inputTokens, outputTokens int, cached bool) Event {
	return Event{Type: EventDone, Model: model, InputTokens: inputTokens, OutputTokens: outputTokens, Cached: cached}
}
