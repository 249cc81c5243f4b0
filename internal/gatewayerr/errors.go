// Package gatewayerr defines the closed error-kind taxonomy shared across
// the orchestration engine: every external boundary (tool dispatch, model
// call, cache lookup, HTTP handler) classifies failures into one of these
// kinds so callers can decide recover-vs-fatal without string matching.
package gatewayerr

import (
	"errors"
	"fmt"
)

// Kind is a stable, comparable error classification. It is never extended
// at runtime; the set below is closed.
type Kind string

const (
	InvalidRequest      Kind = "invalid_request"
	NotFound            Kind = "not_found"
	RateLimited         Kind = "rate_limited"
	UpstreamUnavailable Kind = "upstream_unavailable"
	Timeout             Kind = "timeout"
	ToolArgInvalid      Kind = "tool_arg_invalid"
	ModelError          Kind = "model_error"
	Internal            Kind = "internal"
)

// Retryable reports whether a tool-level caller may reasonably retry once
// with jittered backoff before surfacing the error to the model.
func (k Kind) Retryable() bool {
	switch k {
	case RateLimited, Timeout:
		return true
	default:
		return false
	}
}

// Error wraps an underlying cause with a Kind and a message safe to show
// to an end user or feed back into the model as a tool result. Stack-level
// detail belongs in the Cause, which is logged but never serialized to a
// client.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a classified error with a safe message.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts a *Error from err's chain.
func As(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or Internal if err does not carry one.
func KindOf(err error) Kind {
	if ge, ok := As(err); ok {
		return ge.Kind
	}
	return Internal
}
