package selector

import (
	"context"

	"github.com/stockgateway/stockgateway/internal/models"
)

// Selector is satisfied by both the plain Heuristic and the MLSelector, so
// callers (the orchestrator) depend only on the behavior, not the mode.
type Selector interface {
	Select(ctx context.Context, content string, allowed []models.ToolDescriptor) []string
}

// heuristicAdapter adapts Heuristic's context-free Select to the Selector
// interface so it can stand in directly when ML mode is disabled.
type heuristicAdapter struct{ h *Heuristic }

func (a heuristicAdapter) Select(ctx context.Context, content string, allowed []models.ToolDescriptor) []string {
	return a.h.Select(content, allowed)
}

// AsSelector wraps a Heuristic as a Selector.
func AsSelector(h *Heuristic) Selector { return heuristicAdapter{h: h} }
