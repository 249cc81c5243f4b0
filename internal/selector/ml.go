package selector

import (
	"context"

	"github.com/stockgateway/stockgateway/internal/cache"
	"github.com/stockgateway/stockgateway/internal/models"
	"github.com/stockgateway/stockgateway/internal/observability"
)

// EmbeddingService is the minimal collaborator the ML classifier needs: a
// provider-agnostic text embedding call. The concrete implementation lives
// outside this core (an external embedding API or local model runner).
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LabeledTool is one classifier output: a tool name with its confidence.
type LabeledTool struct {
	Name       string
	Confidence float64
}

// MultiLabelClassifier scores a query embedding against the known tool
// labels. A real trained model is out of this core's scope; a linear
// stub implementation ships for local/dev use (see StubClassifier).
type MultiLabelClassifier interface {
	Classify(ctx context.Context, embedding []float32) ([]LabeledTool, error)
}

// MLConfig tunes the ML selection mode.
type MLConfig struct {
	Enabled             bool
	ConfidenceThreshold float64
	MaxTools            int
}

// DefaultMLConfig mirrors the defaults documented for C5's ML mode.
func DefaultMLConfig() MLConfig {
	return MLConfig{Enabled: false, ConfidenceThreshold: 0.3, MaxTools: 5}
}

// MLSelector embeds a query, classifies it against known tool labels, and
// falls back to the heuristic mode on any failure (embedding timeout,
// classifier error). Fallbacks are recorded via the supplied recorder so
// C12 can track how often the ML path degrades.
type MLSelector struct {
	cfg        MLConfig
	embeddings *cache.EmbeddingCache
	embedder   EmbeddingService
	classifier MultiLabelClassifier
	heuristic  *Heuristic
	onFallback func(reason string)
}

// NewMLSelector builds an ML-backed selector; heuristic is used both as
// the fallback path and to build the initial candidate tool list.
func NewMLSelector(cfg MLConfig, embeddings *cache.EmbeddingCache, embedder EmbeddingService, classifier MultiLabelClassifier, heuristic *Heuristic, onFallback func(reason string)) *MLSelector {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultMLConfig().ConfidenceThreshold
	}
	if cfg.MaxTools <= 0 {
		cfg.MaxTools = DefaultMLConfig().MaxTools
	}
	if onFallback == nil {
		onFallback = func(string) {}
	}
	return &MLSelector{cfg: cfg, embeddings: embeddings, embedder: embedder, classifier: classifier, heuristic: heuristic, onFallback: onFallback}
}

// Select returns an ordered, confidence-capped tool name list for
// content. It never errors: any failure along the ML path falls back to
// the heuristic selection over allowed.
func (s *MLSelector) Select(ctx context.Context, content string, allowed []models.ToolDescriptor) []string {
	if !s.cfg.Enabled || s.embedder == nil || s.classifier == nil {
		return s.heuristic.Select(content, allowed)
	}

	embedding, ok := s.embeddings.Get(content)
	if !ok {
		var err error
		embedding, err = s.embedder.Embed(ctx, content)
		if err != nil {
			s.onFallback("embedding_error")
			observability.RecordToolSelectorFallback("embedding_error")
			return s.heuristic.Select(content, allowed)
		}
		s.embeddings.Set(content, embedding)
	}

	labels, err := s.classifier.Classify(ctx, embedding)
	if err != nil {
		s.onFallback("classifier_error")
		observability.RecordToolSelectorFallback("classifier_error")
		return s.heuristic.Select(content, allowed)
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, d := range allowed {
		allowedSet[d.Name] = true
	}

	names := make([]string, 0, s.cfg.MaxTools)
	for _, l := range labels {
		if l.Confidence < s.cfg.ConfidenceThreshold {
			continue
		}
		if !allowedSet[l.Name] {
			continue
		}
		names = append(names, l.Name)
		if len(names) >= s.cfg.MaxTools {
			break
		}
	}
	return names
}

// StubClassifier is a deterministic placeholder MultiLabelClassifier for
// local/dev environments without a trained model: it assigns a fixed
// confidence to every known label, so the ML path is exercisable in tests
// without requiring an external model service.
type StubClassifier struct {
	Labels []string
}

// Classify returns every configured label at a flat, threshold-clearing
// confidence regardless of embedding content.
func (s *StubClassifier) Classify(ctx context.Context, embedding []float32) ([]LabeledTool, error) {
	out := make([]LabeledTool, 0, len(s.Labels))
	for _, l := range s.Labels {
		out = append(out, LabeledTool{Name: l, Confidence: 0.5})
	}
	return out, nil
}
