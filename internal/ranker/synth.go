package ranker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stockgateway/stockgateway/internal/modelclient"
	"github.com/stockgateway/stockgateway/internal/models"
)

// Synthesizer is the optional second C8 call that turns ranked results into
// a grounded answer with inline [n] citation markers. The orchestrator
// (C10) elides this call per spec.md §4.10's synthesis-elision rule; a
// standalone or future-direct caller of C7 can still use it.
type Synthesizer struct {
	client *modelclient.Client
	alias  string
}

// NewSynthesizer builds a Synthesizer over a resolved model alias.
func NewSynthesizer(client *modelclient.Client, alias string) *Synthesizer {
	return &Synthesizer{client: client, alias: alias}
}

// topN caps how many ranked sources are handed to the synthesis prompt;
// beyond this, citation markers in the answer would reference sources the
// model never actually read.
const topN = 8

// Respond builds the citation map and, if s is non-nil, synthesizes an
// answer; otherwise it returns the ranked results and citation map as-is
// with SynthesisTime left at zero, matching the elided-synthesis shape.
func (s *Synthesizer) Respond(ctx context.Context, query string, ranked []models.SearchResult, searchTime time.Duration) (models.PerplexityResponse, error) {
	resp := models.PerplexityResponse{
		Query:      query,
		Results:    ranked,
		Citations:  citationMap(ranked),
		SearchTime: searchTime,
		Confidence: confidence(ranked),
	}
	if s == nil || s.client == nil {
		return resp, nil
	}

	start := time.Now()
	answer, err := s.synthesize(ctx, query, ranked)
	if err != nil {
		return resp, err
	}
	resp.SynthesizedAnswer = answer
	resp.SynthesisTime = time.Since(start)
	return resp, nil
}

func citationMap(ranked []models.SearchResult) map[int]models.Citation {
	m := make(map[int]models.Citation, len(ranked))
	for _, r := range ranked {
		m[r.CitationID] = models.Citation{
			Title:   r.Title,
			URL:     r.URL,
			Domain:  hostOf(r.URL),
			Snippet: r.Snippet,
		}
	}
	return m
}

// confidence is a coarse proxy for the response's overall reliability: the
// top result's combined score, clamped to [0,1].
func confidence(ranked []models.SearchResult) float64 {
	if len(ranked) == 0 {
		return 0
	}
	c := ranked[0].CombinedScore
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

func (s *Synthesizer) synthesize(ctx context.Context, query string, ranked []models.SearchResult) (string, error) {
	n := len(ranked)
	if n > topN {
		n = topN
	}

	var b strings.Builder
	b.WriteString("Answer the question using only the numbered sources below. ")
	b.WriteString("Cite every claim with its source number in square brackets, e.g. [1]. ")
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nSources:\n")
	for _, r := range ranked[:n] {
		fmt.Fprintf(&b, "[%d] %s — %s\n%s\n\n", r.CitationID, r.Title, r.URL, snippetOf(r))
	}

	req := &modelclient.CompletionRequest{
		Model:     s.alias,
		System:    "You are a precise research assistant that only cites the given sources.",
		Messages:  []modelclient.CompletionMessage{{Role: "user", Content: b.String()}},
		MaxTokens: 800,
	}

	ch, err := s.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	var answer strings.Builder
	for chunk := range ch {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		if chunk.Text != "" {
			answer.WriteString(chunk.Text)
		}
		if chunk.Done {
			break
		}
	}
	return answer.String(), nil
}

func snippetOf(r models.SearchResult) string {
	if r.ExtractedText != "" {
		return r.ExtractedText
	}
	return r.Snippet
}
