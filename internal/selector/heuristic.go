// Package selector chooses which tools to offer the model for a given
// query: a regex/cue-based heuristic mode (always available) and an
// optional embedding-driven ML mode that falls back to the heuristic on
// any failure.
package selector

import (
	"regexp"
	"strings"

	"github.com/stockgateway/stockgateway/internal/models"
)

var (
	tickerRegex   = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
	priceCue      = regexp.MustCompile(`(?i)\b(price|quote|trading at|worth|value)\b`)
	historyCue    = regexp.MustCompile(`(?i)\b(history|historical|chart|over the (last|past)|trend)\b`)
	newsCue       = regexp.MustCompile(`(?i)\b(news|headline|announc|report(ed|s)?)\b`)
	knowledgeCue  = regexp.MustCompile(`(?i)\b(filing|10-k|10-q|annual report|prospectus|documentation)\b`)
	forecastCue   = regexp.MustCompile(`(?i)\b(predict|forecast|projection|outlook for)\b`)
	webSearchCue  = regexp.MustCompile(`(?i)\b(search (the web|online)|look up|find (articles|information) (about|on))\b`)
	greetingRegex = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|thanks|thank you|good (morning|afternoon|evening))\b`)
)

// commonWords excludes frequent capitalized non-ticker tokens (sentence
// starters, common acronyms) from the ticker-cue match.
var commonWords = map[string]bool{
	"I": true, "A": true, "OK": true, "PM": true, "AM": true, "CEO": true,
	"USD": true, "ETF": true, "IPO": true,
}

// HeuristicConfig tunes which tools the heuristic mode will offer.
type HeuristicConfig struct {
	// MaxSimpleQueryTools caps the tools returned for queries the
	// simple-query classifier matches (greetings, bare "X price").
	MaxSimpleQueryTools int
}

// DefaultHeuristicConfig mirrors the tunables documented for C5.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{MaxSimpleQueryTools: 1}
}

// Heuristic selects tool names using regex/ticker/language cues. It never
// errors: an unmatched query yields an empty slice, leaving the
// orchestrator free to add mandatory tools.
type Heuristic struct {
	cfg HeuristicConfig
}

// NewHeuristic builds a Heuristic classifier with cfg; the zero value of
// cfg is replaced with DefaultHeuristicConfig.
func NewHeuristic(cfg HeuristicConfig) *Heuristic {
	if cfg.MaxSimpleQueryTools <= 0 {
		cfg.MaxSimpleQueryTools = DefaultHeuristicConfig().MaxSimpleQueryTools
	}
	return &Heuristic{cfg: cfg}
}

// IsSimpleQuery reports whether content is a greeting or a bare
// price-lookup ("AAPL price", "what is TSLA trading at") that doesn't
// warrant the full tool surface.
func (h *Heuristic) IsSimpleQuery(content string) bool {
	content = strings.TrimSpace(content)
	if content == "" {
		return true
	}
	if greetingRegex.MatchString(content) {
		return true
	}
	if priceCue.MatchString(content) && len(Tickers(content)) <= 1 &&
		!historyCue.MatchString(content) && !newsCue.MatchString(content) &&
		!forecastCue.MatchString(content) {
		return true
	}
	return false
}

// Tickers extracts candidate ticker symbols: bare uppercase tokens of 1-5
// letters, excluding a small set of common non-ticker acronyms.
func Tickers(content string) []string {
	matches := tickerRegex.FindAllString(content, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if commonWords[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Select returns an ordered subset of allowed tool names relevant to
// content, excluding heavy tools once a simple query has been detected.
func (h *Heuristic) Select(content string, allowed []models.ToolDescriptor) []string {
	simple := h.IsSimpleQuery(content)

	var names []string
	add := func(name string) {
		for _, n := range names {
			if n == name {
				return
			}
		}
		names = append(names, name)
	}

	byName := make(map[string]models.ToolDescriptor, len(allowed))
	for _, d := range allowed {
		byName[d.Name] = d
	}

	if d, ok := byName["get_stock_quote"]; ok && (priceCue.MatchString(content) || len(Tickers(content)) > 0) {
		_ = d
		add("get_stock_quote")
	}
	if _, ok := byName["get_stock_history"]; ok && historyCue.MatchString(content) {
		add("get_stock_history")
	}
	if _, ok := byName["get_stock_news"]; ok && newsCue.MatchString(content) {
		add("get_stock_news")
	}
	if _, ok := byName["rag_search"]; ok && knowledgeCue.MatchString(content) {
		add("rag_search")
	}
	if _, ok := byName["perplexity_search"]; ok && webSearchCue.MatchString(content) {
		add("perplexity_search")
	}
	if _, ok := byName["predict_price"]; ok && forecastCue.MatchString(content) {
		add("predict_price")
	}

	if simple {
		trimmed := make([]string, 0, h.cfg.MaxSimpleQueryTools)
		for _, n := range names {
			if d, ok := byName[n]; ok && d.Heavy {
				continue
			}
			trimmed = append(trimmed, n)
			if len(trimmed) >= h.cfg.MaxSimpleQueryTools {
				break
			}
		}
		return trimmed
	}

	return names
}
