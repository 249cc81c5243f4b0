package ranker

import (
	"context"
	"math"
	"net/url"
	"sort"
	"time"

	"github.com/stockgateway/stockgateway/internal/cache"
	"github.com/stockgateway/stockgateway/internal/models"
	"github.com/stockgateway/stockgateway/internal/observability"
	"github.com/stockgateway/stockgateway/internal/selector"
)

// Config tunes the ranking pass.
type Config struct {
	// SemanticWindowFast/Comprehensive are the top-W candidates (by raw
	// score) semantic scoring considers in fast vs. comprehensive mode.
	SemanticWindowFast          int
	SemanticWindowComprehensive int

	// SemanticBudget bounds total wall-clock spent embedding candidates in
	// fast mode.
	SemanticBudget time.Duration

	// PreferredProviders orders providers for the tie-break rule; earlier
	// entries are preferred. Providers not listed sort last.
	PreferredProviders []string

	// TrustedDomains/DistrustedDomains apply a multiplicative trust factor
	// to a result's combined score based on its URL's host.
	TrustedDomains    map[string]float64
	DistrustedDomains map[string]float64
}

// DefaultConfig mirrors spec.md §4.7: W=5 in fast mode, W=15 in
// comprehensive mode, a 2s semantic budget in fast mode.
func DefaultConfig() Config {
	return Config{
		SemanticWindowFast:          5,
		SemanticWindowComprehensive: 15,
		SemanticBudget:              2 * time.Second,
		PreferredProviders:          []string{"brave", "ddgs"},
	}
}

// Ranker scores and orders raw search results.
type Ranker struct {
	cfg        Config
	embeddings *cache.EmbeddingCache
	embedder   selector.EmbeddingService
}

// New builds a Ranker. embedder may be nil, in which case semantic scoring
// is skipped and every result's SemanticScore stays zero.
func New(cfg Config, embeddings *cache.EmbeddingCache, embedder selector.EmbeddingService) *Ranker {
	if cfg.SemanticWindowFast <= 0 || cfg.SemanticWindowComprehensive <= 0 {
		cfg = DefaultConfig()
	}
	return &Ranker{cfg: cfg, embeddings: embeddings, embedder: embedder}
}

// Rank scores results against query, sorts them by combined score (highest
// first, ties broken by raw score then preferred-provider then shorter
// URL), and assigns CitationID 1..N in that order. results is sorted and
// returned in place; the backing slice is also mutated in case the caller
// holds another reference to it.
func (r *Ranker) Rank(ctx context.Context, query string, results []models.SearchResult, fastMode bool) []models.SearchResult {
	if len(results) == 0 {
		return results
	}

	r.scoreBM25(query, results)
	r.scoreSemantic(ctx, query, results, fastMode)
	r.scoreCombined(results)

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		if a.RawScore != b.RawScore {
			return a.RawScore > b.RawScore
		}
		pa, pb := r.providerRank(a.Provider), r.providerRank(b.Provider)
		if pa != pb {
			return pa < pb
		}
		return len(a.URL) < len(b.URL)
	})

	for i := range results {
		results[i].CitationID = i + 1
	}
	return results
}

func (r *Ranker) providerRank(provider string) int {
	for i, p := range r.cfg.PreferredProviders {
		if p == provider {
			return i
		}
	}
	return len(r.cfg.PreferredProviders)
}

func (r *Ranker) scoreBM25(query string, results []models.SearchResult) {
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Title + " " + res.Snippet + " " + res.ExtractedText
	}
	corpus := newBM25Corpus(texts)
	queryTerms := tokenize(query)
	for i := range results {
		results[i].BM25Score = corpus.score(i, queryTerms)
	}
}

// scoreSemantic embeds the query and the top-W candidates by BM25 score and
// assigns cosine-similarity semantic scores. Candidates outside the window
// keep a zero semantic score, matching spec.md §4.7's windowed-rerank
// design (full corpus semantic scoring is unaffordable within the fast-mode
// latency budget).
func (r *Ranker) scoreSemantic(ctx context.Context, query string, results []models.SearchResult, fastMode bool) {
	if r.embedder == nil {
		return
	}

	window := r.cfg.SemanticWindowComprehensive
	budget := time.Duration(0)
	if fastMode {
		window = r.cfg.SemanticWindowFast
		budget = r.cfg.SemanticBudget
	}
	if window > len(results) {
		window = len(results)
	}

	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return results[order[a]].BM25Score > results[order[b]].BM25Score
	})

	queryEmbedding, ok := r.embeddings.Get(query)
	if !ok {
		var err error
		queryEmbedding, err = r.embedder.Embed(ctx, query)
		if err != nil {
			return
		}
		r.embeddings.Set(query, queryEmbedding)
	}

	for _, idx := range order[:window] {
		if ctx.Err() != nil {
			return
		}
		res := &results[idx]
		key := res.URL
		emb, ok := r.embeddings.Get(key)
		if !ok {
			var err error
			emb, err = r.embedder.Embed(ctx, res.Title+" "+res.Snippet)
			if err != nil {
				continue
			}
			r.embeddings.Set(key, emb)
		}
		res.SemanticScore = cosineSimilarity(queryEmbedding, emb)
	}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// scoreCombined applies spec.md §4.7's weighted formula:
// 0.4*norm(BM25) + 0.4*norm(semantic) + 0.1*raw + 0.1*quality, with a
// domain trust factor as a final multiplier. "quality" is a placeholder
// signal (1.0) absent a real content-quality model; the trust factor is
// the only per-domain adjustment this core makes.
func (r *Ranker) scoreCombined(results []models.SearchResult) {
	maxBM25, maxSemantic := 0.0, 0.0
	for _, res := range results {
		maxBM25 = math.Max(maxBM25, res.BM25Score)
		maxSemantic = math.Max(maxSemantic, res.SemanticScore)
	}

	for i := range results {
		res := &results[i]
		normBM25 := normalize(res.BM25Score, maxBM25)
		normSemantic := normalize(res.SemanticScore, maxSemantic)
		const quality = 1.0
		score := 0.4*normBM25 + 0.4*normSemantic + 0.1*res.RawScore + 0.1*quality
		res.CombinedScore = score * r.trustFactor(res.URL)
	}
}

func normalize(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return v / max
}

func (r *Ranker) trustFactor(rawURL string) float64 {
	host := hostOf(rawURL)
	if host == "" {
		return 1.0
	}
	if factor, ok := r.cfg.TrustedDomains[host]; ok {
		return factor
	}
	if factor, ok := r.cfg.DistrustedDomains[host]; ok {
		return factor
	}
	return 1.0
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// RankWithMetrics wraps Rank with the C12 search-ranking latency metric.
func (r *Ranker) RankWithMetrics(ctx context.Context, query string, results []models.SearchResult, fastMode bool) []models.SearchResult {
	start := time.Now()
	ranked := r.Rank(ctx, query, results, fastMode)
	observability.RecordRankLatency(time.Since(start))
	return ranked
}
