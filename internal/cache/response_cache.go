package cache

import (
	"time"

	"github.com/stockgateway/stockgateway/internal/infra"
)

const (
	responseCacheCapacity    = 1000
	responseCacheTTL         = 5 * time.Minute
	simpleQueryCacheCapacity = 500
	simpleQueryCacheTTL      = 60 * time.Second
)

// Answer is the cached payload for a fingerprint: the final assistant
// text plus the metadata a cache hit needs to reconstruct a `done` event
// without recomputing anything.
type Answer struct {
	Text      string
	Model     string
	InputTokens  int
	OutputTokens int
}

// ResponseCache stores finished assistant answers keyed by fingerprint.
// Grounded on internal/infra.TTLCache's LRU-by-insertion-time eviction.
type ResponseCache struct {
	ttl *infra.TTLCache[string, Answer]
}

// NewResponseCache builds the default-capacity, default-TTL response
// cache (capacity 1,000, TTL 5 min per spec.md §4.1).
func NewResponseCache() *ResponseCache {
	return &ResponseCache{ttl: infra.NewTTLCache[string, Answer](infra.CacheConfig{
		DefaultTTL:      responseCacheTTL,
		MaxSize:         responseCacheCapacity,
		CleanupInterval: time.Minute,
	})}
}

func (c *ResponseCache) Get(fingerprint string) (Answer, bool) { return c.ttl.Get(fingerprint) }
func (c *ResponseCache) Set(fingerprint string, a Answer)      { c.ttl.Set(fingerprint, a) }
func (c *ResponseCache) Stats() infra.CacheStats               { return c.ttl.Stats() }

// SimpleQueryCache is the shorter-TTL, smaller-capacity sibling used only
// for queries C5 classifies as "simple" (spec.md §4.1/§4.10).
type SimpleQueryCache struct {
	ttl *infra.TTLCache[string, Answer]
}

func NewSimpleQueryCache() *SimpleQueryCache {
	return &SimpleQueryCache{ttl: infra.NewTTLCache[string, Answer](infra.CacheConfig{
		DefaultTTL:      simpleQueryCacheTTL,
		MaxSize:         simpleQueryCacheCapacity,
		CleanupInterval: 30 * time.Second,
	})}
}

func (c *SimpleQueryCache) Get(fingerprint string) (Answer, bool) { return c.ttl.Get(fingerprint) }
func (c *SimpleQueryCache) Set(fingerprint string, a Answer)      { c.ttl.Set(fingerprint, a) }
func (c *SimpleQueryCache) Stats() infra.CacheStats               { return c.ttl.Stats() }

// EmbeddingCache caches query embeddings for 1h (C5's ML mode and C7's
// semantic reranking share it).
type EmbeddingCache struct {
	ttl *infra.TTLCache[string, []float32]
}

func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{ttl: infra.NewTTLCache[string, []float32](infra.CacheConfig{
		DefaultTTL:      time.Hour,
		MaxSize:         2000,
		CleanupInterval: 5 * time.Minute,
	})}
}

func (c *EmbeddingCache) Get(text string) ([]float32, bool) { return c.ttl.Get(text) }
func (c *EmbeddingCache) Set(text string, v []float32)      { c.ttl.Set(text, v) }
