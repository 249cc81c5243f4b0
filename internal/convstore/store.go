// Package convstore is the conversation-id-keyed message store: bounded,
// TTL-evicted per-conversation history plus the turn-atomic truncation
// policy applied before a conversation is handed to the model client.
package convstore

import (
	"sync"
	"time"

	"github.com/stockgateway/stockgateway/internal/infra"
	"github.com/stockgateway/stockgateway/internal/models"
)

// DefaultTTL is how long an idle conversation is retained before eviction.
const DefaultTTL = 24 * time.Hour

// DefaultCapacity bounds the number of distinct conversations held at once.
const DefaultCapacity = 10000

// entry wraps a Conversation with its own lock so concurrent Append/Snapshot
// calls against the same conversation id serialize without blocking other
// conversations.
type entry struct {
	mu   sync.Mutex
	conv *models.Conversation
}

// Store holds conversation histories in memory with capacity-bounded,
// TTL-based eviction, built directly on the shared generic cache rather
// than a bespoke map+mutex table.
type Store struct {
	cache *infra.TTLCache[string, *entry]
	ttl   time.Duration
}

// NewStore builds a store with the given capacity and idle TTL; zero
// values fall back to DefaultCapacity/DefaultTTL.
func NewStore(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl: ttl,
		cache: infra.NewTTLCache[string, *entry](infra.CacheConfig{
			MaxSize:         capacity,
			DefaultTTL:      ttl,
			CleanupInterval: time.Minute,
		}),
	}
}

func (s *Store) get(id string) *entry {
	return s.cache.GetOrSet(id, func() *entry {
		return &entry{conv: models.NewConversation(id)}
	})
}

// Append adds messages to the named conversation, creating it if absent,
// and refreshes its idle TTL.
func (s *Store) Append(id string, msgs ...*models.Message) {
	e := s.get(id)
	e.mu.Lock()
	e.conv.Append(msgs...)
	e.mu.Unlock()
	s.cache.Refresh(id, s.ttl)
}

// Snapshot returns a copy of the conversation's message slice (the
// underlying *Message pointers are shared, but the slice header is not, so
// callers may safely read it concurrently with further Appends).
func (s *Store) Snapshot(id string) []*models.Message {
	e := s.get(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*models.Message, len(e.conv.Messages))
	copy(out, e.conv.Messages)
	return out
}

// Clear removes a conversation's history entirely (used by the /chat/clear
// operation).
func (s *Store) Clear(id string) {
	s.cache.Delete(id)
}

// Len reports the number of tracked conversations.
func (s *Store) Len() int { return s.cache.Len() }
