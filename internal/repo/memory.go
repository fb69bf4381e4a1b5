package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/chative-dialogue/server/internal/agent/model"
)

// DefaultMemoryMaxEntries bounds the in-memory store when no size is given.
const DefaultMemoryMaxEntries = 10000

// MemorySessionRepository keeps serialized states in a bounded LRU with a
// per-entry TTL. States are stored as JSON so callers never share mutable
// values with the store. Expired entries are purged in the background.
type MemorySessionRepository struct {
	cache *expirable.LRU[string, []byte]
}

// NewMemorySessionRepository returns a store holding at most maxEntries
// states. A zero ttl disables expiry.
func NewMemorySessionRepository(maxEntries int, ttl time.Duration) *MemorySessionRepository {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryMaxEntries
	}
	return &MemorySessionRepository{
		cache: expirable.NewLRU[string, []byte](maxEntries, nil, ttl),
	}
}

func (r *MemorySessionRepository) Load(_ context.Context, conversationID string) (*model.SessionState, error) {
	b, ok := r.cache.Get(conversationID)
	if !ok {
		return nil, nil
	}

	var state model.SessionState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &state, nil
}

func (r *MemorySessionRepository) Save(_ context.Context, state *model.SessionState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	r.cache.Add(state.ConversationID, b)
	return nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, conversationID string) error {
	r.cache.Remove(conversationID)
	return nil
}

// Len reports how many states are held, expired ones included until the
// background purge reaches them.
func (r *MemorySessionRepository) Len() int {
	return r.cache.Len()
}

var _ model.SessionRepository = (*MemorySessionRepository)(nil)
