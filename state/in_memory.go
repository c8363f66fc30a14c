// Package state contains concrete StateStore implementations: a volatile
// in-memory store for tests and demos, and a file-backed store whose saved
// snapshots survive process restarts, which is what makes suspended review
// checkpoints durable.
package state

import (
	"sync"

	"github.com/conciergeai/concierge/core"
)

// InMemoryStore is a volatile StateStore keeping conversation states in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Each loaded and saved state is cloned to
// prevent external mutation of internal snapshots.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]*core.ConversationState
}

// NewInMemoryStore constructs an empty in-memory state store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]*core.ConversationState)}
}

// Load returns a clone of the stored state, or a fresh empty state for an
// unknown thread.
func (s *InMemoryStore) Load(threadID string) (*core.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.states[threadID]; ok {
		return st.Clone(), nil
	}
	return core.NewConversationState(threadID), nil
}

// Save stores a clone of the provided state snapshot.
func (s *InMemoryStore) Save(state *core.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ThreadID] = state.Clone()
	return nil
}
