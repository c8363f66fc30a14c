package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/conciergeai/concierge/core"
	"github.com/google/uuid"
)

// StoredMemory is the internal representation persisted by InMemoryStore.
// It mirrors the core.SearchResult shape (ID, content, metadata) without a
// score field since scoring is trivial here.
type StoredMemory struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// InMemoryStore is a naive process-local MemoryStore: append-ordered stored
// facts with substring Search.
//
// Concurrency: protected by RWMutex.
// Search: linear scan with case-insensitive word matching assigning a constant
// score of 1.0 to every hit. Suitable only for tests / demos; swap for a
// vector DB or semantic index for production retrieval.
type InMemoryStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]StoredMemory
}

// NewInMemoryStore creates a new in-memory memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]StoredMemory)}
}

// Search returns stored facts matching the query, in insertion order, up to
// limit. A fact matches when its content contains any word of the query
// (case insensitive); an empty query matches everything.
func (m *InMemoryStore) Search(query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	words := strings.Fields(strings.ToLower(query))

	results := make([]core.SearchResult, 0, limit)
	for _, id := range m.order {
		if limit > 0 && len(results) >= limit {
			break
		}
		stored := m.byID[id]
		if matches(strings.ToLower(stored.Content), words) {
			md := make(map[string]any, len(stored.Metadata))
			for k, v := range stored.Metadata {
				md[k] = v
			}
			results = append(results, core.SearchResult{ID: stored.ID, Content: stored.Content, Score: 1.0, Metadata: md})
		}
	}
	return results, nil
}

func matches(content string, words []string) bool {
	if len(words) == 0 {
		return true
	}
	for _, w := range words {
		if strings.Contains(content, w) {
			return true
		}
	}
	return false
}

// Store appends a new fact and returns its generated id.
func (m *InMemoryStore) Store(content string, metadata map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.order = append(m.order, id)
	m.byID[id] = StoredMemory{ID: id, Content: content, Metadata: metadata}
	return id, nil
}

// Update replaces the content of an existing fact.
func (m *InMemoryStore) Update(id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.byID[id]
	if !exists {
		return fmt.Errorf("memory %s not found", id)
	}
	stored.Content = content
	m.byID[id] = stored
	return nil
}

// Delete removes a stored fact by id.
func (m *InMemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[id]; !exists {
		return fmt.Errorf("memory %s not found", id)
	}
	delete(m.byID, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
