package core

// StateStore persists conversation state by thread id. Load creates an empty
// state for unknown threads; implementations return clones so callers own
// their snapshot. Save must be durable enough that a review checkpoint
// survives whatever failure model the implementation claims (process restart
// for file-backed stores).
type StateStore interface {
	Load(threadID string) (*ConversationState, error)
	Save(state *ConversationState) error
}

// SearchResult is one long-term memory hit.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MemoryStore is the long-term fact store consulted at the start of every
// turn and curated by the memory agent at the end.
type MemoryStore interface {
	Search(query string, limit int) ([]SearchResult, error)
	Store(content string, metadata map[string]any) (string, error)
	Update(id, content string) error
	Delete(id string) error
}
