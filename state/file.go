package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/conciergeai/concierge/core"
)

// FileStore is a durable StateStore writing one JSON file per thread under a
// base directory. Saves go through a temp file plus rename so a crash mid
// write never leaves a corrupt snapshot behind. Thread ids become file names,
// so they must not contain path separators.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates the base directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the thread's snapshot from disk, or returns a fresh empty state
// when no file exists yet.
func (s *FileStore) Load(threadID string) (*core.ConversationState, error) {
	path, err := s.path(threadID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return core.NewConversationState(threadID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", threadID, err)
	}

	var state core.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", threadID, err)
	}
	return &state, nil
}

// Save writes the snapshot atomically (temp file then rename).
func (s *FileStore) Save(state *core.ConversationState) error {
	path, err := s.path(state.ThreadID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state %s: %w", state.ThreadID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state %s: %w", state.ThreadID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit state %s: %w", state.ThreadID, err)
	}
	return nil
}

func (s *FileStore) path(threadID string) (string, error) {
	if threadID == "" || strings.ContainsAny(threadID, `/\`) || threadID == "." || threadID == ".." {
		return "", fmt.Errorf("invalid thread id %q", threadID)
	}
	return filepath.Join(s.dir, threadID+".json"), nil
}
