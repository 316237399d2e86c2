package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pwhittaker/playpulse/pkg/models"
)

// FileStateStore keeps failure state in a single JSON file keyed by source.
// Writes go through a temp file and rename so a crash mid-write cannot leave
// a truncated state file behind.
type FileStateStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStateStore creates a file-backed state store at the given path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Get returns the stored state for a source. A missing or corrupt file is
// treated as empty state, not an error: losing the state file must never
// stop failure tracking.
func (s *FileStateStore) Get(ctx context.Context, key string) (models.FailureState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := s.load()
	state, ok := states[key]
	return state, ok, nil
}

// Put stores the state for a source.
func (s *FileStateStore) Put(ctx context.Context, key string, state models.FailureState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := s.load()
	states[key] = state
	return s.save(states)
}

// Delete removes the state for a source.
func (s *FileStateStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := s.load()
	if _, ok := states[key]; !ok {
		return nil
	}
	delete(states, key)
	return s.save(states)
}

func (s *FileStateStore) load() map[string]models.FailureState {
	states := make(map[string]models.FailureState)
	data, err := os.ReadFile(s.path)
	if err != nil {
		return states
	}
	if err := json.Unmarshal(data, &states); err != nil {
		return make(map[string]models.FailureState)
	}
	return states
}

func (s *FileStateStore) save(states map[string]models.FailureState) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode failure state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".failure_state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
