package markers

import (
	"context"
	"sync"

	"github.com/quorumdesk/quorumdesk/internal/voting"
)

// MemoryStore keeps markers in memory
type MemoryStore struct {
	mu     sync.RWMutex
	marked map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{marked: make(map[string]struct{})}
}

// IsVoted implements voting.MarkerStore
func (m *MemoryStore) IsVoted(_ context.Context, votingID string, questionID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.marked[voting.MarkerKey(votingID, questionID)]
	return ok, nil
}

// MarkVoted implements voting.MarkerStore
func (m *MemoryStore) MarkVoted(_ context.Context, votingID string, questionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked[voting.MarkerKey(votingID, questionID)] = struct{}{}
	return nil
}

// Unmark implements voting.MarkerStore
func (m *MemoryStore) Unmark(_ context.Context, votingID string, questionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.marked, voting.MarkerKey(votingID, questionID))
	return nil
}

// Close implements Store
func (*MemoryStore) Close() error {
	return nil
}
