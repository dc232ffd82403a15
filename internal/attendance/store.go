package attendance

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Store is the client-side replica of the attendance list plus the pending-edit overlay.
// It is safe for concurrent use.
//
// A pending edit overrides the replica status for display and aggregation until it is
// confirmed by a successful push or superseded by an inbound authoritative update.
type Store struct {
	mu      sync.RWMutex
	scope   Scope
	records []Record
	index   map[int64]int
	pending map[int64]Status
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		index:   make(map[int64]int),
		pending: make(map[int64]Status),
	}
}

// Replace swaps the whole replica for records loaded for scope.
// Pending edits are kept; callers decide whether a scope change should discard them.
func (s *Store) Replace(scope Scope, records []Record) {
	replica := make([]Record, len(records))
	index := make(map[int64]int, len(records))
	for i, r := range records {
		if r.Shares < 0 {
			r.Shares = 0
		}
		replica[i] = r
		index[r.ID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = scope
	s.records = replica
	s.index = index
}

// ApplyLocalEdit records a pending edit for id. The last edit for an id wins.
func (s *Store) ApplyLocalEdit(id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRecord, id)
	}
	s.pending[id] = status
	return nil
}

// ApplyLocalEdits records status as a pending edit for each id under one lock.
// Ids no longer in the replica are skipped and returned.
func (s *Store) ApplyLocalEdits(ids []int64, status Status) (applied int, skipped []int64, err error) {
	if !status.Valid() {
		return 0, nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.index[id]; !ok {
			skipped = append(skipped, id)
			continue
		}
		s.pending[id] = status
		applied++
	}
	return applied, skipped, nil
}

// ApplyRemoteUpdate applies an authoritative status for id. The replica is updated when the
// record is known, and any pending edit for id is cleared either way.
// It returns whether the record was found in the replica.
func (s *Store) ApplyRemoteUpdate(id int64, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.records[i].Status = status
	return true
}

// EffectiveState returns the pending edit for id if present, else the replica status
func (s *Store) EffectiveState(id int64) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status, ok := s.pending[id]; ok {
		return status, true
	}
	i, ok := s.index[id]
	if !ok {
		return "", false
	}
	return s.records[i].Status, true
}

// PendingEdits returns a snapshot of the pending edits ordered by id
func (s *Store) PendingEdits() []Edit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edits := make([]Edit, 0, len(s.pending))
	for _, id := range slices.Sorted(maps.Keys(s.pending)) {
		edits = append(edits, Edit{ID: id, Status: s.pending[id]})
	}
	return edits
}

// ConfirmEdits records pushed edits as accepted by the server. An edit is only confirmed
// while the pending value is still the one that was pushed: a newer local edit stays pending,
// and a remote update that arrived meanwhile keeps the replica value it set.
func (s *Store) ConfirmEdits(edits []Edit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range edits {
		current, ok := s.pending[e.ID]
		if !ok || current != e.Status {
			continue
		}
		delete(s.pending, e.ID)
		if i, ok := s.index[e.ID]; ok {
			s.records[i].Status = e.Status
		}
	}
}

// DiscardPending drops every pending edit and returns how many were dropped
func (s *Store) DiscardPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	clear(s.pending)
	return n
}

// Rows returns every record with its effective status, in replica order
func (s *Store) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]Row, len(s.records))
	for i, r := range s.records {
		effective, pending := s.pending[r.ID]
		if !pending {
			effective = r.Status
		}
		rows[i] = Row{Record: r, Effective: effective, Pending: pending}
	}
	return rows
}

// Record returns the replica copy of a record
func (s *Store) Record(id int64) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Record{}, false
	}
	return s.records[i], true
}

// Len returns the number of records in the replica
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// PendingCount returns the number of pending edits
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Scope returns the scope of the last load
func (s *Store) Scope() Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}
