package friendships

import (
	"context"
	"sync"
	"time"

	"github.com/lifeapp/backend/internal/models"
)

// MemoryStore implements Store for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]models.Friendship
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.Friendship)}
}

// Get returns the record with the provided id.
func (s *MemoryStore) Get(_ context.Context, id string) (models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.records[id]
	if !ok {
		return models.Friendship{}, ErrNotFound
	}
	return f, nil
}

// ListForUser returns every record in which userID is either party.
func (s *MemoryStore) ListForUser(_ context.Context, userID string) ([]models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Friendship
	for _, f := range s.records {
		if f.Involves(userID) {
			out = append(out, f)
		}
	}
	return out, nil
}

// TransitionStatus updates a record addressed to recipientID when it is in the from status.
func (s *MemoryStore) TransitionStatus(_ context.Context, id, recipientID, from, to string, at time.Time) (models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.records[id]
	if !ok || f.ToUser != recipientID || f.Status != from {
		return models.Friendship{}, ErrNotFound
	}
	f.Status = to
	f.UpdatedAt = at
	s.records[id] = f
	return f, nil
}

// Delete removes the record if it still has the expected status.
func (s *MemoryStore) Delete(_ context.Context, id, expectedStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.records[id]
	if !ok || f.Status != expectedStatus {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// WithPairLock runs fn while holding the store lock, which serializes every pair.
func (s *MemoryStore) WithPairLock(_ context.Context, _ string, fn func(tx PairTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(memoryPairTx{store: s})
}

// Len reports the number of stored records. Useful for tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// memoryPairTx operates on the store while its lock is held by WithPairLock.
type memoryPairTx struct {
	store *MemoryStore
}

func (tx memoryPairTx) ExistsBetween(_ context.Context, a, b string) (bool, error) {
	key := PairKey(a, b)
	for _, f := range tx.store.records {
		if PairKey(f.FromUser, f.ToUser) == key {
			return true, nil
		}
	}
	return false, nil
}

func (tx memoryPairTx) Insert(_ context.Context, friendship models.Friendship) error {
	key := PairKey(friendship.FromUser, friendship.ToUser)
	for id, f := range tx.store.records {
		if id == friendship.ID || PairKey(f.FromUser, f.ToUser) == key {
			return ErrDuplicate
		}
	}
	tx.store.records[friendship.ID] = friendship
	return nil
}

var _ Store = (*MemoryStore)(nil)
