package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/creastat/chat"
	"github.com/creastat/chat/session"
)

// InMemoryStore implements session.Store with a map and optimistic locking.
// Snapshots are copied on the way in and out so callers never share state with the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.SessionData
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*session.SessionData),
	}
}

// Create implements session.Store.
func (s *InMemoryStore) Create(ctx context.Context, data *session.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	data.CreatedAt = now
	data.UpdatedAt = now
	data.Version = 1

	s.sessions[data.ID] = cloneData(data)
	return nil
}

// Get implements session.Store.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*session.SessionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.sessions[id]
	if !exists {
		return nil, nil
	}
	return cloneData(data), nil
}

// Update implements session.Store.
func (s *InMemoryStore) Update(ctx context.Context, data *session.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.sessions[data.ID]
	if !exists {
		return chat.ErrNotFound
	}
	if stored.Version != data.Version {
		return chat.ErrVersionConflict
	}

	data.Version++
	data.CreatedAt = stored.CreatedAt
	data.UpdatedAt = time.Now()

	s.sessions[data.ID] = cloneData(data)
	return nil
}

// Delete implements session.Store.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Close implements session.Store.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*session.SessionData)
	return nil
}

func cloneData(data *session.SessionData) *session.SessionData {
	c := *data
	c.Transcript = data.Transcript.Clone()
	return &c
}

var _ session.Store = (*InMemoryStore)(nil)
