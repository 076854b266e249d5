// Package session provides SessionStore implementations for the access gate.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*MemoryStore)(nil)

// MemoryStore keeps sessions in process memory. Sessions do not survive a
// restart and are not shared between replicas.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Create records token until ttl elapses. Expired sessions are swept on each call.
func (s *MemoryStore) Create(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	s.sessions[token] = now.Add(ttl)
	return nil
}

// Touch extends a live session by ttl.
func (s *MemoryStore) Touch(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expiry, ok := s.sessions[token]
	if !ok || !now.Before(expiry) {
		delete(s.sessions, token)
		return driven.ErrSessionNotFound
	}
	s.sessions[token] = now.Add(ttl)
	return nil
}

// Delete removes the session. No-op for unknown tokens.
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())
	return len(s.sessions)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for token, expiry := range s.sessions {
		if !now.Before(expiry) {
			delete(s.sessions, token)
		}
	}
}
