package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/passpanel/internal/domain/model"
	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

// fakeCredentialStore is an in-memory CredentialStore that records every
// Update call for assertions.
type fakeCredentialStore struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]model.Credential
	updates []fakeUpdate
	failOn  int64
}

type fakeUpdate struct {
	id      int64
	changes model.Changes
}

func newFakeCredentialStore(seed ...model.Credential) *fakeCredentialStore {
	s := &fakeCredentialStore{rows: make(map[int64]model.Credential)}
	for _, c := range seed {
		if _, err := s.Create(context.Background(), c); err != nil {
			panic(err)
		}
	}
	return s
}

func (s *fakeCredentialStore) Create(_ context.Context, c model.Credential) (model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Normalize()
	if err := c.Validate(); err != nil {
		return model.Credential{}, err
	}
	s.nextID++
	c.ID = s.nextID
	c.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(c.ID) * time.Minute)
	s.rows[c.ID] = c
	return c, nil
}

func (s *fakeCredentialStore) Get(_ context.Context, id int64) (model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.rows[id]
	if !ok {
		return model.Credential{}, fmt.Errorf("get credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	return c, nil
}

func (s *fakeCredentialStore) Search(_ context.Context, sc model.SearchCriteria) ([]model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	term := strings.ToLower(sc.Term)
	var out []model.Credential
	for _, c := range s.sortedLocked() {
		if strings.Contains(strings.ToLower(c.WebsiteName), term) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCredentialStore) Update(_ context.Context, id int64, changes model.Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.failOn {
		return fmt.Errorf("update credential %d: %w", id, driven.ErrPersistence)
	}
	c, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("update credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	if err := changes.Apply(&c); err != nil {
		return err
	}
	s.rows[id] = c
	s.updates = append(s.updates, fakeUpdate{id: id, changes: changes})
	return nil
}

func (s *fakeCredentialStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return fmt.Errorf("delete credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	delete(s.rows, id)
	return nil
}

func (s *fakeCredentialStore) ListAll(_ context.Context) ([]model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sortedLocked(), nil
}

func (s *fakeCredentialStore) sortedLocked() []model.Credential {
	out := make([]model.Credential, 0, len(s.rows))
	for id := int64(1); id <= s.nextID; id++ {
		if c, ok := s.rows[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// fakeSessionStore is an in-memory SessionStore without expiry. Setting err
// makes every call fail with it.
type fakeSessionStore struct {
	mu     sync.Mutex
	tokens map[string]time.Duration
	err    error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{tokens: make(map[string]time.Duration)}
}

func (s *fakeSessionStore) Create(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tokens[token] = ttl
	return nil
}

func (s *fakeSessionStore) Touch(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.tokens[token]; !ok {
		return driven.ErrSessionNotFound
	}
	s.tokens[token] = ttl
	return nil
}

func (s *fakeSessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.tokens, token)
	return nil
}

var errStoreDown = errors.New("store down")
