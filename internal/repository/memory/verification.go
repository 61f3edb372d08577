// Package memory provides in-process implementations of the gate's state
// stores. They back local development when Redis is unavailable and keep the
// usecase tests free of external dependencies. State does not survive a
// restart, which for verification state is acceptable by construction.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/toolhub/admin-gate/internal/core/domain"
	"github.com/toolhub/admin-gate/internal/core/port"
	"github.com/toolhub/admin-gate/internal/repository"
)

type verificationEntry struct {
	state     domain.VerificationState
	evictedAt time.Time
}

// VerificationStore is a thread-safe in-memory port.VerificationStore with
// expiry-on-read semantics.
type VerificationStore struct {
	mu   sync.Mutex
	data map[string]verificationEntry
	now  func() time.Time
}

// NewVerificationStore creates an empty in-memory verification store.
func NewVerificationStore() *VerificationStore {
	return &VerificationStore{
		data: make(map[string]verificationEntry),
		now:  time.Now,
	}
}

func (s *VerificationStore) Get(_ context.Context, sessionKey string) (*domain.VerificationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[sessionKey]
	if !ok {
		return nil, repository.ErrNotFound
	}

	now := s.now().UTC()
	if !now.Before(entry.evictedAt) || entry.state.Expired(now) {
		delete(s.data, sessionKey)
		return nil, repository.ErrNotFound
	}

	state := entry.state
	return &state, nil
}

func (s *VerificationStore) Put(_ context.Context, sessionKey string, state domain.VerificationState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[sessionKey] = verificationEntry{
		state:     state,
		evictedAt: s.now().UTC().Add(ttl),
	}
	return nil
}

func (s *VerificationStore) Delete(_ context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, sessionKey)
	return nil
}

// WithClock overrides the internal clock, used in tests.
func (s *VerificationStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

var _ port.VerificationStore = (*VerificationStore)(nil)
