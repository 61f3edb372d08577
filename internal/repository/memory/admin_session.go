package memory

import (
	"context"
	"sync"
	"time"

	"github.com/toolhub/admin-gate/internal/core/port"
)

// AdminSessionStore is a thread-safe in-memory port.AdminSessionStore.
type AdminSessionStore struct {
	mu   sync.Mutex
	data map[string]time.Time
	now  func() time.Time
}

// NewAdminSessionStore creates an empty in-memory admin session store.
func NewAdminSessionStore() *AdminSessionStore {
	return &AdminSessionStore{
		data: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (s *AdminSessionStore) Save(_ context.Context, tokenHash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[tokenHash] = s.now().UTC().Add(ttl)
	return nil
}

func (s *AdminSessionStore) Exists(_ context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evictAt, ok := s.data[tokenHash]
	if !ok {
		return false, nil
	}
	if !s.now().UTC().Before(evictAt) {
		delete(s.data, tokenHash)
		return false, nil
	}
	return true, nil
}

func (s *AdminSessionStore) Delete(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, tokenHash)
	return nil
}

// WithClock overrides the internal clock, used in tests.
func (s *AdminSessionStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

var _ port.AdminSessionStore = (*AdminSessionStore)(nil)
