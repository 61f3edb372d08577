package port

import (
	"context"
	"time"

	"github.com/toolhub/admin-gate/internal/core/domain"
)

// VerificationStore persists per-caller verification state with a per-key
// TTL. A missing or expired record reads back as repository.ErrNotFound and
// is treated identically to phase none. The caller only ever holds the
// opaque session key; phase and digest are not client-writable.
type VerificationStore interface {
	Get(ctx context.Context, sessionKey string) (*domain.VerificationState, error)
	Put(ctx context.Context, sessionKey string, state domain.VerificationState, ttl time.Duration) error
	Delete(ctx context.Context, sessionKey string) error
}
