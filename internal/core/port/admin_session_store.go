package port

import (
	"context"
	"time"
)

// AdminSessionStore tracks the hashes of issued admin session token IDs so
// tokens can be revoked ahead of their natural expiry. Only hashes are
// persisted; the signed token itself stays with the caller.
type AdminSessionStore interface {
	Save(ctx context.Context, tokenHash string, ttl time.Duration) error
	Exists(ctx context.Context, tokenHash string) (bool, error)
	Delete(ctx context.Context, tokenHash string) error
}
