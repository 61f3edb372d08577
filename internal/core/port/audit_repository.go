package port

import (
	"context"

	"github.com/toolhub/admin-gate/internal/core/domain"
)

// AuditRepository records verification outcomes for the back office. Writes
// are best-effort from the caller's perspective; a failed audit write never
// fails the verification operation itself.
type AuditRepository interface {
	Record(ctx context.Context, event domain.AuditEvent) error
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEvent, error)
}
