package port

import (
	"context"

	"github.com/toolhub/admin-gate/internal/core/domain"
)

// EventPublisher publishes security events to the message bus.
type EventPublisher interface {
	PublishVerificationStep(ctx context.Context, event domain.VerificationStepEvent) error
	PublishOTPIssued(ctx context.Context, event domain.OTPIssuedEvent) error
	PublishAdminAuthenticated(ctx context.Context, event domain.AdminAuthenticatedEvent) error
	PublishAdminSessionRevoked(ctx context.Context, event domain.AdminSessionRevokedEvent) error
}
