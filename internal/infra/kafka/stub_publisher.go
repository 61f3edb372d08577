package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/toolhub/admin-gate/internal/core/domain"
	"github.com/toolhub/admin-gate/internal/core/port"
	"github.com/toolhub/admin-gate/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishVerificationStep logs gate.verification.step events.
func (p *StubPublisher) PublishVerificationStep(_ context.Context, event domain.VerificationStepEvent) error {
	payload := map[string]any{
		"session_key": logger.MaskString(event.SessionKey),
		"step":        event.Step,
		"outcome":     event.Outcome,
		"client_ip":   logger.MaskIP(event.ClientIP),
		"metadata":    event.Metadata,
	}
	p.logEvent("gate.verification.step", event.OccurredAt, payload)
	return nil
}

// PublishOTPIssued logs gate.otp.issued events.
func (p *StubPublisher) PublishOTPIssued(_ context.Context, event domain.OTPIssuedEvent) error {
	payload := map[string]any{
		"session_key": logger.MaskString(event.SessionKey),
		"resend":      event.Resend,
		"issued_at":   event.IssuedAt,
		"expires_at":  event.ExpiresAt,
	}
	p.logEvent("gate.otp.issued", event.IssuedAt, payload)
	return nil
}

// PublishAdminAuthenticated logs gate.admin.authenticated events.
func (p *StubPublisher) PublishAdminAuthenticated(_ context.Context, event domain.AdminAuthenticatedEvent) error {
	payload := map[string]any{
		"session_id":       event.SessionID,
		"subject":          logger.MaskEmail(event.Subject),
		"authenticated_at": event.AuthenticatedAt,
		"expires_at":       event.ExpiresAt,
		"client_ip":        logger.MaskIP(event.ClientIP),
	}
	p.logEvent("gate.admin.authenticated", event.AuthenticatedAt, payload)
	return nil
}

// PublishAdminSessionRevoked logs gate.admin.session_revoked events.
func (p *StubPublisher) PublishAdminSessionRevoked(_ context.Context, event domain.AdminSessionRevokedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"subject":    logger.MaskEmail(event.Subject),
		"revoked_at": event.RevokedAt,
		"reason":     event.Reason,
	}
	p.logEvent("gate.admin.session_revoked", event.RevokedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
