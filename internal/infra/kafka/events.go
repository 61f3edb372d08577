package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/toolhub/admin-gate/internal/core/domain"
	"github.com/toolhub/admin-gate/internal/core/port"
	"github.com/toolhub/admin-gate/internal/infra/config"
	"github.com/toolhub/admin-gate/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventType string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishVerificationStep publishes gate.verification.step events. Session
// keys are masked; they are bearer material while a flow is live.
func (p *EventPublisher) PublishVerificationStep(ctx context.Context, event domain.VerificationStepEvent) error {
	payload := map[string]any{
		"session_key": logger.MaskString(event.SessionKey),
		"step":        event.Step,
		"outcome":     event.Outcome,
		"client_ip":   logger.MaskIP(event.ClientIP),
		"occurred_at": event.OccurredAt,
		"metadata":    event.Metadata,
	}
	return p.publish(ctx, "gate.verification.step", event.OccurredAt, payload)
}

// PublishOTPIssued publishes gate.otp.issued events. The code itself never
// enters the payload, only issuance metadata.
func (p *EventPublisher) PublishOTPIssued(ctx context.Context, event domain.OTPIssuedEvent) error {
	payload := map[string]any{
		"session_key": logger.MaskString(event.SessionKey),
		"resend":      event.Resend,
		"issued_at":   event.IssuedAt,
		"expires_at":  event.ExpiresAt,
	}
	return p.publish(ctx, "gate.otp.issued", event.IssuedAt, payload)
}

// PublishAdminAuthenticated publishes gate.admin.authenticated events.
func (p *EventPublisher) PublishAdminAuthenticated(ctx context.Context, event domain.AdminAuthenticatedEvent) error {
	payload := map[string]any{
		"session_id":       event.SessionID,
		"subject":          logger.MaskEmail(event.Subject),
		"authenticated_at": event.AuthenticatedAt,
		"expires_at":       event.ExpiresAt,
		"client_ip":        logger.MaskIP(event.ClientIP),
	}
	return p.publish(ctx, "gate.admin.authenticated", event.AuthenticatedAt, payload)
}

// PublishAdminSessionRevoked publishes gate.admin.session_revoked events.
func (p *EventPublisher) PublishAdminSessionRevoked(ctx context.Context, event domain.AdminSessionRevokedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"subject":    logger.MaskEmail(event.Subject),
		"revoked_at": event.RevokedAt,
		"reason":     event.Reason,
	}
	return p.publish(ctx, "gate.admin.session_revoked", event.RevokedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
