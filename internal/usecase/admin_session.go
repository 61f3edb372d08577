package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toolhub/admin-gate/internal/core/domain"
	"github.com/toolhub/admin-gate/internal/core/port"
	"github.com/toolhub/admin-gate/internal/infra/security"
	"github.com/toolhub/admin-gate/internal/infra/telemetry"
)

const (
	defaultAdminSessionTTL = 24 * time.Hour
	minSigningKeyLength    = 32
)

// ErrInvalidAdminSession indicates the presented session token is malformed,
// expired, signed with the wrong key, or has been revoked. The cases are not
// distinguished for the caller.
var ErrInvalidAdminSession = errors.New("invalid admin session")

// IssuedAdminSession is the terminal marker handed to the caller after full
// verification.
type IssuedAdminSession struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// AdminSessionService issues and validates the long-lived admin session
// marker. The marker is an HS256 JWT whose token ID is also registered
// (hashed) in the session store so it can be revoked before expiry.
type AdminSessionService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	store      port.AdminSessionStore
	events     port.EventPublisher
	metrics    *telemetry.GateMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewAdminSessionService constructs an AdminSessionService.
func NewAdminSessionService(signingKey, issuer string, ttl time.Duration, store port.AdminSessionStore, events port.EventPublisher, log *zap.Logger) (*AdminSessionService, error) {
	if len(signingKey) < minSigningKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes", minSigningKeyLength)
	}
	if store == nil {
		return nil, errors.New("admin session store is required")
	}
	if ttl <= 0 {
		ttl = defaultAdminSessionTTL
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AdminSessionService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		store:      store,
		events:     events,
		logger:     log,
		now:        time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *AdminSessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics attaches Prometheus collectors.
func (s *AdminSessionService) WithMetrics(metrics *telemetry.GateMetrics) {
	s.metrics = metrics
}

// Issue signs a fresh session token for the subject and registers its ID so
// the session is revocable.
func (s *AdminSessionService) Issue(ctx context.Context, subject, clientIP string) (*IssuedAdminSession, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	jti := uuid.NewString()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        jti,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("sign admin session token: %w", err)
	}

	if err := s.store.Save(ctx, security.HashToken(jti), s.ttl); err != nil {
		return nil, fmt.Errorf("register admin session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SessionsIssued.Inc()
	}
	if s.events != nil {
		event := domain.AdminAuthenticatedEvent{
			SessionID:       jti,
			Subject:         subject,
			AuthenticatedAt: now,
			ExpiresAt:       expiresAt,
			ClientIP:        clientIP,
		}
		if err := s.events.PublishAdminAuthenticated(ctx, event); err != nil {
			s.logger.Warn("publish admin authenticated event", zap.Error(err))
		}
	}

	return &IssuedAdminSession{
		Token:     signed,
		SessionID: jti,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate checks the token's signature and expiry, then confirms the session
// has not been revoked.
func (s *AdminSessionService) Validate(ctx context.Context, token string) (*domain.AdminSession, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.Exists(ctx, security.HashToken(claims.ID))
	if err != nil {
		return nil, fmt.Errorf("check admin session: %w", err)
	}
	if !exists {
		return nil, ErrInvalidAdminSession
	}

	session := &domain.AdminSession{
		ID:        claims.ID,
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}

	return session, nil
}

// Revoke invalidates the session ahead of its natural expiry.
func (s *AdminSessionService) Revoke(ctx context.Context, token, reason string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, security.HashToken(claims.ID)); err != nil {
		return fmt.Errorf("revoke admin session: %w", err)
	}

	if s.events != nil {
		event := domain.AdminSessionRevokedEvent{
			SessionID: claims.ID,
			Subject:   claims.Subject,
			RevokedAt: s.now().UTC(),
			Reason:    reason,
		}
		if err := s.events.PublishAdminSessionRevoked(ctx, event); err != nil {
			s.logger.Warn("publish admin session revoked event", zap.Error(err))
		}
	}

	return nil
}

func (s *AdminSessionService) parse(token string) (*jwt.RegisteredClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidAdminSession
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidAdminSession
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidAdminSession
	}

	return claims, nil
}
