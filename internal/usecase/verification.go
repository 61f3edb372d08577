package usecase

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toolhub/admin-gate/internal/core/domain"
	"github.com/toolhub/admin-gate/internal/core/port"
	"github.com/toolhub/admin-gate/internal/infra/logger"
	"github.com/toolhub/admin-gate/internal/infra/security"
	"github.com/toolhub/admin-gate/internal/infra/telemetry"
	"github.com/toolhub/admin-gate/internal/repository"
)

const (
	defaultStepTTL         = 5 * time.Minute
	defaultCodeLength      = 6
	defaultResendCooldown  = time.Minute
	defaultDeliveryTimeout = 10 * time.Second

	lockStripes = 64
)

var (
	// ErrInvalidCredentials indicates the identity or secret is incorrect. The
	// two cases are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidCode indicates the submitted security or one-time code did not match.
	ErrInvalidCode = errors.New("invalid code")
	// ErrSessionExpired indicates no live verification state exists at the
	// required phase. Missing and expired state are treated identically.
	ErrSessionExpired = errors.New("verification session expired")
	// ErrDeliveryFailed indicates the one-time code could not be handed to the
	// out-of-band channel. Retryable without new input.
	ErrDeliveryFailed = errors.New("code delivery failed")
)

// ResendThrottledError indicates a resend was requested before the cooldown
// window elapsed.
type ResendThrottledError struct {
	RetryAfter time.Duration
}

func (e *ResendThrottledError) Error() string {
	return "resend throttled"
}

// RequestMeta carries transport-level context recorded alongside outcomes.
type RequestMeta struct {
	ClientIP  string
	RequestID string
}

// VerificationService drives the three-step admin verification protocol. All
// state transitions go through here; the transport layer only moves strings.
type VerificationService struct {
	secrets   port.SecretStore
	states    port.VerificationStore
	deliverer port.CodeDeliverer
	sessions  *AdminSessionService
	events    port.EventPublisher
	audit     port.AuditRepository
	metrics   *telemetry.GateMetrics
	logger    *zap.Logger
	now       func() time.Time

	stepTTL         time.Duration
	codeLength      int
	resendCooldown  time.Duration
	deliveryTimeout time.Duration

	// locks serializes read-modify-write cycles per session key so concurrent
	// submits and resends on one session cannot interleave.
	locks [lockStripes]sync.Mutex
}

// NewVerificationService constructs a VerificationService. Events, audit and
// metrics are optional; the protocol itself requires the first four
// collaborators.
func NewVerificationService(
	secrets port.SecretStore,
	states port.VerificationStore,
	deliverer port.CodeDeliverer,
	sessions *AdminSessionService,
	events port.EventPublisher,
	audit port.AuditRepository,
	log *zap.Logger,
) (*VerificationService, error) {
	switch {
	case secrets == nil:
		return nil, errors.New("secret store is required")
	case states == nil:
		return nil, errors.New("verification store is required")
	case deliverer == nil:
		return nil, errors.New("code deliverer is required")
	case sessions == nil:
		return nil, errors.New("admin session service is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &VerificationService{
		secrets:         secrets,
		states:          states,
		deliverer:       deliverer,
		sessions:        sessions,
		events:          events,
		audit:           audit,
		logger:          log,
		now:             time.Now,
		stepTTL:         defaultStepTTL,
		codeLength:      defaultCodeLength,
		resendCooldown:  defaultResendCooldown,
		deliveryTimeout: defaultDeliveryTimeout,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *VerificationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithStepTTL adjusts the TTL applied to every non-terminal phase.
func (s *VerificationService) WithStepTTL(ttl time.Duration) {
	if ttl > 0 {
		s.stepTTL = ttl
	}
}

// WithCodeLength adjusts the number of digits in generated one-time codes.
func (s *VerificationService) WithCodeLength(length int) {
	if length > 0 {
		s.codeLength = length
	}
}

// WithResendCooldown adjusts the minimum interval between code issuances.
func (s *VerificationService) WithResendCooldown(cooldown time.Duration) {
	if cooldown >= 0 {
		s.resendCooldown = cooldown
	}
}

// WithDeliveryTimeout bounds the out-of-band delivery call.
func (s *VerificationService) WithDeliveryTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.deliveryTimeout = timeout
	}
}

// WithMetrics attaches Prometheus collectors.
func (s *VerificationService) WithMetrics(metrics *telemetry.GateMetrics) {
	s.metrics = metrics
}

// SubmitCredentials validates the identity/secret pair against the secret
// store. On success it opens a fresh verification session at
// PhaseCredentialsVerified and returns its opaque key; any prior session the
// caller held is discarded. On mismatch nothing is written.
func (s *VerificationService) SubmitCredentials(ctx context.Context, identity, secret string, priorSessionKey string, meta RequestMeta) (string, error) {
	identity = strings.TrimSpace(identity)

	// Evaluate both comparisons before branching so a wrong identity and a
	// wrong secret are indistinguishable, in timing as well as in the result.
	identityOK := security.SecureCompare(identity, s.secrets.AdminIdentity())
	secretOK := security.SecureCompare(secret, s.secrets.AdminSecret())

	if !identityOK || !secretOK {
		s.record(ctx, priorSessionKey, domain.StepCredentials, domain.OutcomeRejected, identity, meta)
		return "", ErrInvalidCredentials
	}

	sessionKey := uuid.NewString()
	now := s.now().UTC()

	state := domain.VerificationState{
		Phase:     domain.PhaseCredentialsVerified,
		ExpiresAt: now.Add(s.stepTTL),
	}

	if err := s.states.Put(ctx, sessionKey, state, s.stepTTL); err != nil {
		return "", err
	}

	if prior := strings.TrimSpace(priorSessionKey); prior != "" {
		if err := s.states.Delete(ctx, prior); err != nil {
			s.logger.Warn("discard prior verification session", zap.Error(err))
		}
	}

	s.record(ctx, sessionKey, domain.StepCredentials, domain.OutcomeAccepted, identity, meta)
	return sessionKey, nil
}

// SubmitSecretCode validates the secondary security code. On match it
// generates a one-time code, delivers it out-of-band, and advances the
// session to PhaseCodeVerified with a fresh TTL. Delivery failure leaves the
// session at PhaseCredentialsVerified so the caller can retry.
func (s *VerificationService) SubmitSecretCode(ctx context.Context, sessionKey, code string, meta RequestMeta) error {
	mu := s.lockFor(sessionKey)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.liveState(ctx, sessionKey, domain.PhaseCredentialsVerified); err != nil {
		s.record(ctx, sessionKey, domain.StepSecretCode, domain.OutcomeExpired, "", meta)
		return err
	}

	// The security code is a low-cardinality shared secret compared as-is;
	// the cryptographically verified tier is the one-time code that follows.
	if !security.SecureCompare(strings.TrimSpace(code), s.secrets.SecurityCode()) {
		s.record(ctx, sessionKey, domain.StepSecretCode, domain.OutcomeRejected, "", meta)
		return ErrInvalidCode
	}

	if err := s.issueCode(ctx, sessionKey, false, meta); err != nil {
		return err
	}

	s.record(ctx, sessionKey, domain.StepSecretCode, domain.OutcomeAccepted, "", meta)
	return nil
}

// SubmitOneTimeCode validates the delivered code against the stored digest.
// On match it grants the terminal admin session and destroys the
// verification state. On mismatch the state is untouched, so the caller may
// retry until the TTL elapses.
func (s *VerificationService) SubmitOneTimeCode(ctx context.Context, sessionKey, code string, meta RequestMeta) (*IssuedAdminSession, error) {
	mu := s.lockFor(sessionKey)
	mu.Lock()
	defer mu.Unlock()

	state, err := s.liveState(ctx, sessionKey, domain.PhaseCodeVerified)
	if err != nil {
		s.record(ctx, sessionKey, domain.StepOneTimeCode, domain.OutcomeExpired, "", meta)
		return nil, err
	}

	if !security.VerifyOneTimeCode(strings.TrimSpace(code), s.secrets.OTPSalt(), state.OTPDigest) {
		s.record(ctx, sessionKey, domain.StepOneTimeCode, domain.OutcomeRejected, "", meta)
		return nil, ErrInvalidCode
	}

	// Grant before destroying the verification state: a failed grant must
	// leave the caller able to retry, while a failed cleanup only shortens
	// nothing (the TTL still bounds the leftover record).
	grant, err := s.sessions.Issue(ctx, s.secrets.AdminIdentity(), meta.ClientIP)
	if err != nil {
		return nil, err
	}

	if err := s.states.Delete(ctx, sessionKey); err != nil {
		s.logger.Error("delete verification state after grant", zap.Error(err))
	}

	s.record(ctx, sessionKey, domain.StepOneTimeCode, domain.OutcomeAccepted, "", meta)
	return grant, nil
}

// ResendOneTimeCode generates and delivers a fresh code, invalidating the
// previous one. Resends inside the cooldown window are rejected outright.
func (s *VerificationService) ResendOneTimeCode(ctx context.Context, sessionKey string, meta RequestMeta) error {
	mu := s.lockFor(sessionKey)
	mu.Lock()
	defer mu.Unlock()

	state, err := s.liveState(ctx, sessionKey, domain.PhaseCodeVerified)
	if err != nil {
		s.record(ctx, sessionKey, domain.StepResend, domain.OutcomeExpired, "", meta)
		return err
	}

	now := s.now().UTC()
	if s.resendCooldown > 0 && !state.IssuedAt.IsZero() {
		if next := state.IssuedAt.Add(s.resendCooldown); now.Before(next) {
			s.record(ctx, sessionKey, domain.StepResend, domain.OutcomeThrottled, "", meta)
			return &ResendThrottledError{RetryAfter: next.Sub(now)}
		}
	}

	if err := s.issueCode(ctx, sessionKey, true, meta); err != nil {
		return err
	}

	s.record(ctx, sessionKey, domain.StepResend, domain.OutcomeAccepted, "", meta)
	return nil
}

// issueCode generates a code, delivers it, and only then commits the new
// digest. The stored digest therefore always corresponds to a code the
// caller was actually sent.
func (s *VerificationService) issueCode(ctx context.Context, sessionKey string, resend bool, meta RequestMeta) error {
	code, err := security.GenerateNumericCode(s.codeLength)
	if err != nil {
		return err
	}
	digest := security.DigestOneTimeCode(code, s.secrets.OTPSalt())

	deliverCtx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	err = s.deliverer.Deliver(deliverCtx, code)
	cancel()
	if err != nil {
		s.logger.Warn("one-time code delivery failed", zap.Error(err))
		step := domain.StepSecretCode
		if resend {
			step = domain.StepResend
		}
		s.record(ctx, sessionKey, step, domain.OutcomeUndeliver, "", meta)
		return ErrDeliveryFailed
	}

	now := s.now().UTC()
	state := domain.VerificationState{
		Phase:     domain.PhaseCodeVerified,
		OTPDigest: digest,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.stepTTL),
	}

	if err := s.states.Put(ctx, sessionKey, state, s.stepTTL); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.CodesDelivered.Inc()
	}
	if s.events != nil {
		event := domain.OTPIssuedEvent{
			SessionKey: sessionKey,
			Resend:     resend,
			IssuedAt:   now,
			ExpiresAt:  state.ExpiresAt,
		}
		if err := s.events.PublishOTPIssued(ctx, event); err != nil {
			s.logger.Warn("publish otp issued event", zap.Error(err))
		}
	}

	return nil
}

// liveState fetches the state and requires it to sit exactly at the given
// phase. Missing, expired and wrong-phase records all collapse into
// ErrSessionExpired so the caller learns nothing beyond "start over".
func (s *VerificationService) liveState(ctx context.Context, sessionKey string, phase domain.Phase) (*domain.VerificationState, error) {
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return nil, ErrSessionExpired
	}

	state, err := s.states.Get(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	if !state.InPhase(phase, s.now().UTC()) {
		return nil, ErrSessionExpired
	}

	return state, nil
}

// record captures one operation outcome on every observability surface.
// Best-effort throughout: a failed audit write or event publish never fails
// the operation.
func (s *VerificationService) record(ctx context.Context, sessionKey, step, outcome, identity string, meta RequestMeta) {
	if s.metrics != nil {
		s.metrics.ObserveStep(step, outcome)
	}

	if s.audit != nil {
		event := domain.AuditEvent{
			SessionKey: logger.MaskString(sessionKey),
			Step:       step,
			Outcome:    outcome,
			Identity:   logger.MaskEmail(identity),
			ClientIP:   meta.ClientIP,
			RequestID:  meta.RequestID,
			CreatedAt:  s.now().UTC(),
		}
		if err := s.audit.Record(ctx, event); err != nil {
			s.logger.Warn("record audit event", zap.Error(err))
		}
	}

	if s.events != nil {
		event := domain.VerificationStepEvent{
			SessionKey: sessionKey,
			Step:       step,
			Outcome:    outcome,
			ClientIP:   meta.ClientIP,
			OccurredAt: s.now().UTC(),
		}
		if err := s.events.PublishVerificationStep(ctx, event); err != nil {
			s.logger.Warn("publish verification step event", zap.Error(err))
		}
	}
}

func (s *VerificationService) lockFor(sessionKey string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionKey))
	return &s.locks[h.Sum32()%lockStripes]
}
