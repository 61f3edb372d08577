package domain

import "time"

// Verification step names used in events and audit records.
const (
	StepCredentials = "credentials"
	StepSecretCode  = "secret_code"
	StepOneTimeCode = "one_time_code"
	StepResend      = "resend"
)

// Verification outcomes used in events and audit records.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeExpired   = "expired"
	OutcomeThrottled = "throttled"
	OutcomeUndeliver = "delivery_failed"
)

// VerificationStepEvent is emitted for every verification operation outcome.
type VerificationStepEvent struct {
	SessionKey string
	Step       string
	Outcome    string
	ClientIP   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// OTPIssuedEvent is emitted whenever a one-time code is generated and
// delivered, both on the initial issuance and on resend.
type OTPIssuedEvent struct {
	SessionKey string
	Resend     bool
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// AdminAuthenticatedEvent is emitted when the terminal session marker is granted.
type AdminAuthenticatedEvent struct {
	SessionID       string
	Subject         string
	AuthenticatedAt time.Time
	ExpiresAt       time.Time
	ClientIP        string
}

// AdminSessionRevokedEvent is emitted when an admin session is revoked ahead
// of its natural expiry.
type AdminSessionRevokedEvent struct {
	SessionID string
	Subject   string
	RevokedAt time.Time
	Reason    string
}
