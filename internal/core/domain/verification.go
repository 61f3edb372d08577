package domain

import "time"

// Phase identifies the caller's position in the admin verification protocol.
// The protocol only ever advances forward; a missing record is PhaseNone.
type Phase string

const (
	// PhaseNone means no verification has started (or the previous state expired).
	PhaseNone Phase = ""
	// PhaseCredentialsVerified means the identity/secret pair was accepted.
	PhaseCredentialsVerified Phase = "credentials_verified"
	// PhaseCodeVerified means the security code was accepted and a one-time code
	// has been delivered out-of-band.
	PhaseCodeVerified Phase = "code_verified"
)

// VerificationState is the server-held record tracking one caller's progress
// through the verification protocol. It is keyed by an opaque session key the
// caller cannot use to forge phase or digest.
type VerificationState struct {
	Phase Phase
	// OTPDigest is the salted one-way digest of the currently valid one-time
	// code. Populated only while Phase == PhaseCodeVerified; the plaintext
	// code is never retained server-side.
	OTPDigest string
	// IssuedAt records when the current one-time code was generated and
	// delivered. Drives the resend cooldown.
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the state's TTL has elapsed at the given instant.
// An expired state must be treated identically to a missing one.
func (s VerificationState) Expired(now time.Time) bool {
	return s.ExpiresAt.IsZero() || !now.Before(s.ExpiresAt)
}

// InPhase reports whether the state is live and sitting exactly at the
// required phase. Operations never act on a state in any other phase.
func (s VerificationState) InPhase(phase Phase, now time.Time) bool {
	return s.Phase == phase && !s.Expired(now)
}
