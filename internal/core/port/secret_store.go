package port

// SecretStore exposes the operator-configured secrets the verification
// protocol validates against. Implementations are read-only at runtime and
// safe for concurrent use.
type SecretStore interface {
	// AdminIdentity returns the configured administrator identity (email).
	AdminIdentity() string
	// AdminSecret returns the configured administrator secret.
	AdminSecret() string
	// SecurityCode returns the secondary shared secret checked at step two.
	SecurityCode() string
	// OTPSalt returns the salt mixed into one-time code digests.
	OTPSalt() []byte
}
