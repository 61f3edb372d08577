package security

import (
	"errors"
	"strings"
)

// StaticSecretStore holds the operator-configured gate secrets, sourced from
// deployment configuration at startup and immutable afterwards.
type StaticSecretStore struct {
	identity     string
	secret       string
	securityCode string
	otpSalt      []byte
}

// NewStaticSecretStore validates and wraps the configured secrets.
func NewStaticSecretStore(identity, secret, securityCode, otpSalt string) (*StaticSecretStore, error) {
	identity = strings.TrimSpace(identity)
	securityCode = strings.TrimSpace(securityCode)

	switch {
	case identity == "":
		return nil, errors.New("admin identity is required")
	case secret == "":
		return nil, errors.New("admin secret is required")
	case securityCode == "":
		return nil, errors.New("security code is required")
	case len(otpSalt) < 8:
		return nil, errors.New("otp salt must be at least 8 bytes")
	}

	return &StaticSecretStore{
		identity:     identity,
		secret:       secret,
		securityCode: securityCode,
		otpSalt:      []byte(otpSalt),
	}, nil
}

func (s *StaticSecretStore) AdminIdentity() string { return s.identity }

func (s *StaticSecretStore) AdminSecret() string { return s.secret }

func (s *StaticSecretStore) SecurityCode() string { return s.securityCode }

func (s *StaticSecretStore) OTPSalt() []byte {
	salt := make([]byte, len(s.otpSalt))
	copy(salt, s.otpSalt)
	return salt
}
