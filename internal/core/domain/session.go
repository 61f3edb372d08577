package domain

import "time"

// AdminSession describes the long-lived authenticated-session marker issued
// once the full verification protocol has completed. It is independent of the
// verification phases; revoking it does not touch any verification state.
type AdminSession struct {
	// ID is the token identifier (jti). Only its hash is persisted server-side.
	ID        string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Active reports whether the session marker is still within its TTL.
func (s AdminSession) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
