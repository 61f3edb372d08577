package domain

import "time"

// AuditEvent is one row of the back-office audit trail. Identity is stored
// masked; the plaintext one-time code never appears here.
type AuditEvent struct {
	ID         string
	SessionKey string
	Step       string
	Outcome    string
	Identity   string
	ClientIP   string
	RequestID  string
	CreatedAt  time.Time
}
