package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/toolhub/admin-gate/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the first verification step.
type LoginRequest struct {
	Identity string `json:"identity" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
	// SessionKey optionally names a prior verification session to discard.
	SessionKey string `json:"session_key"`
}

// LoginResponse returns the opaque key the caller presents on later steps.
type LoginResponse struct {
	SessionKey string `json:"session_key"`
	Message    string `json:"message"`
}

// VerifyCodeRequest defines the payload for the second verification step.
type VerifyCodeRequest struct {
	SessionKey string `json:"session_key" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

// VerifyCodeResponse confirms the security code and announces delivery.
type VerifyCodeResponse struct {
	Message string `json:"message"`
}

// VerifyOTPRequest defines the payload for the final verification step.
type VerifyOTPRequest struct {
	SessionKey string `json:"session_key" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

// VerifyOTPResponse returns the terminal admin session token.
type VerifyOTPResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResendOTPRequest asks for a fresh one-time code on a live session.
type ResendOTPRequest struct {
	SessionKey string `json:"session_key" binding:"required"`
}

// AuditEventPayload is one audit row in API responses.
type AuditEventPayload struct {
	ID        string    `json:"id"`
	Step      string    `json:"step"`
	Outcome   string    `json:"outcome"`
	Identity  string    `json:"identity,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditListResponse wraps the recent audit trail.
type AuditListResponse struct {
	Events []AuditEventPayload `json:"events"`
	Total  int                 `json:"total"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newAuditEventPayload(event domain.AuditEvent) AuditEventPayload {
	return AuditEventPayload{
		ID:        event.ID,
		Step:      event.Step,
		Outcome:   event.Outcome,
		Identity:  event.Identity,
		ClientIP:  event.ClientIP,
		RequestID: event.RequestID,
		CreatedAt: event.CreatedAt,
	}
}
