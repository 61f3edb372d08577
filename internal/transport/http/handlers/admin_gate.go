package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/toolhub/admin-gate/internal/core/port"
	"github.com/toolhub/admin-gate/internal/infra/logger"
	"github.com/toolhub/admin-gate/internal/transport/http/middleware"
	"github.com/toolhub/admin-gate/internal/usecase"
)

const (
	resendThrottleProblemType  = "https://gate.toolhub.example.com/errors/resend-throttled"
	resendThrottleProblemTitle = "Resend Throttled"

	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AdminGateHandler exposes the three-step verification endpoints and the
// authenticated back-office surface behind them.
type AdminGateHandler struct {
	verification *usecase.VerificationService
	sessions     *usecase.AdminSessionService
	audit        port.AuditRepository
}

// NewAdminGateHandler constructs AdminGateHandler.
func NewAdminGateHandler(verification *usecase.VerificationService, sessions *usecase.AdminSessionService, audit port.AuditRepository) *AdminGateHandler {
	return &AdminGateHandler{
		verification: verification,
		sessions:     sessions,
		audit:        audit,
	}
}

// RegisterRoutes binds the verification flow, applying optional middleware
// ahead of the login step.
func (h *AdminGateHandler) RegisterRoutes(r *gin.RouterGroup, sessionAuth gin.HandlerFunc, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}

	r.POST("/verify-code", h.verifySecretCode)
	r.POST("/verify-otp", h.verifyOneTimeCode)
	r.POST("/resend-otp", h.resendOneTimeCode)

	if sessionAuth != nil {
		r.POST("/logout", sessionAuth, h.logout)
		r.GET("/audit", sessionAuth, h.listAudit)
	}
}

func (h *AdminGateHandler) login(c *gin.Context) {
	if h.verification == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "verification service unavailable"))
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	sessionKey, err := h.verification.SubmitCredentials(
		c.Request.Context(),
		strings.TrimSpace(req.Identity),
		req.Secret,
		strings.TrimSpace(req.SessionKey),
		requestMeta(c),
	)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		SessionKey: sessionKey,
		Message:    "security code required",
	})
}

func (h *AdminGateHandler) verifySecretCode(c *gin.Context) {
	if h.verification == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "verification service unavailable"))
		return
	}

	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_key and code are required"))
		return
	}

	err := h.verification.SubmitSecretCode(c.Request.Context(), req.SessionKey, req.Code, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSessionExpired, Status: http.StatusUnauthorized, Message: "verification session expired"},
			{Err: usecase.ErrInvalidCode, Status: http.StatusUnauthorized, Message: "invalid security code"},
			{Err: usecase.ErrDeliveryFailed, Status: http.StatusServiceUnavailable, Message: "could not deliver one-time code"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}

	c.JSON(http.StatusOK, VerifyCodeResponse{Message: "one-time code sent"})
}

func (h *AdminGateHandler) verifyOneTimeCode(c *gin.Context) {
	if h.verification == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "verification service unavailable"))
		return
	}

	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_key and code are required"))
		return
	}

	grant, err := h.verification.SubmitOneTimeCode(c.Request.Context(), req.SessionKey, req.Code, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSessionExpired, Status: http.StatusUnauthorized, Message: "verification session expired"},
			{Err: usecase.ErrInvalidCode, Status: http.StatusUnauthorized, Message: "invalid one-time code"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}

	c.JSON(http.StatusOK, VerifyOTPResponse{
		Token:     grant.Token,
		TokenType: "Bearer",
		ExpiresAt: grant.ExpiresAt,
	})
}

func (h *AdminGateHandler) resendOneTimeCode(c *gin.Context) {
	if h.verification == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "verification service unavailable"))
		return
	}

	var req ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_key is required"))
		return
	}

	err := h.verification.ResendOneTimeCode(c.Request.Context(), req.SessionKey, requestMeta(c))
	if err != nil {
		var throttled *usecase.ResendThrottledError
		if errors.As(err, &throttled) {
			respondResendThrottled(c, throttled)
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSessionExpired, Status: http.StatusUnauthorized, Message: "verification session expired"},
			{Err: usecase.ErrDeliveryFailed, Status: http.StatusServiceUnavailable, Message: "could not deliver one-time code"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}

	c.JSON(http.StatusOK, VerifyCodeResponse{Message: "one-time code sent"})
}

func (h *AdminGateHandler) logout(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "session service unavailable"))
		return
	}

	token := middleware.GetAdminToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.sessions.Revoke(c.Request.Context(), token, "logout"); err != nil {
		if errors.Is(err, usecase.ErrInvalidAdminSession) {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke session"))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AdminGateHandler) listAudit(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "audit trail unavailable"))
		return
	}

	limit := defaultAuditLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	events, err := h.audit.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list audit events"))
		return
	}

	payloads := make([]AuditEventPayload, 0, len(events))
	for _, event := range events {
		payloads = append(payloads, newAuditEventPayload(event))
	}

	c.JSON(http.StatusOK, AuditListResponse{
		Events: payloads,
		Total:  len(payloads),
	})
}

func respondResendThrottled(c *gin.Context, throttled *usecase.ResendThrottledError) {
	retryAfter := int(throttled.RetryAfter / time.Second)
	if throttled.RetryAfter%time.Second != 0 {
		retryAfter++
	}
	if retryAfter < 0 {
		retryAfter = 0
	}

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.JSON(http.StatusTooManyRequests, middleware.ProblemDetails{
		Type:       resendThrottleProblemType,
		Title:      resendThrottleProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("A code was sent recently. Try again in %d seconds.", retryAfter),
		Instance:   instance,
		RetryAfter: retryAfter,
		TraceID:    middleware.GetTraceID(c),
	})
}

func requestMeta(c *gin.Context) usecase.RequestMeta {
	return usecase.RequestMeta{
		ClientIP:  strings.TrimSpace(c.ClientIP()),
		RequestID: requestIDFromContext(c),
	}
}

func requestIDFromContext(c *gin.Context) string {
	if id, ok := c.Request.Context().Value(logger.RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}
