package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/toolhub/admin-gate/internal/core/domain"
	"github.com/toolhub/admin-gate/internal/usecase"
)

const (
	// AdminSessionKey is the context key for the validated admin session.
	AdminSessionKey = "admin_session"
	// AdminTokenKey is the context key for the raw bearer token.
	AdminTokenKey = "admin_token"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAdminSession validates the Authorization header against the admin
// session service. Malformed, expired and revoked tokens all produce the same
// 401 response.
func RequireAdminSession(sessions *usecase.AdminSessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authorization required"))
			return
		}

		session, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid admin session"))
			return
		}

		c.Set(AdminSessionKey, session)
		c.Set(AdminTokenKey, token)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = session.Subject
		}

		c.Next()
	}
}

// GetAdminSession retrieves the validated session from context.
func GetAdminSession(c *gin.Context) *domain.AdminSession {
	raw, exists := c.Get(AdminSessionKey)
	if !exists {
		return nil
	}

	session, ok := raw.(*domain.AdminSession)
	if !ok {
		return nil
	}

	return session
}

// GetAdminToken retrieves the raw bearer token stored by RequireAdminSession.
func GetAdminToken(c *gin.Context) string {
	raw, exists := c.Get(AdminTokenKey)
	if !exists {
		return ""
	}

	token, _ := raw.(string)
	return token
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}
