package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for session token claims.
	ContextKeyClaims = "claims"
)

// SessionAuthorizer decides whether a session id is still the live session.
// *service.ExamService implements it.
type SessionAuthorizer interface {
	Authorize(sessionID string) error
}

// RequireSessionToken validates the session token from the Authorization header,
// falling back to ?token=... for WebSocket upgrades. A token for any session other
// than the current one is rejected.
func RequireSessionToken(tokens *service.TokenService, sessions SessionAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.Validate(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if err := sessions.Authorize(claims.SessionID); err != nil {
			if errors.Is(err, service.ErrNoSession) {
				response.AbortFail(c, http.StatusConflict, response.ErrNoSession)
				return
			}
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the session claims from the Gin context.
func GetClaims(c *gin.Context) *service.SessionClaims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetSessionID returns the session id of the authenticated request, empty if none.
func GetSessionID(c *gin.Context) string {
	if claims := GetClaims(c); claims != nil {
		return claims.SessionID
	}
	return ""
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	// WebSocket clients cannot set headers
	return c.Query("token")
}
