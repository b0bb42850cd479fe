package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionHeader carries the caller session for session-bound challenges
	SessionHeader = "X-Session-ID"

	// SessionCookie is used when no session header is sent
	SessionCookie = "keyauth_session"

	sessionKey = "sessionID"
)

// SessionMiddleware resolves the caller session from the X-Session-ID header
// or the session cookie. A new session id is issued as an HttpOnly cookie
// when neither is present.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionHeader)

		if sessionID == "" {
			if cookie, err := c.Cookie(SessionCookie); err == nil {
				sessionID = cookie
			}
		}

		if sessionID == "" {
			sessionID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sessionID, 0, "/", "", c.Request.TLS != nil, true)
		}

		c.Set(sessionKey, sessionID)
		c.Next()
	}
}

// CSRFMiddleware rejects requests missing the given header. An empty header
// name disables the check.
func CSRFMiddleware(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header != "" && c.GetHeader(header) == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Missing " + header + " header"})
			return
		}
		c.Next()
	}
}

// LoggerMiddleware logs one line per request
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
