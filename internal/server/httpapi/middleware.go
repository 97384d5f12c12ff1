package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/devsync/devsync/internal/logging"
	"github.com/devsync/devsync/internal/server/auth"
	"github.com/gin-gonic/gin"
)

// ctxUserID is the gin context key holding the authenticated account id.
const ctxUserID = "userID"

// RequireAuth validates the bearer token and stores the account id in the
// request context. Missing and invalid tokens both end the request with 401.
func RequireAuth(secretKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(c, http.StatusUnauthorized, "No token, authorization denied")
			c.Abort()
			return
		}

		userID, err := auth.GetUserIDFromToken(token, secretKey)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "Token is not valid")
			c.Abort()
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// RequestLogger logs one line per request after it completes.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
