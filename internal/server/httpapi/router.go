package httpapi

import (
	"github.com/devsync/devsync/internal/logging"
	"github.com/gin-gonic/gin"
)

// NewRouter wires Gin routes and middleware. The OAuth routes are registered
// only when the handler carries an OAuth service; a deployment without Google
// credentials simply has no /auth group.
func NewRouter(h *Handler, logger logging.Logger, secretKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))

	api := r.Group("/api/auth")
	{
		api.POST("/register", h.Register)
		api.POST("/verify-email", h.VerifyEmail)
		api.POST("/resend-verification", h.ResendVerification)
		api.POST("/login", h.Login)
		api.POST("/forgot-password", h.ForgotPassword)
		api.POST("/reset-password/:token", h.ResetPassword)

		api.GET("", RequireAuth(secretKey), h.Me)
	}

	if h.oauth != nil {
		oauth := r.Group("/auth")
		{
			oauth.GET("/google", h.OAuthStart)
			oauth.GET("/callback", h.OAuthCallback)
		}
	}

	return r
}
