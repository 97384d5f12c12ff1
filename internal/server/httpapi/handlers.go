// Package httpapi exposes the auth flows over HTTP. JSON endpoints live under
// /api/auth; the browser-facing OAuth redirect pair lives under /auth.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/devsync/devsync/internal/common"
	"github.com/devsync/devsync/internal/logging"
	"github.com/devsync/devsync/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// Handler holds the services the endpoints delegate to.
type Handler struct {
	auth      *services.AuthService
	oauth     *services.OAuthService
	logger    logging.Logger
	clientURL string
}

func NewHandler(auth *services.AuthService, oauth *services.OAuthService, logger logging.Logger, clientURL string) *Handler {
	return &Handler{auth: auth, oauth: oauth, logger: logger, clientURL: clientURL}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.As(err, &vErr):
			respondError(c, http.StatusBadRequest, vErr.Msg)
		case errors.Is(err, common.ErrorAlreadyExists):
			respondError(c, http.StatusConflict, "User already exists")
		case errors.Is(err, common.ErrMailDelivery):
			respondError(c, http.StatusInternalServerError, "Failed to send verification email")
		default:
			h.serverError(c, err)
		}
		return
	}

	// 201 only for a fresh account; re-issuing a code to an existing
	// unverified account is a 200.
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"msg":               "Verification code sent to your email",
		"userId":            res.UserID,
		"needsVerification": true,
		"email":             res.Email,
	})
}

// VerifyEmail handles POST /api/auth/verify-email.
func (h *Handler) VerifyEmail(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
		Code   string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Code == "" {
		respondError(c, http.StatusBadRequest, "User ID and verification code are required")
		return
	}

	res, err := h.auth.VerifyEmail(c.Request.Context(), req.UserID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			respondError(c, http.StatusNotFound, "User not found")
		case errors.Is(err, common.ErrAlreadyVerified):
			respondError(c, http.StatusBadRequest, "Email already verified")
		case errors.Is(err, common.ErrVerificationInvalid):
			respondError(c, http.StatusBadRequest, "Invalid verification code")
		case errors.Is(err, common.ErrVerificationExpired):
			respondError(c, http.StatusBadRequest, "Verification code expired")
		default:
			h.serverError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": res.Token, "user": res.User})
}

// ResendVerification handles POST /api/auth/resend-verification.
func (h *Handler) ResendVerification(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		respondError(c, http.StatusBadRequest, "User ID is required")
		return
	}

	if err := h.auth.ResendVerification(c.Request.Context(), req.UserID); err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			respondError(c, http.StatusNotFound, "User not found")
		case errors.Is(err, common.ErrAlreadyVerified):
			respondError(c, http.StatusBadRequest, "Email already verified")
		case errors.Is(err, common.ErrMailDelivery):
			respondError(c, http.StatusInternalServerError, "Failed to send verification email")
		default:
			h.serverError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Verification code sent"})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var vr *services.VerificationRequiredError
		switch {
		case errors.As(err, &vr):
			body := errorBody("Please verify your email first")
			body["requiresVerification"] = true
			body["userId"] = vr.UserID
			body["email"] = vr.Email
			c.JSON(http.StatusBadRequest, body)
		case errors.Is(err, common.ErrorNotFound):
			respondError(c, http.StatusBadRequest, "User not found. Please Sign up first!!")
		case errors.Is(err, common.ErrorUnauthorized):
			respondError(c, http.StatusBadRequest, "Invalid credentials")
		default:
			h.serverError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": res.Token, "user": res.User})
}

// ForgotPassword handles POST /api/auth/forgot-password.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		respondError(c, http.StatusBadRequest, "Email is required")
		return
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Password reset link sent to your email"})
}

// ResetPassword handles POST /api/auth/reset-password/:token.
func (h *Handler) ResetPassword(c *gin.Context) {
	token := c.Param("token")

	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		respondError(c, http.StatusBadRequest, "Password is required")
		return
	}

	if err := h.auth.CompletePasswordReset(c.Request.Context(), token, req.Password); err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.As(err, &vErr):
			respondError(c, http.StatusBadRequest, vErr.Msg)
		case errors.Is(err, common.ErrResetTokenInvalid):
			respondError(c, http.StatusBadRequest, "Invalid or expired reset token")
		default:
			h.serverError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Password reset successful"})
}

// Me handles GET /api/auth. RequireAuth has already resolved the account id.
func (h *Handler) Me(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	user, err := h.auth.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// OAuthStart handles GET /auth/google: it plants the anti-forgery state
// cookie and sends the browser to the provider.
func (h *Handler) OAuthStart(c *gin.Context) {
	state := uuid.NewString()
	c.SetCookie(stateCookieName, state, int(stateCookieTTL.Seconds()), "/", "", false, true)
	c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

// OAuthCallback handles GET /auth/callback. Every outcome is a redirect back
// to the web client; errors are carried in the query string.
func (h *Handler) OAuthCallback(c *gin.Context) {
	state := c.Query("state")
	cookie, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || state != cookie {
		h.logger.Warn(c.Request.Context(), "oauth state mismatch")
		c.Redirect(http.StatusFound, h.clientURL+"/login?error=oauth_failed")
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusFound, h.clientURL+"/login?error=oauth_failed")
		return
	}

	token, err := h.oauth.HandleCallback(c.Request.Context(), code)
	if err != nil {
		h.logger.Error(c.Request.Context(), "oauth callback failed", "error", err)
		if errors.Is(err, common.ErrTokenIssueFailed) {
			c.Redirect(http.StatusFound, h.clientURL+"/login?error=oauth_token_failed")
			return
		}
		c.Redirect(http.StatusFound, h.clientURL+"/login?error=oauth_failed")
		return
	}

	c.Redirect(http.StatusFound, h.clientURL+"/dashboard?token="+token)
}

func (h *Handler) serverError(c *gin.Context, err error) {
	h.logger.Error(c.Request.Context(), "request failed", "error", err)
	respondError(c, http.StatusInternalServerError, "Server error")
}
