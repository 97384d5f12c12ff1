// Package common defines sentinel errors shared across the DevSync auth
// service. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Verification lifecycle errors.
	ErrAlreadyVerified     = errors.New("email already verified")
	ErrVerificationInvalid = errors.New("invalid verification code")
	ErrVerificationExpired = errors.New("verification code expired")

	// Reset lifecycle errors.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")

	// Outbound email errors.
	ErrMailDelivery = errors.New("mail delivery failed")

	// Auth errors (invalid or malformed session token).
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenIssueFailed = errors.New("session token issue failed")
)
