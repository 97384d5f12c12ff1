package auth

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strconv"
	"time"
)

const (
	verificationCodeMin  = 100000
	verificationCodeSpan = 900000

	resetTokenBytes = 32
)

// GenerateVerificationCode returns a 6-digit numeric code drawn uniformly
// from [100000, 999999]. The code is meant to be typed in by a human, so it
// trades entropy for usability; crypto/rand keeps it unguessable from prior
// codes.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(verificationCodeSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+verificationCodeMin, 10), nil
}

// GenerateResetToken returns 32 random bytes hex-encoded (64 characters).
// The entropy makes collisions with outstanding tokens astronomically
// unlikely, so no uniqueness check against the store is performed.
func GenerateResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IsExpired reports whether the deadline has passed on the host's clock.
// Verification and reset flows share this single definition of "expired".
func IsExpired(expiresAt time.Time) bool {
	return time.Now().After(expiresAt)
}
