// Package models defines the identity domain types of the auth service.
//
// An account has one of two origins: it was either created through the
// password registration flow (CredentialAccount) or through an OAuth
// provider callback (FederatedAccount). The two origins are modeled as
// explicit variants of the Account sum so flow code can never read a missing
// password hash as a valid one, and so the verification gate is type-checked
// to apply only to credential accounts.
package models

import "time"

// Profile is the part of an account shared by both origins.
type Profile struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

// PendingCode is an outstanding email verification code. Both fields are set
// together and cleared together; consumption happens atomically with the
// verified-state transition it authorizes.
type PendingCode struct {
	Code      string
	ExpiresAt time.Time
}

// PendingReset is an outstanding password reset token.
type PendingReset struct {
	Token     string
	ExpiresAt time.Time
}

// Account is the sum of the two account origins. Exactly CredentialAccount
// and FederatedAccount implement it.
type Account interface {
	// AccountProfile returns the shared profile fields.
	AccountProfile() Profile
}

// CredentialAccount is a password-based account with an email verification
// lifecycle. Verification and Reset are nil when no code/token is pending.
type CredentialAccount struct {
	Profile
	PasswordHash  string
	EmailVerified bool
	Verification  *PendingCode
	Reset         *PendingReset
}

// FederatedAccount was created from an OAuth provider profile. It carries no
// password and is never subject to the email verification gate.
type FederatedAccount struct {
	Profile
	ProviderID string
}

func (a *CredentialAccount) AccountProfile() Profile { return a.Profile }

func (a *FederatedAccount) AccountProfile() Profile { return a.Profile }
