// Package oauthx abstracts the external identity providers the service
// federates with. Flow code depends only on Provider; the concrete Google
// implementation lives in google.go.
package oauthx

import "context"

// Identity is the subset of a provider profile the service needs to create or
// match a federated account.
type Identity struct {
	ProviderID string
	Name       string
	Email      string
	AvatarURL  string
}

// Provider drives the authorization-code flow against one external provider.
type Provider interface {
	// AuthCodeURL builds the provider authorization URL carrying the given
	// anti-forgery state.
	AuthCodeURL(state string) string
	// Exchange redeems an authorization code for a verified Identity.
	Exchange(ctx context.Context, code string) (*Identity, error)
}
