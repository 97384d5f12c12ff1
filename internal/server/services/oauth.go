package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/devsync/devsync/internal/common"
	"github.com/devsync/devsync/internal/logging"
	"github.com/devsync/devsync/internal/server/auth"
	"github.com/devsync/devsync/internal/server/config"
	"github.com/devsync/devsync/internal/server/models"
	"github.com/devsync/devsync/internal/server/oauthx"
	"github.com/devsync/devsync/internal/server/repositories/repomanager"
)

// OAuthService completes provider callbacks: it matches or creates the
// federated account for a verified provider identity and mints a session
// token. It never consults the email verification gate; proving control of
// the provider account is the verification.
type OAuthService struct {
	db                   *sql.DB
	repomanager          repomanager.RepositoryManager
	provider             oauthx.Provider
	logger               logging.Logger
	jwtSecret            []byte
	sessionTokenValidity time.Duration
}

func NewOAuthService(db *sql.DB, m repomanager.RepositoryManager, provider oauthx.Provider, logger logging.Logger, cfg *config.Config) *OAuthService {
	return &OAuthService{
		db:                   db,
		repomanager:          m,
		provider:             provider,
		logger:               logger,
		jwtSecret:            []byte(cfg.SecretKey),
		sessionTokenValidity: cfg.SessionTokenValidity,
	}
}

// AuthCodeURL builds the provider authorization URL for the given state.
func (s *OAuthService) AuthCodeURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// HandleCallback redeems the authorization code, resolves the identity to an
// account (creating one on first sign-in), and returns a session token.
func (s *OAuthService) HandleCallback(ctx context.Context, code string) (string, error) {
	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("error exchanging authorization code: %v", err)
	}

	acct, err := s.resolveAccount(ctx, identity)
	if err != nil {
		return "", err
	}

	token, err := auth.GenerateToken(acct.ID, s.jwtSecret, s.sessionTokenValidity)
	if err != nil {
		return "", common.ErrTokenIssueFailed
	}

	return token, nil
}

func (s *OAuthService) resolveAccount(ctx context.Context, identity *oauthx.Identity) (*models.FederatedAccount, error) {
	repo := s.repomanager.Users(s.db)

	acct, err := repo.GetByProviderID(ctx, identity.ProviderID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	avatar := identity.AvatarURL
	if avatar == "" {
		avatar = avatarURL(identity.Email)
	}

	created, err := repo.CreateFederated(ctx, &models.FederatedAccount{
		Profile: models.Profile{
			Name:      identity.Name,
			Email:     identity.Email,
			AvatarURL: avatar,
		},
		ProviderID: identity.ProviderID,
	})
	if err == nil {
		s.logger.Info(ctx, "federated account created", "user_id", created.ID)
		return created, nil
	}
	if !errors.Is(err, common.ErrorAlreadyExists) {
		return nil, common.ErrorInternal
	}

	// Either a concurrent first sign-in won the insert, or the email already
	// belongs to a credential account. The retry distinguishes the two.
	acct, err = repo.GetByProviderID(ctx, identity.ProviderID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "oauth email collides with existing account", "provider_id", identity.ProviderID)
			return nil, common.ErrorAlreadyExists
		}
		return nil, common.ErrorInternal
	}

	return acct, nil
}
