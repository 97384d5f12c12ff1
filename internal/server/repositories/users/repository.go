package users

import (
	"context"
	"time"

	"github.com/devsync/devsync/internal/server/models"
)

// Repository is the persistence contract for accounts. Lookups that find no
// row return common.ErrorNotFound; inserts that collide on a unique column
// return common.ErrorAlreadyExists.
type Repository interface {
	CreateCredential(ctx context.Context, acct *models.CredentialAccount) (*models.CredentialAccount, error)
	CreateFederated(ctx context.Context, acct *models.FederatedAccount) (*models.FederatedAccount, error)

	GetByID(ctx context.Context, id string) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.FederatedAccount, error)

	SetVerificationCode(ctx context.Context, userID string, code *models.PendingCode) error
	// MarkVerified flips the verified flag and clears the pending code in one
	// statement, so a consumed code can never be replayed.
	MarkVerified(ctx context.Context, userID string) error

	SetResetToken(ctx context.Context, userID string, reset *models.PendingReset) error
	// ConsumeResetToken sets a new password hash for the account holding an
	// unexpired token and clears the token, all in one statement. It returns
	// the account id, or common.ErrorNotFound when the token is unknown or
	// expired.
	ConsumeResetToken(ctx context.Context, token string, now time.Time, newPasswordHash string) (string, error)
}
