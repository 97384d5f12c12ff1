// Package users implements PostgreSQL persistence for accounts.
//
// Both account origins live in one users table; a row with a non-null
// oauth_id and a null password_hash folds into a FederatedAccount, anything
// else into a CredentialAccount.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/devsync/devsync/internal/common"
	"github.com/devsync/devsync/internal/dbx"
	"github.com/devsync/devsync/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const accountColumns = `id, name, email, avatar_url, password_hash, oauth_id,
	 is_email_verified, email_verification_code, email_verification_expires,
	 reset_password_token, reset_password_expires`

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (r *PostgresRepository) CreateCredential(ctx context.Context, acct *models.CredentialAccount) (*models.CredentialAccount, error) {

	query :=
		`INSERT INTO users (name, email, avatar_url, password_hash, email_verification_code, email_verification_expires)
	     VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id
		 `

	var code sql.NullString
	var expires sql.NullTime
	if acct.Verification != nil {
		code = sql.NullString{String: acct.Verification.Code, Valid: true}
		expires = sql.NullTime{Time: acct.Verification.ExpiresAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		acct.Name, acct.Email, acct.AvatarURL, acct.PasswordHash, code, expires).Scan(&acct.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return acct, nil
}

func (r *PostgresRepository) CreateFederated(ctx context.Context, acct *models.FederatedAccount) (*models.FederatedAccount, error) {

	query :=
		`INSERT INTO users (name, email, avatar_url, oauth_id, is_email_verified)
	     VALUES ($1, $2, $3, $4, TRUE)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		acct.Name, acct.Email, acct.AvatarURL, acct.ProviderID).Scan(&acct.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return acct, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	query :=
		`SELECT ` + accountColumns + ` FROM users
		 WHERE id = $1
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	query :=
		`SELECT ` + accountColumns + ` FROM users
		 WHERE email = $1
		 `
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) GetByProviderID(ctx context.Context, providerID string) (*models.FederatedAccount, error) {
	query :=
		`SELECT ` + accountColumns + ` FROM users
		 WHERE oauth_id = $1
		 `

	acct, err := r.getOne(ctx, query, providerID)
	if err != nil {
		return nil, err
	}

	fed, ok := acct.(*models.FederatedAccount)
	if !ok {
		return nil, fmt.Errorf("account %s matched oauth_id but is not federated", acct.AccountProfile().ID)
	}

	return fed, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (models.Account, error) {
	var (
		profile       models.Profile
		passwordHash  sql.NullString
		oauthID       sql.NullString
		isVerified    bool
		verifyCode    sql.NullString
		verifyExpires sql.NullTime
		resetToken    sql.NullString
		resetExpires  sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&profile.ID, &profile.Name, &profile.Email, &profile.AvatarURL,
		&passwordHash, &oauthID, &isVerified,
		&verifyCode, &verifyExpires, &resetToken, &resetExpires)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if oauthID.Valid && !passwordHash.Valid {
		return &models.FederatedAccount{Profile: profile, ProviderID: oauthID.String}, nil
	}

	acct := &models.CredentialAccount{
		Profile:       profile,
		PasswordHash:  passwordHash.String,
		EmailVerified: isVerified,
	}
	if verifyCode.Valid && verifyExpires.Valid {
		acct.Verification = &models.PendingCode{Code: verifyCode.String, ExpiresAt: verifyExpires.Time}
	}
	if resetToken.Valid && resetExpires.Valid {
		acct.Reset = &models.PendingReset{Token: resetToken.String, ExpiresAt: resetExpires.Time}
	}

	return acct, nil
}

func (r *PostgresRepository) SetVerificationCode(ctx context.Context, userID string, code *models.PendingCode) error {
	query :=
		`UPDATE users SET email_verification_code = $1, email_verification_expires = $2
		 WHERE id = $3
		 RETURNING id
		 `

	var id string
	err := r.db.QueryRowContext(ctx, query, code.Code, code.ExpiresAt, userID).Scan(&id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, userID string) error {
	query :=
		`UPDATE users SET is_email_verified = TRUE, email_verification_code = NULL, email_verification_expires = NULL
		 WHERE id = $1
		 RETURNING id
		 `

	var id string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, userID string, reset *models.PendingReset) error {
	query :=
		`UPDATE users SET reset_password_token = $1, reset_password_expires = $2
		 WHERE id = $3
		 RETURNING id
		 `

	var id string
	err := r.db.QueryRowContext(ctx, query, reset.Token, reset.ExpiresAt, userID).Scan(&id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, token string, now time.Time, newPasswordHash string) (string, error) {
	query :=
		`UPDATE users SET password_hash = $1, reset_password_token = NULL, reset_password_expires = NULL
		 WHERE reset_password_token = $2 AND reset_password_expires > $3
		 RETURNING id
		 `

	var id string
	err := r.db.QueryRowContext(ctx, query, newPasswordHash, token, now).Scan(&id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}

	return id, nil
}
