// Package services contains server-side business logic. This file implements
// AuthService, which handles registration with deferred email verification,
// credential login behind the verification gate, and the password reset
// lifecycle.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/devsync/devsync/internal/common"
	"github.com/devsync/devsync/internal/dbx"
	"github.com/devsync/devsync/internal/logging"
	"github.com/devsync/devsync/internal/server/auth"
	"github.com/devsync/devsync/internal/server/config"
	"github.com/devsync/devsync/internal/server/mail"
	"github.com/devsync/devsync/internal/server/models"
	"github.com/devsync/devsync/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// UserView is the account projection returned to clients. It never carries
// the password hash or any pending code or token.
type UserView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Avatar          string `json:"avatar"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

// RegisterResult reports where registration left the account: freshly created
// (Created true) or an existing unverified account that had its code
// re-issued. Either way the next step for the user is entering the code.
type RegisterResult struct {
	UserID  string
	Email   string
	Created bool
}

// AuthResult is a successful authentication: a signed session token plus the
// account it belongs to.
type AuthResult struct {
	Token string
	User  *UserView
}

// ValidationError rejects malformed input. The message is safe to show to the
// end user.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// VerificationRequiredError is returned by Login when the credentials are
// correct but the email is not yet verified. It carries what the client needs
// to route the user into the verification screen.
type VerificationRequiredError struct {
	UserID string
	Email  string
}

func (e *VerificationRequiredError) Error() string {
	return "email not verified"
}

// AuthService provides the credential-account operations:
// - Register: create accounts and issue verification codes
// - VerifyEmail / ResendVerification: the verification code lifecycle
// - Login: verify credentials and mint a session token
// - RequestPasswordReset / CompletePasswordReset: the reset token lifecycle
type AuthService struct {
	db                   *sql.DB
	repomanager          repomanager.RepositoryManager
	mailer               mail.Mailer
	logger               logging.Logger
	jwtSecret            []byte
	sessionTokenValidity time.Duration
	verificationCodeTTL  time.Duration
	resetTokenTTL        time.Duration
	clientURL            string
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, mailer mail.Mailer, logger logging.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                   db,
		repomanager:          m,
		mailer:               mailer,
		logger:               logger,
		jwtSecret:            []byte(cfg.SecretKey),
		sessionTokenValidity: cfg.SessionTokenValidity,
		verificationCodeTTL:  cfg.VerificationCodeTTL,
		resetTokenTTL:        cfg.ResetTokenTTL,
		clientURL:            cfg.ClientURL,
	}
}

// Register creates an unverified account and emails it a verification code.
// Registering an email that belongs to an existing unverified account
// re-issues the code instead of failing, so an interrupted signup can simply
// be retried. A verified or federated account yields ErrorAlreadyExists.
// The lookup and the write run in one transaction; the mail goes out after
// commit, so a relay failure never leaves a half-created account invisible.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*RegisterResult, error) {
	if err := validateRegistration(name, email, password); err != nil {
		return nil, err
	}

	var (
		res    *RegisterResult
		code   string
		toName string
	)

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		existing, err := repo.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return common.ErrorInternal
		}

		if existing != nil {
			cred, ok := existing.(*models.CredentialAccount)
			if !ok || cred.EmailVerified {
				return common.ErrorAlreadyExists
			}
			// Unverified re-registration: issue a fresh code for the
			// existing account. The previous code stops working here.
			code, err = s.issueVerificationCode(ctx, tx, cred.ID)
			if err != nil {
				return err
			}
			toName = cred.Name
			res = &RegisterResult{UserID: cred.ID, Email: cred.Email}
			return nil
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return common.ErrorInternal
		}

		code, err = auth.GenerateVerificationCode()
		if err != nil {
			return common.ErrorInternal
		}

		acct := &models.CredentialAccount{
			Profile: models.Profile{
				Name:      name,
				Email:     email,
				AvatarURL: avatarURL(email),
			},
			PasswordHash: string(hash),
			Verification: &models.PendingCode{
				Code:      code,
				ExpiresAt: time.Now().Add(s.verificationCodeTTL),
			},
		}

		created, err := repo.CreateCredential(ctx, acct)
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return common.ErrorAlreadyExists
			}
			return fmt.Errorf("error creating account: %v", err)
		}

		toName = created.Name
		res = &RegisterResult{UserID: created.ID, Email: created.Email, Created: true}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerificationCode(ctx, res.Email, toName, code); err != nil {
		s.logger.Error(ctx, "verification mail failed", "error", err)
		return nil, common.ErrMailDelivery
	}

	return res, nil
}

// VerifyEmail consumes a verification code, marks the account verified, and
// signs the user in: success returns a session token so the client proceeds
// straight to the app without a second login. The checks are ordered so the
// caller learns the most specific failure: unknown account, already verified,
// wrong code, expired code.
func (s *AuthService) VerifyEmail(ctx context.Context, userID, code string) (*AuthResult, error) {
	repo := s.repomanager.Users(s.db)

	acct, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}

	cred, ok := acct.(*models.CredentialAccount)
	if !ok || cred.EmailVerified {
		return nil, common.ErrAlreadyVerified
	}

	if cred.Verification == nil || !codesEqual(cred.Verification.Code, code) {
		return nil, common.ErrVerificationInvalid
	}

	if auth.IsExpired(cred.Verification.ExpiresAt) {
		return nil, common.ErrVerificationExpired
	}

	if err := repo.MarkVerified(ctx, cred.ID); err != nil {
		return nil, common.ErrorInternal
	}
	cred.EmailVerified = true

	token, err := auth.GenerateToken(cred.ID, s.jwtSecret, s.sessionTokenValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &AuthResult{Token: token, User: viewOf(cred)}, nil
}

// ResendVerification issues a fresh code to an unverified account and emails
// it. The previously issued code stops working.
func (s *AuthService) ResendVerification(ctx context.Context, userID string) error {
	repo := s.repomanager.Users(s.db)

	acct, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}

	cred, ok := acct.(*models.CredentialAccount)
	if !ok || cred.EmailVerified {
		return common.ErrAlreadyVerified
	}

	code, err := s.issueVerificationCode(ctx, s.db, cred.ID)
	if err != nil {
		return err
	}

	if err := s.mailer.SendVerificationCode(ctx, cred.Email, cred.Name, code); err != nil {
		s.logger.Error(ctx, "verification mail failed", "error", err)
		return common.ErrMailDelivery
	}

	return nil
}

// Login verifies the email/password pair and, on success, returns a session
// token. Correct credentials on an unverified account yield
// *VerificationRequiredError instead of a token. A federated account has no
// password to check and yields ErrorUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	repo := s.repomanager.Users(s.db)

	acct, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}

	cred, ok := acct.(*models.CredentialAccount)
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, common.ErrorUnauthorized
	}

	// The gate comes after the password check, so an unguessed password never
	// learns the account's verification state.
	if !cred.EmailVerified {
		return nil, &VerificationRequiredError{UserID: cred.ID, Email: cred.Email}
	}

	token, err := auth.GenerateToken(cred.ID, s.jwtSecret, s.sessionTokenValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &AuthResult{Token: token, User: viewOf(cred)}, nil
}

// RequestPasswordReset issues a reset token for the account holding the email
// and mails a link embedding it. Unknown emails yield ErrorNotFound.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	repo := s.repomanager.Users(s.db)

	acct, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}

	token, err := auth.GenerateResetToken()
	if err != nil {
		return common.ErrorInternal
	}

	profile := acct.AccountProfile()
	reset := &models.PendingReset{Token: token, ExpiresAt: time.Now().Add(s.resetTokenTTL)}
	if err := repo.SetResetToken(ctx, profile.ID, reset); err != nil {
		return common.ErrorInternal
	}

	resetURL := s.clientURL + "/reset-password/" + token
	if err := s.mailer.SendPasswordReset(ctx, profile.Email, profile.Name, resetURL); err != nil {
		// The token is already stored, so the user can retry the request.
		// Do not surface the relay failure.
		s.logger.Error(ctx, "reset mail failed", "error", err)
	}

	return nil
}

// CompletePasswordReset redeems a reset token and installs the new password.
// The token is consumed atomically with the password change, so it cannot be
// redeemed twice. Unknown and expired tokens are indistinguishable.
func (s *AuthService) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return &ValidationError{Msg: "Password must be at least 6 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return common.ErrorInternal
	}

	repo := s.repomanager.Users(s.db)
	if _, err := repo.ConsumeResetToken(ctx, token, time.Now(), string(hash)); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrResetTokenInvalid
		}
		return common.ErrorInternal
	}

	return nil
}

// CurrentUser resolves a session's account id to its view.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*UserView, error) {
	repo := s.repomanager.Users(s.db)

	acct, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}

	return viewOf(acct), nil
}

// --- helpers below ---

func validateRegistration(name, email, password string) error {
	if name == "" {
		return &ValidationError{Msg: "Name is required"}
	}
	if !govalidator.IsEmail(email) {
		return &ValidationError{Msg: "Please enter a valid email"}
	}
	if len(password) < minPasswordLength {
		return &ValidationError{Msg: "Password must be at least 6 characters"}
	}
	return nil
}

func (s *AuthService) issueVerificationCode(ctx context.Context, db dbx.DBTX, userID string) (string, error) {
	code, err := auth.GenerateVerificationCode()
	if err != nil {
		return "", common.ErrorInternal
	}
	pending := &models.PendingCode{Code: code, ExpiresAt: time.Now().Add(s.verificationCodeTTL)}
	if err := s.repomanager.Users(db).SetVerificationCode(ctx, userID, pending); err != nil {
		return "", common.ErrorInternal
	}
	return code, nil
}

func codesEqual(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// avatarURL builds a deterministic identicon for accounts that bring no
// picture of their own.
func avatarURL(email string) string {
	return "https://api.dicebear.com/7.x/micah/svg?seed=" + url.QueryEscape(email)
}

func viewOf(acct models.Account) *UserView {
	p := acct.AccountProfile()
	v := &UserView{
		ID:     p.ID,
		Name:   p.Name,
		Email:  p.Email,
		Avatar: p.AvatarURL,
	}
	switch a := acct.(type) {
	case *models.CredentialAccount:
		v.IsEmailVerified = a.EmailVerified
	case *models.FederatedAccount:
		v.IsEmailVerified = true
	}
	return v
}
