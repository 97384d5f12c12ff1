package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/devsync/devsync/internal/common"
	"github.com/devsync/devsync/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const selectByEmailQ = `(?s)^SELECT\s+id,\s*name,\s*email,\s*avatar_url,\s*password_hash,\s*oauth_id,\s*is_email_verified,\s*email_verification_code,\s*email_verification_expires,\s*reset_password_token,\s*reset_password_expires\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "avatar_url", "password_hash", "oauth_id",
		"is_email_verified", "email_verification_code", "email_verification_expires",
		"reset_password_token", "reset_password_expires",
	})
}

func TestCreateCredential_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(name,\s*email,\s*avatar_url,\s*password_hash,\s*email_verification_code,\s*email_verification_expires\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+id\s*$`

	expires := time.Now().Add(15 * time.Minute)
	rows := sqlmock.NewRows([]string{"id"}).AddRow("u-1")
	mock.ExpectQuery(q).
		WithArgs("Alice", "alice@example.com", "https://avatars.example/a", "hash",
			sql.NullString{String: "123456", Valid: true},
			sql.NullTime{Time: expires, Valid: true}).
		WillReturnRows(rows)

	acct := &models.CredentialAccount{
		Profile:      models.Profile{Name: "Alice", Email: "alice@example.com", AvatarURL: "https://avatars.example/a"},
		PasswordHash: "hash",
		Verification: &models.PendingCode{Code: "123456", ExpiresAt: expires},
	}
	got, err := repo.CreateCredential(context.Background(), acct)
	if err != nil {
		t.Fatalf("CreateCredential error: %v", err)
	}
	if got.ID != "u-1" {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestCreateCredential_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(name,`

	mock.ExpectQuery(q).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	acct := &models.CredentialAccount{
		Profile:      models.Profile{Name: "Alice", Email: "alice@example.com"},
		PasswordHash: "hash",
	}
	_, err := repo.CreateCredential(context.Background(), acct)
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("want common.ErrorAlreadyExists, got %v", err)
	}
}

func TestCreateCredential_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(name,`

	mock.ExpectQuery(q).WillReturnError(errors.New("db down"))

	acct := &models.CredentialAccount{
		Profile:      models.Profile{Name: "Alice", Email: "alice@example.com"},
		PasswordHash: "hash",
	}
	_, err := repo.CreateCredential(context.Background(), acct)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreateFederated_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(name,\s*email,\s*avatar_url,\s*oauth_id,\s*is_email_verified\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*TRUE\)\s*RETURNING\s+id\s*$`

	rows := sqlmock.NewRows([]string{"id"}).AddRow("u-2")
	mock.ExpectQuery(q).
		WithArgs("Bob", "bob@example.com", "https://avatars.example/b", "google-sub-1").
		WillReturnRows(rows)

	acct := &models.FederatedAccount{
		Profile:    models.Profile{Name: "Bob", Email: "bob@example.com", AvatarURL: "https://avatars.example/b"},
		ProviderID: "google-sub-1",
	}
	got, err := repo.CreateFederated(context.Background(), acct)
	if err != nil {
		t.Fatalf("CreateFederated error: %v", err)
	}
	if got.ID != "u-2" {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestGetByEmail_Credential(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := time.Now().Add(10 * time.Minute)
	rows := accountRows().AddRow(
		"u-1", "Alice", "alice@example.com", "https://avatars.example/a",
		"hash", nil, false, "123456", expires, nil, nil)
	mock.ExpectQuery(selectByEmailQ).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	cred, ok := got.(*models.CredentialAccount)
	if !ok {
		t.Fatalf("expected credential account, got %T", got)
	}
	if cred.ID != "u-1" || cred.PasswordHash != "hash" || cred.EmailVerified {
		t.Fatalf("unexpected account: %+v", cred)
	}
	if cred.Verification == nil || cred.Verification.Code != "123456" {
		t.Fatalf("expected pending verification code, got %+v", cred.Verification)
	}
	if cred.Reset != nil {
		t.Fatalf("expected no pending reset, got %+v", cred.Reset)
	}
}

func TestGetByEmail_Federated(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := accountRows().AddRow(
		"u-2", "Bob", "bob@example.com", "https://avatars.example/b",
		nil, "google-sub-1", true, nil, nil, nil, nil)
	mock.ExpectQuery(selectByEmailQ).
		WithArgs("bob@example.com").
		WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	fed, ok := got.(*models.FederatedAccount)
	if !ok {
		t.Fatalf("expected federated account, got %T", got)
	}
	if fed.ID != "u-2" || fed.ProviderID != "google-sub-1" {
		t.Fatalf("unexpected account: %+v", fed)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectByEmailQ).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByProviderID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+oauth_id\s*=\s*\$1\s*$`

	rows := accountRows().AddRow(
		"u-2", "Bob", "bob@example.com", "https://avatars.example/b",
		nil, "google-sub-1", true, nil, nil, nil, nil)
	mock.ExpectQuery(q).
		WithArgs("google-sub-1").
		WillReturnRows(rows)

	got, err := repo.GetByProviderID(context.Background(), "google-sub-1")
	if err != nil {
		t.Fatalf("GetByProviderID error: %v", err)
	}
	if got.ID != "u-2" {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestSetVerificationCode_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+email_verification_code\s*=\s*\$1,\s*email_verification_expires\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$3\s+RETURNING\s+id\s*$`

	expires := time.Now().Add(15 * time.Minute)
	rows := sqlmock.NewRows([]string{"id"}).AddRow("u-1")
	mock.ExpectQuery(q).
		WithArgs("654321", expires, "u-1").
		WillReturnRows(rows)

	err := repo.SetVerificationCode(context.Background(), "u-1", &models.PendingCode{Code: "654321", ExpiresAt: expires})
	if err != nil {
		t.Fatalf("SetVerificationCode error: %v", err)
	}
}

func TestMarkVerified_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+is_email_verified\s*=\s*TRUE,\s*email_verification_code\s*=\s*NULL,\s*email_verification_expires\s*=\s*NULL\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+id\s*$`

	rows := sqlmock.NewRows([]string{"id"}).AddRow("u-1")
	mock.ExpectQuery(q).
		WithArgs("u-1").
		WillReturnRows(rows)

	if err := repo.MarkVerified(context.Background(), "u-1"); err != nil {
		t.Fatalf("MarkVerified error: %v", err)
	}
}

func TestMarkVerified_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+is_email_verified\s*=\s*TRUE,`

	mock.ExpectQuery(q).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	err := repo.MarkVerified(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestSetResetToken_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+reset_password_token\s*=\s*\$1,\s*reset_password_expires\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$3\s+RETURNING\s+id\s*$`

	expires := time.Now().Add(time.Hour)
	rows := sqlmock.NewRows([]string{"id"}).AddRow("u-1")
	mock.ExpectQuery(q).
		WithArgs("tok", expires, "u-1").
		WillReturnRows(rows)

	err := repo.SetResetToken(context.Background(), "u-1", &models.PendingReset{Token: "tok", ExpiresAt: expires})
	if err != nil {
		t.Fatalf("SetResetToken error: %v", err)
	}
}

func TestConsumeResetToken_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$1,\s*reset_password_token\s*=\s*NULL,\s*reset_password_expires\s*=\s*NULL\s+WHERE\s+reset_password_token\s*=\s*\$2\s+AND\s+reset_password_expires\s*>\s*\$3\s+RETURNING\s+id\s*$`

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id"}).AddRow("u-1")
	mock.ExpectQuery(q).
		WithArgs("newhash", "tok", now).
		WillReturnRows(rows)

	id, err := repo.ConsumeResetToken(context.Background(), "tok", now, "newhash")
	if err != nil {
		t.Fatalf("ConsumeResetToken error: %v", err)
	}
	if id != "u-1" {
		t.Fatalf("unexpected id: %q", id)
	}
}

func TestConsumeResetToken_UnknownOrExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$1,`

	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs("newhash", "stale", now).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ConsumeResetToken(context.Background(), "stale", now, "newhash")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}
