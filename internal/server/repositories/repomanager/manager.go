package repomanager

import (
	"context"
	"database/sql"

	"github.com/devsync/devsync/internal/dbx"
	"github.com/devsync/devsync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
