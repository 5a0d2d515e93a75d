package repomanager

import (
	"context"
	"database/sql"

	"github.com/dbateam/secretvault/internal/dbx"
	"github.com/dbateam/secretvault/internal/server/repositories/permissions"
	"github.com/dbateam/secretvault/internal/server/repositories/secrets"
	"github.com/dbateam/secretvault/internal/server/repositories/tags"
	"github.com/dbateam/secretvault/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same constructors against *sql.DB and inside transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Tags(db dbx.DBTX) tags.Repository
	Secrets(db dbx.DBTX) secrets.Repository
	Permissions(db dbx.DBTX) permissions.Repository
}
