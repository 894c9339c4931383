package repomanager

import (
	"context"
	"database/sql"

	"github.com/TimShare/TaskFlow/internal/dbx"
	"github.com/TimShare/TaskFlow/internal/server/repositories/refreshtokens"
	"github.com/TimShare/TaskFlow/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code path
// can run against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	SchemaVersion(context.Context, *sql.DB) (int64, error)
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
