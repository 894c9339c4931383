// Package repomanager hands out repositories bound to a connection or a
// transaction, and owns the goose schema migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/TimShare/TaskFlow/internal/dbx"
	"github.com/TimShare/TaskFlow/internal/server/migrations"
	"github.com/TimShare/TaskFlow/internal/server/repositories/refreshtokens"
	"github.com/TimShare/TaskFlow/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

// Seams over goose's package-level functions, replaced in tests.
var (
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
	gooseVersionContext = goose.GetDBVersionContext
)

func useEmbedded() error {
	goose.SetBaseFS(migrations.Migrations)
	return goose.SetDialect("pgx")
}

// RunMigrations applies every pending embedded migration.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	if err := useEmbedded(); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// SchemaVersion reports the latest applied migration.
func (m *PostgresRepositoryManager) SchemaVersion(ctx context.Context, db *sql.DB) (int64, error) {
	if err := useEmbedded(); err != nil {
		return 0, err
	}
	v, err := gooseVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	return v, nil
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
