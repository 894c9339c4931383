package admin

import (
	"context"
	"time"

	"github.com/TimShare/TaskFlow/internal/events"
	"github.com/TimShare/TaskFlow/internal/logging"
	"github.com/TimShare/TaskFlow/internal/server"
	"github.com/TimShare/TaskFlow/internal/server/config"
	"github.com/TimShare/TaskFlow/internal/server/models"
)

// Directory is the user administration the commands need.
type Directory interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetScopes(ctx context.Context, id string) ([]string, error)
	AddScopes(ctx context.Context, id string, scopes []string) ([]string, error)
	UpdateScopes(ctx context.Context, id string, scopes []string) ([]string, error)
	RemoveScopes(ctx context.Context, id string, scopes []string) ([]string, error)
}

type TokenPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Hasher interface {
	Hash(secret string) (string, error)
}

// Backend bundles what the commands operate on.
type Backend struct {
	Users   Directory
	Tokens  TokenPurger
	Hasher  Hasher
	Version func(ctx context.Context) (int64, error)
	Close   func() error
}

// connect is replaced in tests.
var connect = connectPostgres

// connectPostgres opens the database, which also applies migrations.
// Events are not published from the admin tool.
func connectPostgres(ctx context.Context, cfg *config.Config, l logging.Logger) (*Backend, error) {
	db, m, err := server.OpenDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	comps, err := server.NewComponents(cfg, db, m, events.NopPublisher{}, l)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Backend{
		Users:  comps.Users,
		Tokens: m.RefreshTokens(db),
		Hasher: comps.Hasher,
		Version: func(ctx context.Context) (int64, error) {
			return m.SchemaVersion(ctx, db)
		},
		Close: db.Close,
	}, nil
}
