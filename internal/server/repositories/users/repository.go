// Package users declares the persistence contract of the user directory and
// its PostgreSQL implementation.
package users

import (
	"context"

	"github.com/TimShare/TaskFlow/internal/server/models"
)

type Repository interface {
	// Create inserts u. Duplicate username or email yields common.ErrorAlreadyExists.
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateFields applies the non-nil generic fields of upd and returns the
	// updated user. PasswordHash and Scopes in upd are ignored.
	UpdateFields(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	SetScopes(ctx context.Context, id string, scopes []string) error
}
