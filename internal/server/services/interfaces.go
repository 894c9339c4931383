// Package services contains the server-side business logic: the user
// directory (UserService) and the session manager that issues, rotates and
// revokes token pairs.
package services

import (
	"context"
	"time"

	"github.com/TimShare/TaskFlow/internal/server/auth"
	"github.com/TimShare/TaskFlow/internal/server/models"
)

// Hasher is a slow salted one-way hash, satisfied by *cryptox.Argon2idHasher.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) (bool, error)
}

// TokenCodec signs and verifies claim sets, satisfied by *auth.Codec.
type TokenCodec interface {
	Encode(claims auth.Claims, ttl time.Duration) (string, time.Time, error)
	Decode(token string, verifyExpiry bool) (*auth.Claims, error)
}

// UserDirectory is what the session manager needs from the user store.
// Lookups and scope operations fail with common.ErrorNotFound for unknown users.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetScopes(ctx context.Context, id string) ([]string, error)
	AddScopes(ctx context.Context, id string, scopes []string) ([]string, error)
	UpdateScopes(ctx context.Context, id string, scopes []string) ([]string, error)
	RemoveScopes(ctx context.Context, id string, scopes []string) ([]string, error)
}

// RefreshTokenStore holds the server-side refresh-token records. DeleteByJTI
// must report whether the call actually removed a record; that is the only
// thing preventing a refresh token from being redeemed twice.
type RefreshTokenStore interface {
	Create(ctx context.Context, rt *models.RefreshToken) error
	GetByJTI(ctx context.Context, jti string) (*models.RefreshToken, error)
	DeleteByJTI(ctx context.Context, jti string) (bool, error)
}
