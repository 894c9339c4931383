// Package refreshtokens declares the server-side repository contract for
// refresh-token records and its PostgreSQL implementation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/TimShare/TaskFlow/internal/server/models"
)

// Repository stores one record per issued refresh token, keyed by jti.
type Repository interface {
	// Create persists rt. A second record with the same jti yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, rt *models.RefreshToken) error

	// GetByJTI returns common.ErrorNotFound when no record exists.
	GetByJTI(ctx context.Context, jti string) (*models.RefreshToken, error)

	// DeleteByJTI reports whether this call removed the record. Of several
	// concurrent callers at most one observes true.
	DeleteByJTI(ctx context.Context, jti string) (bool, error)

	// DeleteByUser removes every record of userID and returns the count.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes records that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
