package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"

	"github.com/TimShare/TaskFlow/internal/common"
	"github.com/TimShare/TaskFlow/internal/dbx"
	"github.com/TimShare/TaskFlow/internal/events"
	"github.com/TimShare/TaskFlow/internal/logging"
	"github.com/TimShare/TaskFlow/internal/server/models"
	"github.com/TimShare/TaskFlow/internal/server/repositories/repomanager"
)

var _ UserDirectory = (*UserService)(nil)

// UserService is the user directory: account creation and lookup, generic
// field updates, password changes and scope management. It implements
// UserDirectory.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      Hasher
	publisher   events.Publisher
	logger      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher Hasher, publisher events.Publisher, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		publisher:   publisher,
		logger:      logger.With("module", "users"),
	}
}

// Register hashes password and creates an active user without scopes.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", common.ErrorValidation)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, internal(err)
	}
	return s.CreateUser(ctx, models.NewUser(username, email, hash))
}

// CreateUser stores u. It requires a password hash and fails with
// common.ErrorAlreadyExists when the email or username is taken.
func (s *UserService) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	if err := validateNewUser(u); err != nil {
		return nil, err
	}
	u.Scopes = models.NormalizeScopes(u.Scopes)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if _, err := repo.GetByEmail(ctx, u.Email); err == nil {
			return common.ErrorAlreadyExists
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return repo.Create(ctx, u)
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user created", "user_id", u.ID)
	s.emit(ctx, events.NewUserCreated(u.ID, u.Username, u.Email))
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByEmail(ctx, email)
}

// UpdateUserFields applies a generic update. Password hash and scopes have
// their own operations and are refused here with common.ErrorValidation.
func (s *UserService) UpdateUserFields(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if upd.PasswordHash != nil || upd.Scopes != nil {
		return nil, fmt.Errorf("%w: password hash and scopes cannot be updated here", common.ErrorValidation)
	}
	var fields []string
	if upd.Username != nil {
		if strings.TrimSpace(*upd.Username) == "" {
			return nil, fmt.Errorf("%w: username must not be empty", common.ErrorValidation)
		}
		fields = append(fields, "username")
	}
	if upd.Email != nil {
		if err := validateEmail(*upd.Email); err != nil {
			return nil, err
		}
		fields = append(fields, "email")
	}
	if upd.IsActive != nil {
		fields = append(fields, "is_active")
	}
	if upd.IsSuperuser != nil {
		fields = append(fields, "is_superuser")
	}

	u, err := s.repomanager.Users(s.db).UpdateFields(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		s.emit(ctx, events.NewUserUpdated(id, fields))
	}
	return u, nil
}

// ChangePassword replaces the password after checking the old one and revokes
// every refresh token of the user in the same transaction.
func (s *UserService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", common.ErrorValidation)
	}
	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internal(err)
	}

	revoked, err := dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (int64, error) {
		users := s.repomanager.Users(tx)
		u, err := users.GetByIDForUpdate(ctx, id)
		if err != nil {
			return 0, err
		}
		ok, err := s.hasher.Verify(oldPassword, u.PasswordHash)
		if err != nil || !ok {
			return 0, common.ErrorUnauthorized
		}
		if err := users.UpdatePasswordHash(ctx, id, newHash); err != nil {
			return 0, err
		}
		return s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "user_id", id, "revoked_sessions", revoked)
	s.emit(ctx, events.NewPasswordChanged(id, revoked))
	return nil
}

func (s *UserService) GetScopes(ctx context.Context, id string) ([]string, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Scopes, nil
}

func (s *UserService) AddScopes(ctx context.Context, id string, scopes []string) ([]string, error) {
	return s.mutateScopes(ctx, id, func(cur []string) []string { return models.UnionScopes(cur, scopes) })
}

func (s *UserService) UpdateScopes(ctx context.Context, id string, scopes []string) ([]string, error) {
	return s.mutateScopes(ctx, id, func([]string) []string { return models.NormalizeScopes(scopes) })
}

func (s *UserService) RemoveScopes(ctx context.Context, id string, scopes []string) ([]string, error) {
	return s.mutateScopes(ctx, id, func(cur []string) []string { return models.SubtractScopes(cur, scopes) })
}

// mutateScopes runs read-modify-write on the scope set under a row lock so
// concurrent add/remove calls do not lose each other's changes.
func (s *UserService) mutateScopes(ctx context.Context, id string, apply func([]string) []string) ([]string, error) {
	var changed bool
	out, err := dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) ([]string, error) {
		repo := s.repomanager.Users(tx)
		u, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		next := apply(u.Scopes)
		if equalScopes(u.Scopes, next) {
			return next, nil
		}
		changed = true
		return next, repo.SetScopes(ctx, id, next)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info(ctx, "scopes changed", "user_id", id, "scopes", out)
		s.emit(ctx, events.NewScopesChanged(id, out))
	}
	return out, nil
}

// emit publishes fire-and-forget.
func (s *UserService) emit(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, events.SubjectUsers, ev); err != nil {
		s.logger.Warn(ctx, "publishing event failed", "type", ev.EventType(), "error", err)
	}
}

func validateNewUser(u *models.User) error {
	if u.PasswordHash == "" {
		return fmt.Errorf("%w: password hash is required", common.ErrorValidation)
	}
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: username is required", common.ErrorValidation)
	}
	return validateEmail(u.Email)
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", common.ErrorValidation)
	}
	if a, err := mail.ParseAddress(email); err != nil || a.Address != email {
		return fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	return nil
}

func equalScopes(a, b []string) bool {
	return slices.Equal(models.NormalizeScopes(a), models.NormalizeScopes(b))
}
