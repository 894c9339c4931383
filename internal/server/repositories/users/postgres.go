package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/TimShare/TaskFlow/internal/common"
	"github.com/TimShare/TaskFlow/internal/dbx"
	"github.com/TimShare/TaskFlow/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, username, email, password_hash, is_active, is_superuser, scopes, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, u *models.User) error {
	scopes, err := encodeScopes(u.Scopes)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO users (id, username, email, password_hash, is_active, is_superuser, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
		 `

	_, err = r.db.ExecContext(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.IsActive, u.IsSuperuser, scopes, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	if upd.IsSuperuser != nil {
		add("is_superuser", *upd.IsSuperuser)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, err
	}
	return u, nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	query :=
		`UPDATE users SET password_hash = $1, updated_at = now()
		 WHERE id = $2
		 `
	return r.execOne(ctx, query, hash, id)
}

func (r *PostgresRepository) SetScopes(ctx context.Context, id string, scopes []string) error {
	encoded, err := encodeScopes(scopes)
	if err != nil {
		return err
	}
	query :=
		`UPDATE users SET scopes = $1::jsonb, updated_at = now()
		 WHERE id = $2
		 `
	return r.execOne(ctx, query, encoded, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, query, arg))
}

// execOne runs an update that must hit exactly one user row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isInvalidID(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var scopes []byte
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsSuperuser,
		&scopes, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, common.ErrorNotFound
		}
		if isUniqueViolation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(scopes, &u.Scopes); err != nil {
		return nil, fmt.Errorf("db error: decoding scopes: %w", err)
	}
	u.Scopes = models.NormalizeScopes(u.Scopes)
	return u, nil
}

func encodeScopes(scopes []string) (string, error) {
	b, err := json.Marshal(models.NormalizeScopes(scopes))
	if err != nil {
		return "", fmt.Errorf("encoding scopes: %w", err)
	}
	return string(b), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}

// isInvalidID reports a value Postgres could not cast to the uuid id column.
// No row can have such an id, so callers treat it as not found.
func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "22P02" // invalid_text_representation
}
