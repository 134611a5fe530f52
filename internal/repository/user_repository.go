package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"socialhub/internal/models"
)

const (
	uniqueViolation = "23505"

	constraintEmail    = "users_email_active_key"
	constraintUsername = "users_username_active_key"
)

// DBTX is the slice of *pgxpool.Pool the repository needs; a pgx.Tx satisfies it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, first_name, last_name, username, email, password_hash, role, status, bio,
	avatar_url, joined_date, last_login, last_logout, last_activity, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.Bio,
		&user.AvatarURL,
		&user.JoinedDate,
		&user.LastLogin,
		&user.LastLogout,
		&user.LastActivity,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// Create inserts the user and returns the stored row. Uniqueness of email and
// username is enforced by partial unique indexes, so concurrent registrations
// with the same identity fail here even when the caller's pre-check passed.
func (r *UserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (
			first_name, last_name, username, email, password_hash, role, status, avatar_url, joined_date, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), NOW()
		)
		RETURNING ` + userColumns

	created, err := scanUser(r.db.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.AvatarURL,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case constraintEmail:
				return models.User{}, ErrDuplicateEmail
			case constraintUsername:
				return models.User{}, ErrDuplicateUsername
			}
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`

	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users WHERE id = $1 AND deleted_at IS NULL`

	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) MarkLoggedIn(ctx context.Context, id int64) error {
	const query = `
		UPDATE users
		SET last_login = NOW(),
		    last_activity = NOW(),
		    status = CASE WHEN status = 'inactive' THEN 'active' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	return r.execOne(ctx, query, id)
}

func (r *UserRepository) MarkLoggedOut(ctx context.Context, id int64) error {
	const query = `
		UPDATE users SET last_logout = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	return r.execOne(ctx, query, id)
}

// TouchActivity never moves last_activity backwards, so replayed events are harmless.
func (r *UserRepository) TouchActivity(ctx context.Context, id int64, at time.Time) error {
	const query = `
		UPDATE users
		SET last_activity = GREATEST(COALESCE(last_activity, $2), $2)
		WHERE id = $1 AND deleted_at IS NULL
	`
	return r.execOne(ctx, query, id, at)
}

func (r *UserRepository) DeactivateDormant(ctx context.Context, before time.Time) (int64, error) {
	const query = `
		UPDATE users
		SET status = 'inactive', updated_at = NOW()
		WHERE status = 'active'
		  AND deleted_at IS NULL
		  AND COALESCE(last_activity, joined_date) < $1
	`
	cmd, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
