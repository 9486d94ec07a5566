// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/auth"
	"github.com/dayplan/dayplan/internal/store"
	"github.com/dayplan/dayplan/pkg/errutil"
)

const userColumns = `id, email, password_hash, failed_attempts, locked_until, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool store.DBTX
}

var _ auth.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool store.DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, u *auth.User) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		u.ID.String(),
		u.Email,
		u.PasswordHash,
		u.FailedAttempts,
		u.LockedUntil,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if store.IsUniqueViolation(err) {
		return auth.EmailTaken(u.Email)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(errutil.Storage(err))
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.getOne(ctx, "get user by id", id.String(), `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id.String())
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, "get user by email", email, `
		SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)
	`, email)
}

// LockByID retrieves a user and locks its row for the rest of the transaction.
func (r *UserRepository) LockByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.getOne(ctx, "lock user", id.String(), `
		SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE
	`, id.String())
}

func (r *UserRepository) getOne(ctx context.Context, operation, key, query string, arg any) (*auth.User, error) {
	u, err := scanUser(store.Conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(auth.CodeUserNotFound).
			With("key", key).
			Wrap(errutil.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").
			With("operation", operation).
			Wrap(errutil.Storage(err))
	}
	return u, nil
}

// Update overwrites email, password hash, lockout state and updated_at.
func (r *UserRepository) Update(ctx context.Context, u *auth.User) error {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET
			email = $2,
			password_hash = $3,
			failed_attempts = $4,
			locked_until = $5,
			updated_at = $6
		WHERE id = $1
	`,
		u.ID.String(),
		u.Email,
		u.PasswordHash,
		u.FailedAttempts,
		u.LockedUntil,
		u.UpdatedAt,
	)
	if store.IsUniqueViolation(err) {
		return auth.EmailTaken(u.Email)
	}
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("user_id", u.ID.String()).
			Wrap(errutil.Storage(err))
	}
	if result.RowsAffected() == 0 {
		return auth.UserNotFound(u.ID)
	}
	return nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u           auth.User
		id          string
		lockedUntil *time.Time
	)
	if err := row.Scan(&id, &u.Email, &u.PasswordHash, &u.FailedAttempts, &lockedUntil, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return nil, oops.With("column", "id").Wrap(err)
	}
	u.ID = parsed
	u.LockedUntil = lockedUntil
	return &u, nil
}
