// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

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

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	pool store.DBTX
}

var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(pool store.DBTX) *PasswordResetRepository {
	return &PasswordResetRepository{pool: pool}
}

// Replace stores reset as the user's only pending reset.
func (r *PasswordResetRepository) Replace(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO password_resets (id, user_id, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			id = EXCLUDED.id,
			code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
	`, reset.ID.String(), reset.UserID.String(), reset.CodeHash, reset.ExpiresAt, reset.CreatedAt)
	if err != nil {
		return oops.Code("RESET_STORE_FAILED").
			With("operation", "upsert password_reset").
			With("user_id", reset.UserID.String()).
			Wrap(errutil.Storage(err))
	}
	return nil
}

// LockByCodeHash retrieves a reset by hash and locks its row for the rest of
// the transaction.
func (r *PasswordResetRepository) LockByCodeHash(ctx context.Context, hash string) (*auth.PasswordReset, error) {
	row := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, user_id, code_hash, expires_at, created_at
		FROM password_resets
		WHERE code_hash = $1
		FOR UPDATE
	`, hash)

	reset, err := scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(auth.CodeResetNotFound).Wrapf(errutil.ErrNotFound, "reset code not found")
	}
	if err != nil {
		return nil, oops.Code("RESET_QUERY_FAILED").
			With("operation", "get reset by code hash").
			Wrap(errutil.Storage(err))
	}
	return reset, nil
}

// DeleteByUser removes every reset of the user.
func (r *PasswordResetRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM password_resets WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("user_id", userID.String()).
			Wrap(errutil.Storage(err))
	}
	return nil
}

// DeleteExpired removes resets whose deadline is at or before now.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM password_resets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").Wrap(errutil.Storage(err))
	}
	return result.RowsAffected(), nil
}

func scanReset(row pgx.Row) (*auth.PasswordReset, error) {
	var (
		reset      auth.PasswordReset
		id, userID string
	)
	if err := row.Scan(&id, &userID, &reset.CodeHash, &reset.ExpiresAt, &reset.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if reset.ID, err = ulid.Parse(id); err != nil {
		return nil, oops.With("column", "id").Wrap(err)
	}
	if reset.UserID, err = ulid.Parse(userID); err != nil {
		return nil, oops.With("column", "user_id").Wrap(err)
	}
	return &reset, nil
}
