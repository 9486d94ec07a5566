// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package postgres

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/auth"
	"github.com/dayplan/dayplan/internal/store"
	"github.com/dayplan/dayplan/pkg/errutil"
)

// TokenRepository implements auth.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool store.DBTX
}

var _ auth.TokenRepository = (*TokenRepository)(nil)

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool store.DBTX) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Add inserts a token hash.
func (r *TokenRepository) Add(ctx context.Context, t *auth.SessionToken) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO user_tokens (id, user_id, token_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, t.ID.String(), t.UserID.String(), t.TokenHash, t.CreatedAt)
	if err != nil {
		return oops.Code("TOKEN_ADD_FAILED").
			With("user_id", t.UserID.String()).
			Wrap(errutil.Storage(err))
	}
	return nil
}

// Exists reports whether hash belongs to the user.
func (r *TokenRepository) Exists(ctx context.Context, userID ulid.ULID, hash string) (bool, error) {
	var ok bool
	err := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_tokens WHERE user_id = $1 AND token_hash = $2)
	`, userID.String(), hash).Scan(&ok)
	if err != nil {
		return false, oops.Code("TOKEN_QUERY_FAILED").
			With("user_id", userID.String()).
			Wrap(errutil.Storage(err))
	}
	return ok, nil
}

// Delete removes one of the user's token hashes.
func (r *TokenRepository) Delete(ctx context.Context, userID ulid.ULID, hash string) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM user_tokens WHERE user_id = $1 AND token_hash = $2`, userID.String(), hash)
	if err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("user_id", userID.String()).
			Wrap(errutil.Storage(err))
	}
	return nil
}

// DeleteAll removes every token of the user.
func (r *TokenRepository) DeleteAll(ctx context.Context, userID ulid.ULID) (int64, error) {
	result, err := store.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM user_tokens WHERE user_id = $1`, userID.String())
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_FAILED").
			With("user_id", userID.String()).
			Wrap(errutil.Storage(err))
	}
	return result.RowsAffected(), nil
}

// TrimOldest keeps the newest keep tokens of the user.
func (r *TokenRepository) TrimOldest(ctx context.Context, userID ulid.ULID, keep int) (int64, error) {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM user_tokens
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM user_tokens
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		)
	`, userID.String(), keep)
	if err != nil {
		return 0, oops.Code("TOKEN_TRIM_FAILED").
			With("user_id", userID.String()).
			With("keep", keep).
			Wrap(errutil.Storage(err))
	}
	return result.RowsAffected(), nil
}
