// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/core"
	"github.com/dayplan/dayplan/pkg/errutil"
)

// SessionToken is one entry of a user's active token set.
type SessionToken struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	CreatedAt time.Time
}

// TokenRepository stores the active token set of each user.
type TokenRepository interface {
	// Add inserts a token hash.
	Add(ctx context.Context, t *SessionToken) error

	// Exists reports whether hash is in the user's set.
	Exists(ctx context.Context, userID ulid.ULID, hash string) (bool, error)

	// Delete removes one hash. Deleting an absent hash is not an error.
	Delete(ctx context.Context, userID ulid.ULID, hash string) error

	// DeleteAll empties the user's set.
	DeleteAll(ctx context.Context, userID ulid.ULID) (int64, error)

	// TrimOldest deletes all but the newest keep tokens of the user.
	TrimOldest(ctx context.Context, userID ulid.ULID, keep int) (int64, error)
}

// SessionManager issues, verifies, and revokes session tokens.
type SessionManager struct {
	users     UserRepository
	tokens    TokenRepository
	tx        Transactor
	signer    *TokenSigner
	clock     core.Clock
	logger    *slog.Logger
	maxTokens int
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(users UserRepository, tokens TokenRepository, tx Transactor, signer *TokenSigner, opts ...Option) (*SessionManager, error) {
	if users == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("user repository is required")
	}
	if tokens == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("token repository is required")
	}
	if tx == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("transactor is required")
	}
	if signer == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("token signer is required")
	}
	o := buildOptions(opts)
	return &SessionManager{
		users:     users,
		tokens:    tokens,
		tx:        tx,
		signer:    signer,
		clock:     o.clock,
		logger:    o.logger,
		maxTokens: o.maxTokens,
	}, nil
}

// IssueToken mints a token for the user and adds it to the active set. The
// set is trimmed to the configured maximum, oldest first.
func (m *SessionManager) IssueToken(ctx context.Context, userID ulid.ULID) (string, error) {
	token, err := m.signer.Sign(userID)
	if err != nil {
		return "", err
	}

	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := m.users.LockByID(ctx, userID); err != nil {
			return err
		}
		now := m.clock.Now()
		if err := m.tokens.Add(ctx, &SessionToken{
			ID:        core.NewULIDAt(now),
			UserID:    userID,
			TokenHash: HashSecret(token),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		trimmed, err := m.tokens.TrimOldest(ctx, userID, m.maxTokens)
		if err != nil {
			return err
		}
		if trimmed > 0 {
			m.logger.DebugContext(ctx, "trimmed session tokens",
				"user_id", userID.String(),
				"count", trimmed)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return "", err
		}
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return token, nil
}

// VerifyToken resolves a token to its user. Bad signatures, expired or
// foreign-purpose tokens, deleted users, and revoked tokens all return the
// same AuthenticationError.
func (m *SessionManager) VerifyToken(ctx context.Context, token string) (*User, error) {
	userID, err := m.signer.Parse(token)
	if err != nil {
		return nil, err
	}

	u, err := m.users.GetByID(ctx, userID)
	if errors.Is(err, errutil.ErrNotFound) {
		return nil, invalidToken("unknown user")
	}
	if err != nil {
		return nil, oops.Code("TOKEN_VERIFY_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}

	ok, err := m.tokens.Exists(ctx, userID, HashSecret(token))
	if err != nil {
		return nil, oops.Code("TOKEN_VERIFY_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if !ok {
		return nil, invalidToken("revoked")
	}
	return u, nil
}

// RevokeToken removes exactly one token. Revoking an unknown token succeeds.
func (m *SessionManager) RevokeToken(ctx context.Context, userID ulid.ULID, token string) error {
	err := m.tx.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := m.users.LockByID(ctx, userID); err != nil {
			return err
		}
		return m.tokens.Delete(ctx, userID, HashSecret(token))
	})
	if errors.Is(err, errutil.ErrNotFound) {
		return nil
	}
	if err != nil {
		return oops.Code("TOKEN_REVOKE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// RevokeAll empties the user's token set.
func (m *SessionManager) RevokeAll(ctx context.Context, userID ulid.ULID) error {
	err := m.tx.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := m.users.LockByID(ctx, userID); err != nil {
			return err
		}
		n, err := m.tokens.DeleteAll(ctx, userID)
		if err != nil {
			return err
		}
		m.logger.InfoContext(ctx, "revoked all session tokens",
			"user_id", userID.String(),
			"count", n)
		return nil
	})
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return err
		}
		return oops.Code("TOKEN_REVOKE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}
