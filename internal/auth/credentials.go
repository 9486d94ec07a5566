// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/core"
	"github.com/dayplan/dayplan/pkg/errutil"
)

// dummyPassword is hashed once per CredentialStore so lookups of unknown
// emails cost the same argon2id computation as real ones.
const dummyPassword = "dayplan-timing-equalizer"

// CredentialStore hashes passwords and resolves credentials to users.
type CredentialStore struct {
	users     UserRepository
	tx        Transactor
	hasher    PasswordHasher
	clock     core.Clock
	logger    *slog.Logger
	minLength int
	dummyHash string
}

// NewCredentialStore creates a CredentialStore.
func NewCredentialStore(users UserRepository, tx Transactor, hasher PasswordHasher, opts ...Option) (*CredentialStore, error) {
	if users == nil {
		return nil, oops.Code("CREDENTIALS_INVALID").Errorf("user repository is required")
	}
	if tx == nil {
		return nil, oops.Code("CREDENTIALS_INVALID").Errorf("transactor is required")
	}
	if hasher == nil {
		return nil, oops.Code("CREDENTIALS_INVALID").Errorf("password hasher is required")
	}
	o := buildOptions(opts)

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.Code("CREDENTIALS_INVALID").With("operation", "hash dummy password").Wrap(err)
	}
	return &CredentialStore{
		users:     users,
		tx:        tx,
		hasher:    hasher,
		clock:     o.clock,
		logger:    o.logger,
		minLength: o.minPasswordLength,
		dummyHash: dummy,
	}, nil
}

// ValidatePassword checks password against the configured length bounds.
func (c *CredentialStore) ValidatePassword(password string) error {
	return ValidatePassword(password, c.minLength)
}

// HashPassword validates and hashes a new password.
func (c *CredentialStore) HashPassword(password string) (string, error) {
	if err := c.ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := c.hasher.Hash(password)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return hash, nil
}

// Register creates a user. Only the password hash is stored.
func (c *CredentialStore) Register(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := c.ValidatePassword(password); err != nil {
		return nil, err
	}

	if err := c.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := c.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	u := &User{
		ID:           core.NewULIDAt(now),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.users.Create(ctx, u); err != nil {
		if errutil.KindOf(err) == errutil.KindConflict {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}
	return u, nil
}

func (c *CredentialStore) ensureEmailFree(ctx context.Context, email string) error {
	_, err := c.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return EmailTaken(email)
	case errors.Is(err, errutil.ErrNotFound):
		return nil
	default:
		return oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
}

// VerifyCredentials resolves an email/password pair to its user. Unknown
// emails and wrong passwords return the same AuthenticationError.
// LockoutThreshold consecutive failures lock the account for
// LockoutDuration. The failure counter is updated under the user's row lock.
func (c *CredentialStore) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	u, err := c.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errutil.ErrNotFound) {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	target := c.dummyHash
	if u != nil {
		target = u.PasswordHash
	}
	valid, verifyErr := c.hasher.Verify(password, target)
	if u == nil {
		return nil, invalidCredentials()
	}
	if verifyErr != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", u.ID.String()).
			Wrap(verifyErr)
	}

	var outcome error
	err = c.tx.InTransaction(ctx, func(ctx context.Context) error {
		locked, err := c.users.LockByID(ctx, u.ID)
		if err != nil {
			return err
		}
		if locked.PasswordHash != target {
			if valid, err = c.hasher.Verify(password, locked.PasswordHash); err != nil {
				return verifyFailed(locked, err)
			}
		}
		u = locked

		now := c.clock.Now()
		if u.IsLocked(now) {
			outcome = accountLocked(u.LockedUntil)
			return nil
		}
		if !valid {
			outcome = c.recordFailure(ctx, u, now)
			return c.users.Update(ctx, u)
		}
		return c.recordSuccess(ctx, u, password, now)
	})
	if errors.Is(err, errutil.ErrNotFound) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "record login attempt").
			With("user_id", u.ID.String()).
			Wrap(err)
	}
	if outcome != nil {
		return nil, outcome
	}
	return u, nil
}

// recordFailure counts a wrong password and reports the resulting error.
func (c *CredentialStore) recordFailure(ctx context.Context, u *User, now time.Time) error {
	u.RecordFailure(now)
	if !u.IsLocked(now) {
		return invalidCredentials()
	}
	c.logger.WarnContext(ctx, "account locked after repeated failures",
		"user_id", u.ID.String(),
		"failed_attempts", u.FailedAttempts)
	return accountLocked(u.LockedUntil)
}

// recordSuccess clears lockout state and upgrades a legacy hash.
func (c *CredentialStore) recordSuccess(ctx context.Context, u *User, password string, now time.Time) error {
	dirty := u.FailedAttempts != 0 || u.LockedUntil != nil
	u.RecordSuccess(now)
	if c.hasher.NeedsUpgrade(u.PasswordHash) {
		if upgraded, err := c.hasher.Hash(password); err == nil {
			u.PasswordHash = upgraded
			dirty = true
		}
	}
	if !dirty {
		return nil
	}
	return c.users.Update(ctx, u)
}

func verifyFailed(u *User, err error) error {
	return oops.Code("AUTH_VERIFY_FAILED").
		With("user_id", u.ID.String()).
		Wrap(err)
}

// CheckPassword verifies password against u without touching lockout state.
func (c *CredentialStore) CheckPassword(u *User, password string) error {
	valid, err := c.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return verifyFailed(u, err)
	}
	if !valid {
		return invalidCredentials()
	}
	return nil
}
