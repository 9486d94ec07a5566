// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ResetCodeBytes is the entropy of a reset code; the hex form is twice as long.
const ResetCodeBytes = 32

// PasswordReset is a pending reset code. Only its hash is stored.
type PasswordReset struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true once now reaches the deadline.
func (r *PasswordReset) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// GenerateResetCode creates a random reset code and its hash.
// The plaintext goes to the user; the hash is stored.
func GenerateResetCode() (code, hash string, err error) {
	buf := make([]byte, ResetCodeBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("RESET_CODE_GENERATE_FAILED").Wrap(err)
	}
	code = hex.EncodeToString(buf)
	return code, HashSecret(code), nil
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Replace stores reset as the user's only pending reset.
	Replace(ctx context.Context, reset *PasswordReset) error

	// LockByCodeHash retrieves a reset by hash and holds its row lock until
	// the surrounding transaction ends.
	LockByCodeHash(ctx context.Context, hash string) (*PasswordReset, error)

	// DeleteByUser removes every reset of the user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes resets whose deadline is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Notifier delivers a reset code to the owner of email.
type Notifier interface {
	Notify(ctx context.Context, email, code string) error
}
