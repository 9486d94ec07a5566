// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/pkg/errutil"
)

// Password and email limits.
const (
	DefaultMinPasswordLength = 6
	MaxPasswordLength        = 128
	MaxEmailLength           = 254
)

var (
	validate = validator.New(validator.WithRequiredStructEnabled())
	emailTag = "required,email,max=" + strconv.Itoa(MaxEmailLength)
)

// User is an account. The JSON form never carries credentials or lockout
// state.
type User struct {
	ID             ulid.ULID  `json:"id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	if u.LockedUntil != nil {
		until := *u.LockedUntil
		c.LockedUntil = &until
	}
	return &c
}

// IsLocked returns true if the user is locked out at now.
func (u *User) IsLocked(now time.Time) bool {
	return IsLockedOut(u.LockedUntil, now)
}

// RecordFailure increments the failure counter and sets lockout if threshold reached.
func (u *User) RecordFailure(now time.Time) {
	u.FailedAttempts++
	u.LockedUntil = ComputeLockoutTime(u.FailedAttempts, now)
	u.UpdatedAt = now
}

// RecordSuccess resets failure counter and lockout.
func (u *User) RecordSuccess(now time.Time) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = now
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks a normalized email address.
func ValidateEmail(email string) error {
	if err := validate.Var(email, emailTag); err != nil {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("email", email).
			Wrapf(errutil.ErrValidation, "a valid email address is required")
	}
	return nil
}

// ValidatePassword checks a password's length in characters.
func ValidatePassword(password string, minLength int) error {
	n := utf8.RuneCountInString(password)
	if n < minLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", minLength).
			Wrapf(errutil.ErrValidation, "password must be at least %d characters", minLength)
	}
	if n > MaxPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("max", MaxPasswordLength).
			Wrapf(errutil.ErrValidation, "password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// UserRepository manages user persistence. Implementations resolve the
// active transaction from ctx.
type UserRepository interface {
	// Create stores a new user. A duplicate email returns EmailTaken.
	Create(ctx context.Context, u *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// LockByID retrieves a user and holds its row lock until the
	// surrounding transaction ends.
	LockByID(ctx context.Context, id ulid.ULID) (*User, error)

	// Update overwrites email, hash, lockout state and updated_at.
	// A duplicate email returns EmailTaken.
	Update(ctx context.Context, u *User) error
}

// Transactor runs fn atomically.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
