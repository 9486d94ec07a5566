// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/pkg/errutil"
)

// Error codes callers may match on.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeResetNotFound      = "RESET_CODE_NOT_FOUND"
	CodeResetExpired       = "RESET_CODE_EXPIRED"
)

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrapf(errutil.ErrAuthentication, "invalid email or password")
}

func accountLocked(until *time.Time) error {
	return oops.Code(CodeAccountLocked).
		With("locked_until", until).
		Wrapf(errutil.ErrAuthentication, "account is temporarily locked")
}

func invalidToken(reason string) error {
	return oops.Code(CodeInvalidToken).
		With("reason", reason).
		Wrapf(errutil.ErrAuthentication, "invalid session token")
}

// EmailTaken is the conflict returned when an email already belongs to a user.
func EmailTaken(email string) error {
	return oops.Code(CodeEmailTaken).
		With("email", email).
		Wrapf(errutil.ErrConflict, "email is already registered")
}

// UserNotFound is the not-found error for a user id.
func UserNotFound(id ulid.ULID) error {
	return oops.Code(CodeUserNotFound).
		With("user_id", id.String()).
		Wrap(errutil.ErrNotFound)
}
