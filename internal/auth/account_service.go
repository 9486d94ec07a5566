// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/core"
	"github.com/dayplan/dayplan/pkg/errutil"
)

// AccountService backs the account endpoints: it pairs credential changes
// with the session token the client continues with.
type AccountService struct {
	users       UserRepository
	resets      PasswordResetRepository
	tx          Transactor
	credentials *CredentialStore
	sessions    *SessionManager
	clock       core.Clock
	logger      *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(
	users UserRepository,
	resets PasswordResetRepository,
	tx Transactor,
	credentials *CredentialStore,
	sessions *SessionManager,
	opts ...Option,
) (*AccountService, error) {
	switch {
	case users == nil:
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("user repository is required")
	case resets == nil:
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("reset repository is required")
	case tx == nil:
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("transactor is required")
	case credentials == nil:
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("credential store is required")
	case sessions == nil:
		return nil, oops.Code("ACCOUNT_SERVICE_INVALID").Errorf("session manager is required")
	}
	o := buildOptions(opts)
	return &AccountService{
		users:       users,
		resets:      resets,
		tx:          tx,
		credentials: credentials,
		sessions:    sessions,
		clock:       o.clock,
		logger:      o.logger,
	}, nil
}

// Register creates a user and signs them in.
func (s *AccountService) Register(ctx context.Context, email, password string) (*User, string, error) {
	var (
		u     *User
		token string
	)
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		var err error
		if u, err = s.credentials.Register(ctx, email, password); err != nil {
			return err
		}
		token, err = s.sessions.IssueToken(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID.String())
	return u, token, nil
}

// Login verifies credentials and issues a new token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.credentials.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, "", err
	}
	token, err := s.sessions.IssueToken(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Logout revokes the token the request was made with.
func (s *AccountService) Logout(ctx context.Context, userID ulid.ULID, token string) error {
	return s.sessions.RevokeToken(ctx, userID, token)
}

// Me returns the user.
func (s *AccountService) Me(ctx context.Context, userID ulid.ULID) (*User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errutil.KindOf(err) == errutil.KindNotFound {
			return nil, err
		}
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return u, nil
}

// ChangePassword replaces the password after checking the current one. All
// sessions and pending resets are dropped and a fresh token is returned.
func (s *AccountService) ChangePassword(ctx context.Context, userID ulid.ULID, oldPassword, newPassword string) (string, error) {
	if err := s.credentials.ValidatePassword(newPassword); err != nil {
		return "", err
	}

	var token string
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		u, err := s.users.LockByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.credentials.CheckPassword(u, oldPassword); err != nil {
			return err
		}
		hash, err := s.credentials.HashPassword(newPassword)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		u.UpdatedAt = s.clock.Now()
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		if err := s.resets.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.sessions.RevokeAll(ctx, userID); err != nil {
			return err
		}
		token, err = s.sessions.IssueToken(ctx, userID)
		return err
	})
	if err != nil {
		return "", wrapAccountFailure("ACCOUNT_PASSWORD_CHANGE_FAILED", err, userID)
	}
	s.logger.InfoContext(ctx, "password changed", "user_id", userID.String())
	return token, nil
}

// ChangeEmail replaces the email after checking the password. All sessions
// are dropped and a fresh token is returned.
func (s *AccountService) ChangeEmail(ctx context.Context, userID ulid.ULID, newEmail, password string) (*User, string, error) {
	newEmail = NormalizeEmail(newEmail)
	if err := ValidateEmail(newEmail); err != nil {
		return nil, "", err
	}

	var (
		u     *User
		token string
	)
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		var err error
		if u, err = s.users.LockByID(ctx, userID); err != nil {
			return err
		}
		if err := s.credentials.CheckPassword(u, password); err != nil {
			return err
		}
		if u.Email != newEmail {
			if err := s.credentials.ensureEmailFree(ctx, newEmail); err != nil {
				return err
			}
		}
		u.Email = newEmail
		u.UpdatedAt = s.clock.Now()
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		if err := s.sessions.RevokeAll(ctx, userID); err != nil {
			return err
		}
		token, err = s.sessions.IssueToken(ctx, userID)
		return err
	})
	if err != nil {
		return nil, "", wrapAccountFailure("ACCOUNT_EMAIL_CHANGE_FAILED", err, userID)
	}
	return u, token, nil
}

func wrapAccountFailure(code string, err error, userID ulid.ULID) error {
	switch errutil.KindOf(err) {
	case errutil.KindStorage, errutil.KindInternal:
		return oops.Code(code).With("user_id", userID.String()).Wrap(err)
	}
	return err
}
