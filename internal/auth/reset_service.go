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

// PasswordResetService handles the password reset flow.
type PasswordResetService struct {
	users       UserRepository
	resets      PasswordResetRepository
	tx          Transactor
	credentials *CredentialStore
	sessions    *SessionManager
	notifier    Notifier
	clock       core.Clock
	logger      *slog.Logger
	ttl         time.Duration
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(
	users UserRepository,
	resets PasswordResetRepository,
	tx Transactor,
	credentials *CredentialStore,
	sessions *SessionManager,
	notifier Notifier,
	opts ...Option,
) (*PasswordResetService, error) {
	switch {
	case users == nil:
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("user repository is required")
	case resets == nil:
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("reset repository is required")
	case tx == nil:
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("transactor is required")
	case credentials == nil:
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("credential store is required")
	case sessions == nil:
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("session manager is required")
	case notifier == nil:
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("notifier is required")
	}
	o := buildOptions(opts)
	return &PasswordResetService{
		users:       users,
		resets:      resets,
		tx:          tx,
		credentials: credentials,
		sessions:    sessions,
		notifier:    notifier,
		clock:       o.clock,
		logger:      o.logger,
		ttl:         o.resetTTL,
	}, nil
}

// RequestReset issues a reset code for the user with email and hands it to
// the notifier. An unknown email succeeds without side effects so callers
// cannot probe which addresses are registered. Delivery failures are logged,
// never returned.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, errutil.ErrNotFound) {
		s.logger.DebugContext(ctx, "password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	code, hash, err := GenerateResetCode()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").Wrap(err)
	}

	now := s.clock.Now()
	reset := &PasswordReset{
		ID:        core.NewULIDAt(now),
		UserID:    u.ID,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		return s.resets.Replace(ctx, reset)
	}); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset").
			With("user_id", u.ID.String()).
			Wrap(err)
	}

	if err := s.notifier.Notify(ctx, u.Email, code); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "reset code delivery failed",
			oops.With("user_id", u.ID.String()).Wrap(err))
	}
	return nil
}

// RedeemReset sets a new password using a reset code. The code is consumed,
// the lockout is cleared, and every session of the user is revoked, all in
// one transaction.
func (s *PasswordResetService) RedeemReset(ctx context.Context, code, newPassword string) error {
	if code == "" {
		return oops.Code("RESET_CODE_EMPTY").Wrapf(errutil.ErrValidation, "reset code cannot be empty")
	}
	if err := s.credentials.ValidatePassword(newPassword); err != nil {
		return err
	}

	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		reset, err := s.resets.LockByCodeHash(ctx, HashSecret(code))
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if reset.IsExpired(now) {
			return oops.Code(CodeResetExpired).
				With("user_id", reset.UserID.String()).
				With("expired_at", reset.ExpiresAt).
				Wrapf(errutil.ErrExpired, "reset code has expired")
		}

		u, err := s.users.LockByID(ctx, reset.UserID)
		if err != nil {
			return err
		}
		hash, err := s.credentials.HashPassword(newPassword)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		u.RecordSuccess(now)
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		if err := s.resets.DeleteByUser(ctx, u.ID); err != nil {
			return err
		}
		return s.sessions.RevokeAll(ctx, u.ID)
	})
	if err != nil {
		switch errutil.KindOf(err) {
		case errutil.KindNotFound, errutil.KindExpired, errutil.KindValidation:
			return err
		}
		return oops.Code("RESET_REDEEM_FAILED").Wrap(err)
	}
	return nil
}

// PurgeExpired deletes resets past their deadline.
func (s *PasswordResetService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.resets.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}
