// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplan/dayplan/internal/auth"
	"github.com/dayplan/dayplan/internal/auth/authtest"
	"github.com/dayplan/dayplan/internal/core"
	"github.com/dayplan/dayplan/pkg/errutil"
)

func TestNewSessionManager_NilDependencies(t *testing.T) {
	store := authtest.NewStore()
	signer, err := auth.NewTokenSigner(testSecret, 0, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		users  auth.UserRepository
		tokens auth.TokenRepository
		tx     auth.Transactor
		signer *auth.TokenSigner
		expect string
	}{
		{"nil users", nil, store, store, signer, "user repository is required"},
		{"nil tokens", store, nil, store, signer, "token repository is required"},
		{"nil transactor", store, store, nil, signer, "transactor is required"},
		{"nil signer", store, store, store, nil, "token signer is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := auth.NewSessionManager(tt.users, tt.tokens, tt.tx, tt.signer)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.Contains(t, err.Error(), tt.expect)
		})
	}
}

func TestSessionManager_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	u, first := f.register(t, "hana@example.com", "pa55word")

	second, err := f.sessions.IssueToken(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	for _, token := range []string{first, second} {
		got, err := f.sessions.VerifyToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
	}

	// Only digests are stored.
	hashes := f.store.TokenHashes(u.ID)
	assert.Equal(t, []string{auth.HashSecret(first), auth.HashSecret(second)}, hashes)
}

func TestSessionManager_RevokeToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	u, first := f.register(t, "ivan@example.com", "pa55word")
	second, err := f.sessions.IssueToken(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, f.sessions.RevokeToken(ctx, u.ID, first))

	_, err = f.sessions.VerifyToken(ctx, first)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	_, err = f.sessions.VerifyToken(ctx, second)
	require.NoError(t, err)

	// Idempotent, including for users that no longer exist.
	require.NoError(t, f.sessions.RevokeToken(ctx, u.ID, first))
	require.NoError(t, f.sessions.RevokeToken(ctx, core.NewULID(), first))
}

func TestSessionManager_RevokeTokenOfOtherUserIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, victimToken := f.register(t, "judy@example.com", "pa55word")
	attacker, _ := f.register(t, "mallory@example.com", "pa55word")

	require.NoError(t, f.sessions.RevokeToken(ctx, attacker.ID, victimToken))
	_, err := f.sessions.VerifyToken(ctx, victimToken)
	require.NoError(t, err)
}

func TestSessionManager_RevokeAll(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	u, first := f.register(t, "kim@example.com", "pa55word")
	second, err := f.sessions.IssueToken(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, f.sessions.RevokeAll(ctx, u.ID))
	for _, token := range []string{first, second} {
		_, err := f.sessions.VerifyToken(ctx, token)
		errutil.AssertErrorKind(t, err, errutil.KindAuthentication)
	}
	assert.Empty(t, f.store.TokenHashes(u.ID))

	err = f.sessions.RevokeAll(ctx, core.NewULID())
	errutil.AssertErrorCode(t, err, auth.CodeUserNotFound)
}

func TestSessionManager_TrimsOldestTokens(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, auth.WithMaxTokensPerUser(2))
	u, first := f.register(t, "lee@example.com", "pa55word")
	second, err := f.sessions.IssueToken(ctx, u.ID)
	require.NoError(t, err)
	third, err := f.sessions.IssueToken(ctx, u.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{auth.HashSecret(second), auth.HashSecret(third)}, f.store.TokenHashes(u.ID))
	_, err = f.sessions.VerifyToken(ctx, first)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
}

func TestSessionManager_IssueTokenUnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.sessions.IssueToken(context.Background(), core.NewULID())
	errutil.AssertErrorCode(t, err, auth.CodeUserNotFound)
}

func TestSessionManager_IssueTokenRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	u, first := f.register(t, "max@example.com", "pa55word")

	f.store.FailNext("TrimOldest", errutil.Storage(errors.New("disk full")))
	_, err := f.sessions.IssueToken(ctx, u.ID)
	errutil.AssertErrorCode(t, err, "TOKEN_ISSUE_FAILED")
	errutil.AssertErrorKind(t, err, errutil.KindStorage)

	assert.Equal(t, []string{auth.HashSecret(first)}, f.store.TokenHashes(u.ID))
}

func TestSessionManager_VerifyTokenOfDeletedUser(t *testing.T) {
	f := newAuthFixture(t)
	signer, err := auth.NewTokenSigner(testSecret, 0, nil)
	require.NoError(t, err)
	orphan, err := signer.Sign(core.NewULID())
	require.NoError(t, err)

	_, err = f.sessions.VerifyToken(context.Background(), orphan)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	errutil.AssertErrorContext(t, err, "reason", "unknown user")
}

func TestSessionManager_VerifyTokenStorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, token := f.register(t, "ned@example.com", "pa55word")

	f.store.FailNext("Exists", errutil.Storage(errors.New("timeout")))
	_, err := f.sessions.VerifyToken(ctx, token)
	errutil.AssertErrorCode(t, err, "TOKEN_VERIFY_FAILED")
	errutil.AssertErrorKind(t, err, errutil.KindStorage)
}
