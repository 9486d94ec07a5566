// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dayplan/dayplan/internal/auth"
	"github.com/dayplan/dayplan/internal/auth/authtest"
	"github.com/dayplan/dayplan/internal/auth/mocks"
	"github.com/dayplan/dayplan/internal/core"
)

var authNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

type authFixture struct {
	store       *authtest.Store
	clock       *core.FakeClock
	notifier    *mocks.MockNotifier
	credentials *auth.CredentialStore
	sessions    *auth.SessionManager
	resets      *auth.PasswordResetService
	accounts    *auth.AccountService
}

func newAuthFixture(t *testing.T, opts ...auth.Option) *authFixture {
	t.Helper()
	store := authtest.NewStore()
	clock := core.NewFakeClock(authNow)
	opts = append([]auth.Option{auth.WithClock(clock)}, opts...)

	credentials, err := auth.NewCredentialStore(store, store, fastHasher(), opts...)
	require.NoError(t, err)
	signer, err := auth.NewTokenSigner(testSecret, 0, clock)
	require.NoError(t, err)
	sessions, err := auth.NewSessionManager(store, store, store, signer, opts...)
	require.NoError(t, err)
	notifier := mocks.NewMockNotifier(t)
	resets, err := auth.NewPasswordResetService(store, store, store, credentials, sessions, notifier, opts...)
	require.NoError(t, err)
	accounts, err := auth.NewAccountService(store, store, store, credentials, sessions, opts...)
	require.NoError(t, err)

	return &authFixture{
		store:       store,
		clock:       clock,
		notifier:    notifier,
		credentials: credentials,
		sessions:    sessions,
		resets:      resets,
		accounts:    accounts,
	}
}

// register creates a user and returns it with its first token.
func (f *authFixture) register(t *testing.T, email, password string) (*auth.User, string) {
	t.Helper()
	u, token, err := f.accounts.Register(context.Background(), email, password)
	require.NoError(t, err)
	return u, token
}

// captureReset requests a reset for email and returns the delivered code.
func (f *authFixture) captureReset(t *testing.T, email string) string {
	t.Helper()
	var code string
	f.notifier.On("Notify", mock.Anything, email, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { code = args.String(2) }).
		Return(nil).Once()
	require.NoError(t, f.resets.RequestReset(context.Background(), email))
	require.NotEmpty(t, code)
	return code
}
