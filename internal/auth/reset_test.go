// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplan/dayplan/internal/auth"
)

func TestGenerateResetCode(t *testing.T) {
	t.Run("generates 32 random bytes hex-encoded", func(t *testing.T) {
		code, hash, err := auth.GenerateResetCode()
		require.NoError(t, err)
		assert.Len(t, code, 2*auth.ResetCodeBytes)
		assert.Len(t, hash, 64)
		assert.Equal(t, auth.HashSecret(code), hash)
		assert.NotEqual(t, code, hash)
	})

	t.Run("generates unique codes", func(t *testing.T) {
		code1, hash1, err := auth.GenerateResetCode()
		require.NoError(t, err)
		code2, hash2, err := auth.GenerateResetCode()
		require.NoError(t, err)
		assert.NotEqual(t, code1, code2)
		assert.NotEqual(t, hash1, hash2)
	})
}

func TestPasswordReset_IsExpired(t *testing.T) {
	deadline := time.Date(2026, 10, 18, 13, 0, 0, 0, time.UTC)
	r := &auth.PasswordReset{ExpiresAt: deadline}

	assert.False(t, r.IsExpired(deadline.Add(-time.Second)))
	assert.True(t, r.IsExpired(deadline))
	assert.True(t, r.IsExpired(deadline.Add(time.Minute)))
}
