// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustOops fails the test unless err is a coded error.
func mustOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected a coded error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode fails unless the innermost code on err's chain is code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	assert.Equal(t, code, mustOops(t, err).Code(), "error: %v", err)
}

// AssertErrorContext fails unless err carries key=value. Context attached
// at any depth of the chain counts.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	ctx := mustOops(t, err).Context()
	if assert.Contains(t, ctx, key, "context of %v", err) {
		assert.Equal(t, value, ctx[key], "context key %q", key)
	}
}

// AssertErrorKind fails unless err classifies as kind.
func AssertErrorKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, KindOf(err), "unexpected kind for %v", err)
}
