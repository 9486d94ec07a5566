// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplan/dayplan/pkg/errutil"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/dayplan", got)
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/testuser/.config/dayplan", got)
}

func TestFindConfig(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	path, ok, err := FindConfig()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, filepath.Join(base, "dayplan", ConfigFileName), path)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))
	_, ok, err = FindConfig()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFindConfig_Directory(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "dayplan", ConfigFileName), 0o700))

	_, ok, err := FindConfig()
	assert.False(t, ok)
	errutil.AssertErrorCode(t, err, "XDG_NOT_A_FILE")
}
