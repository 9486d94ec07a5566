// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs cmd with args and returns everything it printed.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	configFile = ""
	t.Cleanup(func() { configFile = "" })
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "status", "config"} {
		assert.True(t, names[want], "missing %s subcommand", want)
	}

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}

func TestRootCmd_Help(t *testing.T) {
	out, err := execute(t, NewRootCmd(), "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "dayplan")
	assert.Contains(t, out, "--config")
}

func TestServeCmd_Flags(t *testing.T) {
	cmd := NewServeCmd()
	tests := map[string]string{
		"http-addr":    "127.0.0.1:8080",
		"metrics-addr": "127.0.0.1:9100",
		"log-format":   "json",
		"log-level":    "info",
		"bucket-mode":  "day",
		"database-url": "",
	}
	for name, def := range tests {
		flag := cmd.Flags().Lookup(name)
		if assert.NotNil(t, flag, name) {
			assert.Equal(t, def, flag.DefValue, name)
		}
	}
}

func TestServeCmd_RejectsInvalidConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DAYPLAN_TOKEN_SECRET", "")

	_, err := execute(t, NewRootCmd(), "serve", "--database-url", "postgres://localhost/dayplan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token secret")
}

func TestConfigPath_DiscoversXDGFile(t *testing.T) {
	configFile = ""
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	path, err := configPath()
	require.NoError(t, err)
	assert.Empty(t, path)

	want := filepath.Join(base, "dayplan", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(want), 0o700))
	require.NoError(t, os.WriteFile(want, []byte("log:\n  level: warn\n"), 0o600))
	path, err = configPath()
	require.NoError(t, err)
	assert.Equal(t, want, path)

	configFile = "/etc/dayplan.yaml"
	t.Cleanup(func() { configFile = "" })
	path, err = configPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/dayplan.yaml", path)
}

func TestConfigCmd_Schema(t *testing.T) {
	out, err := execute(t, NewRootCmd(), "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"token_secret"`)

	target := filepath.Join(t.TempDir(), "schemas", "config.schema.json")
	_, err = execute(t, NewRootCmd(), "config", "schema", "--out", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://dayplan.dev/schemas/config.schema.json")
}

func TestConfigCmd_Validate(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env@db/dayplan")
	t.Setenv("DAYPLAN_TOKEN_SECRET", "0123456789abcdef0123456789abcdef")
	out, err := execute(t, NewRootCmd(), "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	t.Setenv("DAYPLAN_TOKEN_SECRET", "short")
	_, err = execute(t, NewRootCmd(), "config", "validate")
	require.Error(t, err)
}
