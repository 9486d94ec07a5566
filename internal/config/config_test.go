// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplan/dayplan/pkg/errutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := Default()
	cfg.Database.URL = "postgres://dayplan@localhost/dayplan"
	cfg.Auth.TokenSecret = testSecret
	return cfg
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dayplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func noEnv(string) string { return "" }

func TestDefault_NeedsOnlySecrets(t *testing.T) {
	err := Default().Validate()
	errutil.AssertErrorContext(t, err, "key", "database.url")

	require.NoError(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"missing http addr", func(c *Config) { c.HTTP.Addr = "" }, "http.addr"},
		{"malformed http addr", func(c *Config) { c.HTTP.Addr = "localhost" }, "http.addr"},
		{"malformed metrics addr", func(c *Config) { c.Metrics.Addr = "9100" }, "metrics.addr"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"short secret", func(c *Config) { c.Auth.TokenSecret = "short" }, "auth.token_secret"},
		{"negative ttl", func(c *Config) { c.Auth.TokenTTL = -time.Second }, "auth.token_ttl"},
		{"no tokens", func(c *Config) { c.Auth.MaxTokensPerUser = 0 }, "auth.max_tokens_per_user"},
		{"password length", func(c *Config) { c.Auth.MinPasswordLength = 500 }, "auth.min_password_length"},
		{"reset ttl", func(c *Config) { c.Auth.ResetCodeTTL = 0 }, "auth.reset_code_ttl"},
		{"notify timeout", func(c *Config) { c.Notify.Timeout = 0 }, "notify.timeout"},
		{"janitor interval", func(c *Config) { c.Janitor.Interval = -time.Minute }, "janitor.interval"},
		{"bucket mode", func(c *Config) { c.Tasks.BucketMode = "week" }, "tasks.bucket_mode"},
		{"max conns", func(c *Config) { c.Database.MaxConns = -1 }, "database.max_conns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.key)
			errutil.AssertErrorKind(t, err, errutil.KindValidation)
		})
	}
}

func TestValidate_EmptyMetricsAddrDisables(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Addr = ""
	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: "0.0.0.0:8088"
  read_header_timeout: 5s
log:
  format: text
database:
  url: postgres://file@db/dayplan
  max_conns: 8
auth:
  token_secret: `+testSecret+`
  token_ttl: 720h
  max_tokens_per_user: 3
tasks:
  bucket_mode: due
janitor:
  interval: 1m
`)

	cfg, err := Load(Source{Path: path, Getenv: noEnv})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8088", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadHeaderTimeout)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep defaults")
	assert.Equal(t, int32(8), cfg.Database.MaxConns)
	assert.Equal(t, 720*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.Auth.MaxTokensPerUser)
	assert.Equal(t, "due", cfg.Tasks.BucketMode)
	assert.Equal(t, time.Minute, cfg.Janitor.Interval)
	assert.Equal(t, time.Hour, cfg.Auth.ResetCodeTTL)
}

func TestLoad_FlagsAndEnvOverrideFile(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: "0.0.0.0:8088"
log:
  format: text
database:
  url: postgres://file@db/dayplan
auth:
  token_secret: `+testSecret+`
`)

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.String("http-addr", "127.0.0.1:8080", "")
	fs.String("log-format", "json", "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--http-addr", "127.0.0.1:9999", "--unrelated", "x"}))

	env := map[string]string{EnvDatabaseURL: "postgres://env@db/dayplan"}
	cfg, err := Load(Source{Path: path, Flags: fs, Getenv: func(k string) string { return env[k] }})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, "text", cfg.Log.Format, "an unset flag does not override the file")
	assert.Equal(t, "postgres://env@db/dayplan", cfg.Database.URL)
}

func TestLoad_WithoutFile(t *testing.T) {
	env := map[string]string{
		EnvDatabaseURL: "postgres://env@db/dayplan",
		EnvTokenSecret: testSecret,
	}
	cfg, err := Load(Source{Getenv: func(k string) string { return env[k] }})
	require.NoError(t, err)
	assert.Equal(t, Default().HTTP.Addr, cfg.HTTP.Addr)
	assert.Equal(t, testSecret, cfg.Auth.TokenSecret)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(Source{Path: filepath.Join(t.TempDir(), "missing.yaml"), Getenv: noEnv})
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")

	_, err = Load(Source{Path: writeConfig(t, "http:\n  port: 80\n"), Getenv: noEnv})
	errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_VIOLATION")

	_, err = Load(Source{Path: writeConfig(t, "log:\n  format: text\n"), Getenv: noEnv})
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestRead_SkipsValidation(t *testing.T) {
	path := writeConfig(t, "database:\n  url: postgres://file@db/dayplan\nhttp:\n  cors_origin: https://app.example.com\n")
	cfg, err := Read(Source{Path: path, Getenv: noEnv})
	require.NoError(t, err)
	assert.Equal(t, "postgres://file@db/dayplan", cfg.Database.URL)
	assert.Equal(t, "https://app.example.com", cfg.HTTP.CORSOrigin)
	assert.Empty(t, cfg.Auth.TokenSecret)

	_, err = Load(Source{Path: path, Getenv: noEnv})
	errutil.AssertErrorContext(t, err, "key", "auth.token_secret")
}

func TestValidateYAML(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		ok   bool
	}{
		{"empty document", "", true},
		{"known keys", "tasks:\n  bucket_mode: day\nauth:\n  max_tokens_per_user: 5\n", true},
		{"unknown section", "smtp:\n  host: mail\n", false},
		{"bad enum", "log:\n  format: xml\n", false},
		{"wrong type", "auth:\n  max_tokens_per_user: many\n", false},
		{"below minimum", "auth:\n  max_tokens_per_user: 0\n", false},
		{"duration as number", "janitor:\n  interval: 60\n", false},
		{"malformed yaml", "http: [", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateYAML([]byte(tt.doc))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorKind(t, err, errutil.KindValidation)
		})
	}
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SchemaID, doc["$id"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"http", "metrics", "log", "database", "auth", "notify", "tasks", "janitor"} {
		assert.Contains(t, props, key)
	}
	assert.True(t, strings.Contains(string(data), `"bucket_mode"`))
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error", ""} {
		_, err := ParseLevel(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseLevel("trace")
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
