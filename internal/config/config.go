// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package config loads dayplan settings from defaults, a YAML file,
// command-line flags and the environment.
package config

import (
	"net"
	"time"

	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/auth"
	"github.com/dayplan/dayplan/internal/task"
	"github.com/dayplan/dayplan/pkg/errutil"
)

// Config is the complete runtime configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" json:"http"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics"`
	Log      LogConfig      `koanf:"log" json:"log"`
	Database DatabaseConfig `koanf:"database" json:"database"`
	Auth     AuthConfig     `koanf:"auth" json:"auth"`
	Notify   NotifyConfig   `koanf:"notify" json:"notify"`
	Tasks    TasksConfig    `koanf:"tasks" json:"tasks"`
	Janitor  JanitorConfig  `koanf:"janitor" json:"janitor"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr              string        `koanf:"addr" json:"addr" jsonschema:"description=API listen address (host:port)"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" json:"read_header_timeout" jsonschema:"type=string,description=Go duration such as 10s"`
	CORSOrigin        string        `koanf:"cors_origin" json:"cors_origin" jsonschema:"description=browser origin allowed to call the API; empty disables CORS"`
}

// MetricsConfig configures the observability listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr" jsonschema:"description=metrics and health probe address; empty disables"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" json:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL      string `koanf:"url" json:"url" jsonschema:"description=PostgreSQL connection URL; DATABASE_URL overrides it"`
	MaxConns int32  `koanf:"max_conns" json:"max_conns" jsonschema:"minimum=0"`
}

// AuthConfig configures credentials, session tokens and reset codes.
type AuthConfig struct {
	TokenSecret       string        `koanf:"token_secret" json:"token_secret" jsonschema:"description=HMAC key for session tokens; at least 32 bytes"`
	TokenTTL          time.Duration `koanf:"token_ttl" json:"token_ttl" jsonschema:"type=string,description=token lifetime; 0 issues tokens without expiry"`
	MaxTokensPerUser  int           `koanf:"max_tokens_per_user" json:"max_tokens_per_user" jsonschema:"minimum=1"`
	MinPasswordLength int           `koanf:"min_password_length" json:"min_password_length" jsonschema:"minimum=1"`
	ResetCodeTTL      time.Duration `koanf:"reset_code_ttl" json:"reset_code_ttl" jsonschema:"type=string"`
}

// NotifyConfig configures reset code delivery.
type NotifyConfig struct {
	Timeout time.Duration `koanf:"timeout" json:"timeout" jsonschema:"type=string"`
}

// TasksConfig configures the task engine.
type TasksConfig struct {
	BucketMode string `koanf:"bucket_mode" json:"bucket_mode" jsonschema:"enum=day,enum=due"`
}

// JanitorConfig configures the expired reset sweeper.
type JanitorConfig struct {
	Interval time.Duration `koanf:"interval" json:"interval" jsonschema:"type=string"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:              "127.0.0.1:8080",
			ReadHeaderTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Auth: AuthConfig{
			TokenTTL:          0,
			MaxTokensPerUser:  auth.DefaultMaxTokensPerUser,
			MinPasswordLength: auth.DefaultMinPasswordLength,
			ResetCodeTTL:      auth.DefaultResetCodeTTL,
		},
		Notify:  NotifyConfig{Timeout: 10 * time.Second},
		Tasks:   TasksConfig{BucketMode: string(task.BucketKindDay)},
		Janitor: JanitorConfig{Interval: auth.DefaultJanitorInterval},
	}
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	if err := validateAddr("http.addr", c.HTTP.Addr, false); err != nil {
		return err
	}
	if err := validateAddr("metrics.addr", c.Metrics.Addr, true); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", c.Log.Format, "log format must be 'json' or 'text'")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Database.URL == "" {
		return invalid("database.url", "", "database url is required (set database.url or DATABASE_URL)")
	}
	if c.Database.MaxConns < 0 {
		return invalid("database.max_conns", c.Database.MaxConns, "max connections must not be negative")
	}
	if len(c.Auth.TokenSecret) < auth.MinTokenSecretLength {
		return invalid("auth.token_secret", len(c.Auth.TokenSecret),
			"token secret must be at least 32 bytes")
	}
	if c.Auth.TokenTTL < 0 {
		return invalid("auth.token_ttl", c.Auth.TokenTTL, "token ttl must not be negative")
	}
	if c.Auth.MaxTokensPerUser < 1 {
		return invalid("auth.max_tokens_per_user", c.Auth.MaxTokensPerUser, "at least one token per user is required")
	}
	if c.Auth.MinPasswordLength < 1 || c.Auth.MinPasswordLength > auth.MaxPasswordLength {
		return invalid("auth.min_password_length", c.Auth.MinPasswordLength, "minimum password length is out of range")
	}
	for key, d := range map[string]time.Duration{
		"auth.reset_code_ttl":      c.Auth.ResetCodeTTL,
		"notify.timeout":           c.Notify.Timeout,
		"janitor.interval":         c.Janitor.Interval,
		"http.read_header_timeout": c.HTTP.ReadHeaderTimeout,
	} {
		if d <= 0 {
			return invalid(key, d, "duration must be positive")
		}
	}
	if _, err := task.ParseBucketKind(c.Tasks.BucketMode); err != nil {
		return invalid("tasks.bucket_mode", c.Tasks.BucketMode, "bucket mode must be 'day' or 'due'")
	}
	return nil
}

func validateAddr(key, addr string, optional bool) error {
	if addr == "" {
		if optional {
			return nil
		}
		return invalid(key, addr, "address is required")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return oops.Code("CONFIG_INVALID").
			With("key", key).
			With("value", addr).
			Wrapf(errutil.ErrValidation, "address must be host:port: %v", err)
	}
	return nil
}

func invalid(key string, value any, msg string) error {
	return oops.Code("CONFIG_INVALID").
		With("key", key).
		With("value", value).
		Wrapf(errutil.ErrValidation, "%s", msg)
}
