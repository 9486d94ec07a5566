// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth

import (
	"log/slog"
	"time"

	"github.com/dayplan/dayplan/internal/core"
)

// Defaults applied when no option overrides them.
const (
	DefaultMaxTokensPerUser = 10
	DefaultResetCodeTTL     = time.Hour
)

type options struct {
	clock             core.Clock
	logger            *slog.Logger
	minPasswordLength int
	maxTokens         int
	resetTTL          time.Duration
}

// Option configures the services in this package. Each service reads only
// the settings it uses.
type Option func(*options)

// WithClock sets the clock used for timestamps and expiry checks.
func WithClock(c core.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMinPasswordLength sets the shortest accepted password.
func WithMinPasswordLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.minPasswordLength = n
		}
	}
}

// WithMaxTokensPerUser bounds how many sessions a user keeps. Older tokens
// are revoked first.
func WithMaxTokensPerUser(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithResetCodeTTL sets how long a reset code stays redeemable.
func WithResetCodeTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.resetTTL = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:             core.SystemClock{},
		logger:            slog.Default(),
		minPasswordLength: DefaultMinPasswordLength,
		maxTokens:         DefaultMaxTokensPerUser,
		resetTTL:          DefaultResetCodeTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
