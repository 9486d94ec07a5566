// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package config

import (
	"log/slog"

	"github.com/samber/oops"

	"github.com/dayplan/dayplan/pkg/errutil"
)

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, oops.Code("CONFIG_INVALID").
		With("key", "log.level").
		With("value", s).
		Wrapf(errutil.ErrValidation, "unknown log level")
}
