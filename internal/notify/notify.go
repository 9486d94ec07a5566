// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package notify delivers password reset codes to account owners.
package notify

import (
	"context"
	"log/slog"

	"github.com/dayplan/dayplan/internal/auth"
)

// LogNotifier writes reset codes to the log. It is meant for development
// deployments that have no mail relay.
type LogNotifier struct {
	logger *slog.Logger
}

var _ auth.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the code for email.
func (n *LogNotifier) Notify(ctx context.Context, email, code string) error {
	n.logger.InfoContext(ctx, "password reset code issued",
		"email", email,
		"reset_code", code,
	)
	return nil
}
