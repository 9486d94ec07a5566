// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/dayplan/dayplan/pkg/errutil"
)

// DefaultJanitorInterval is how often expired resets are purged.
const DefaultJanitorInterval = 10 * time.Minute

// Purger deletes expired records and reports how many it removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Janitor periodically purges expired password resets.
type Janitor struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor creates a Janitor. A non-positive interval uses
// DefaultJanitorInterval.
func NewJanitor(purger Purger, interval time.Duration, logger *slog.Logger) (*Janitor, error) {
	if purger == nil {
		return nil, oops.Code("JANITOR_INVALID").Errorf("purger is required")
	}
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{purger: purger, interval: interval, logger: logger}, nil
}

// Run purges once immediately and then on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		j.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			errutil.LogErrorContext(ctx, j.logger, "purging expired resets failed", err)
		}
		return
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "purged expired resets", "count", n)
	}
}
