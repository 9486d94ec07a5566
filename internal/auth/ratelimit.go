// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth

import (
	"time"
)

// Lockout configuration.
const (
	// LockoutDuration is the time a user is locked out after too many failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of consecutive failures that triggers a lockout.
	LockoutThreshold = 7
)

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ComputeLockoutTime returns the lockout deadline for the given failure count,
// or nil if failures is below LockoutThreshold.
func ComputeLockoutTime(failures int, now time.Time) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := now.Add(LockoutDuration)
	return &lockout
}
