// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package core holds primitives shared by every dayplan service: identifiers
// and the clock.
package core

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/pkg/errutil"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID generates a new ULID stamped with the current time.
func NewULID() ulid.ULID {
	return NewULIDAt(time.Now())
}

// NewULIDAt generates a ULID stamped with t. IDs minted in the same
// millisecond stay monotonic.
func NewULIDAt(t time.Time) ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy)
}

// ParseULID parses a client-supplied ULID. Malformed input is a validation
// error so handlers can reject it before touching storage.
func ParseULID(s string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_ID").
			With("id", s).
			Wrapf(errutil.ErrValidation, "invalid id %q: %v", s, err)
	}
	return id, nil
}
