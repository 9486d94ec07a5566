// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package errutil

import (
	"errors"
	"fmt"
)

// Error kinds shared by every dayplan service. Concrete errors are oops
// errors carrying a stable code that wrap exactly one of these sentinels.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAuthentication = errors.New("authentication failed")
	ErrExpired        = errors.New("expired")
	ErrStorage        = errors.New("storage failure")
)

// Kind names the category of an error for callers that render failures.
type Kind string

// Known kinds. KindInternal covers anything that wraps no sentinel.
const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindAuthentication Kind = "authentication"
	KindExpired        Kind = "expired"
	KindStorage        Kind = "storage"
	KindInternal       Kind = "internal"
)

var kindOrder = []struct {
	sentinel error
	kind     Kind
}{
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrConflict, KindConflict},
	{ErrAuthentication, KindAuthentication},
	{ErrExpired, KindExpired},
	{ErrStorage, KindStorage},
}

// KindOf classifies err. A nil error has an empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// Storage marks a driver or I/O error as a storage failure while keeping the
// original error in the chain.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
