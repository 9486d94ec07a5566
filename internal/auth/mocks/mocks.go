// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package mocks provides testify mocks for auth interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dayplan/dayplan/internal/auth"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockNotifier is a mock auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

var _ auth.Notifier = (*MockNotifier)(nil)

// NewMockNotifier creates a MockNotifier whose expectations are asserted at
// test cleanup.
func NewMockNotifier(t testingT) *MockNotifier {
	m := &MockNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Notify records the call.
func (m *MockNotifier) Notify(ctx context.Context, email, code string) error {
	args := m.Called(ctx, email, code)
	return args.Error(0)
}

// MockPasswordHasher is a mock auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

var _ auth.PasswordHasher = (*MockPasswordHasher)(nil)

// NewMockPasswordHasher creates a MockPasswordHasher whose expectations are
// asserted at test cleanup.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash records the call.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify records the call.
func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade records the call.
func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}
