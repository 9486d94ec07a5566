// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package auth owns user credentials, session tokens, and password resets.
//
// # Services
//
//   - CredentialStore hashes passwords and resolves email/password pairs to users
//   - SessionManager issues, verifies, and revokes signed session tokens
//   - PasswordResetService issues and redeems single-use reset codes
//   - AccountService combines the three for the account endpoints
//
// Services are created with New* constructors that validate dependencies.
//
// # Secrets at rest
//
// Passwords are stored as argon2id PHC strings. Session tokens and reset
// codes are stored only as SHA-256 hex digests; the plaintext is returned to
// the caller once and never persisted.
package auth
