// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/core"
)

// MinTokenSecretLength is the shortest accepted HMAC secret in bytes.
const MinTokenSecretLength = 32

// TokenPurposeAuth marks a session token. Tokens minted for anything else
// never authenticate a request.
const TokenPurposeAuth = "auth"

// TokenClaims are the claims carried by a session token.
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID  string `json:"uid"`
	Purpose string `json:"purpose"`
}

// TokenSigner signs and parses HS256 session tokens.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	clock  core.Clock
}

// NewTokenSigner creates a TokenSigner. A zero ttl issues tokens without an
// expiry; they stay valid until revoked.
func NewTokenSigner(secret []byte, ttl time.Duration, clock core.Clock) (*TokenSigner, error) {
	if len(secret) < MinTokenSecretLength {
		return nil, oops.Code("TOKEN_SECRET_INVALID").
			With("min_bytes", MinTokenSecretLength).
			Errorf("token secret must be at least %d bytes", MinTokenSecretLength)
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &TokenSigner{secret: secret, ttl: ttl, clock: clock}, nil
}

// Sign mints a token for userID. Every token carries a fresh jti so two
// tokens issued in the same second still differ.
func (s *TokenSigner) Sign(userID ulid.ULID) (string, error) {
	now := s.clock.Now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserID:  userID.String(),
		Purpose: TokenPurposeAuth,
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return token, nil
}

// Parse checks the signature, expiry and purpose of token and returns the
// user id it names.
func (s *TokenSigner) Parse(token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, invalidToken("empty")
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return ulid.ULID{}, invalidToken("signature or expiry")
	}
	if claims.Purpose != TokenPurposeAuth {
		return ulid.ULID{}, invalidToken("purpose")
	}

	userID, err := ulid.ParseStrict(claims.UserID)
	if err != nil {
		return ulid.ULID{}, invalidToken("subject")
	}
	return userID, nil
}

// HashSecret returns the hex SHA-256 digest under which a token or reset
// code is stored.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
