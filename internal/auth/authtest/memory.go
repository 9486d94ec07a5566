// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package authtest provides in-memory auth repositories for tests.
package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/auth"
	"github.com/dayplan/dayplan/pkg/errutil"
)

type txKey struct{}

type tokenRow struct {
	token auth.SessionToken
	seq   int
}

type state struct {
	users  map[ulid.ULID]*auth.User
	tokens map[string]tokenRow
	resets map[ulid.ULID]*auth.PasswordReset // by user
}

func (s state) clone() state {
	out := state{
		users:  make(map[ulid.ULID]*auth.User, len(s.users)),
		tokens: make(map[string]tokenRow, len(s.tokens)),
		resets: make(map[ulid.ULID]*auth.PasswordReset, len(s.resets)),
	}
	for id, u := range s.users {
		out.users[id] = u.Clone()
	}
	for h, t := range s.tokens {
		out.tokens[h] = t
	}
	for id, r := range s.resets {
		c := *r
		out.resets[id] = &c
	}
	return out
}

// Store implements auth.UserRepository, auth.TokenRepository,
// auth.PasswordResetRepository and auth.Transactor in memory. Transactions
// are serialized and roll back to a snapshot on error.
type Store struct {
	mu     sync.Mutex
	data   state
	seq    int
	faults map[string]error
}

var (
	_ auth.UserRepository          = (*Store)(nil)
	_ auth.TokenRepository         = (*Store)(nil)
	_ auth.PasswordResetRepository = (*Store)(nil)
	_ auth.Transactor              = (*Store)(nil)
)

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		data: state{
			users:  make(map[ulid.ULID]*auth.User),
			tokens: make(map[string]tokenRow),
			resets: make(map[ulid.ULID]*auth.PasswordReset),
		},
		faults: make(map[string]error),
	}
}

// FailNext makes the next call to method return err.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = err
}

// TokenHashes returns the user's stored token hashes, oldest first.
func (s *Store) TokenHashes(userID ulid.ULID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.userTokens(userID)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.token.TokenHash
	}
	return out
}

// PendingReset returns the user's pending reset, or nil.
func (s *Store) PendingReset(userID ulid.ULID) *auth.PasswordReset {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data.resets[userID]
	if !ok {
		return nil
	}
	c := *r
	return &c
}

// InTransaction runs fn with exclusive access to the store.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) enter(ctx context.Context, method string) (func(), error) {
	release := func() {}
	if ctx.Value(txKey{}) == nil {
		s.mu.Lock()
		release = s.mu.Unlock
	}
	if err, ok := s.faults[method]; ok {
		delete(s.faults, method)
		release()
		return nil, err
	}
	return release, nil
}

func (s *Store) emailTaken(email string, except ulid.ULID) bool {
	for id, u := range s.data.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

// Create stores a new user.
func (s *Store) Create(ctx context.Context, u *auth.User) error {
	release, err := s.enter(ctx, "Create")
	if err != nil {
		return err
	}
	defer release()
	if s.emailTaken(u.Email, u.ID) {
		return auth.EmailTaken(u.Email)
	}
	s.data.users[u.ID] = u.Clone()
	return nil
}

// GetByID returns a copy of the user.
func (s *Store) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	release, err := s.enter(ctx, "GetByID")
	if err != nil {
		return nil, err
	}
	defer release()
	u, ok := s.data.users[id]
	if !ok {
		return nil, auth.UserNotFound(id)
	}
	return u.Clone(), nil
}

// GetByEmail returns a copy of the user with email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	release, err := s.enter(ctx, "GetByEmail")
	if err != nil {
		return nil, err
	}
	defer release()
	for _, u := range s.data.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, oops.Code(auth.CodeUserNotFound).With("email", email).Wrap(errutil.ErrNotFound)
}

// LockByID is GetByID; the store mutex already serializes transactions.
func (s *Store) LockByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	release, err := s.enter(ctx, "LockByID")
	if err != nil {
		return nil, err
	}
	defer release()
	u, ok := s.data.users[id]
	if !ok {
		return nil, auth.UserNotFound(id)
	}
	return u.Clone(), nil
}

// Update overwrites the stored user.
func (s *Store) Update(ctx context.Context, u *auth.User) error {
	release, err := s.enter(ctx, "Update")
	if err != nil {
		return err
	}
	defer release()
	if _, ok := s.data.users[u.ID]; !ok {
		return auth.UserNotFound(u.ID)
	}
	if s.emailTaken(u.Email, u.ID) {
		return auth.EmailTaken(u.Email)
	}
	s.data.users[u.ID] = u.Clone()
	return nil
}

// Add inserts a token hash.
func (s *Store) Add(ctx context.Context, t *auth.SessionToken) error {
	release, err := s.enter(ctx, "Add")
	if err != nil {
		return err
	}
	defer release()
	s.seq++
	s.data.tokens[t.TokenHash] = tokenRow{token: *t, seq: s.seq}
	return nil
}

// Exists reports whether the user owns hash.
func (s *Store) Exists(ctx context.Context, userID ulid.ULID, hash string) (bool, error) {
	release, err := s.enter(ctx, "Exists")
	if err != nil {
		return false, err
	}
	defer release()
	row, ok := s.data.tokens[hash]
	return ok && row.token.UserID == userID, nil
}

// Delete removes one of the user's token hashes.
func (s *Store) Delete(ctx context.Context, userID ulid.ULID, hash string) error {
	release, err := s.enter(ctx, "Delete")
	if err != nil {
		return err
	}
	defer release()
	if row, ok := s.data.tokens[hash]; ok && row.token.UserID == userID {
		delete(s.data.tokens, hash)
	}
	return nil
}

// DeleteAll removes every token of the user.
func (s *Store) DeleteAll(ctx context.Context, userID ulid.ULID) (int64, error) {
	release, err := s.enter(ctx, "DeleteAll")
	if err != nil {
		return 0, err
	}
	defer release()
	var n int64
	for _, row := range s.userTokens(userID) {
		delete(s.data.tokens, row.token.TokenHash)
		n++
	}
	return n, nil
}

// TrimOldest keeps the newest keep tokens of the user.
func (s *Store) TrimOldest(ctx context.Context, userID ulid.ULID, keep int) (int64, error) {
	release, err := s.enter(ctx, "TrimOldest")
	if err != nil {
		return 0, err
	}
	defer release()
	rows := s.userTokens(userID)
	var n int64
	for i := 0; i < len(rows)-keep; i++ {
		delete(s.data.tokens, rows[i].token.TokenHash)
		n++
	}
	return n, nil
}

// userTokens returns the user's rows oldest first. Callers hold the mutex.
func (s *Store) userTokens(userID ulid.ULID) []tokenRow {
	var rows []tokenRow
	for _, row := range s.data.tokens {
		if row.token.UserID == userID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows
}

// Replace stores reset as the user's only pending reset.
func (s *Store) Replace(ctx context.Context, r *auth.PasswordReset) error {
	release, err := s.enter(ctx, "Replace")
	if err != nil {
		return err
	}
	defer release()
	c := *r
	s.data.resets[r.UserID] = &c
	return nil
}

// LockByCodeHash returns the reset with hash.
func (s *Store) LockByCodeHash(ctx context.Context, hash string) (*auth.PasswordReset, error) {
	release, err := s.enter(ctx, "LockByCodeHash")
	if err != nil {
		return nil, err
	}
	defer release()
	for _, r := range s.data.resets {
		if r.CodeHash == hash {
			c := *r
			return &c, nil
		}
	}
	return nil, oops.Code(auth.CodeResetNotFound).Wrapf(errutil.ErrNotFound, "reset code not found")
}

// DeleteByUser removes the user's pending reset.
func (s *Store) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	release, err := s.enter(ctx, "DeleteByUser")
	if err != nil {
		return err
	}
	defer release()
	delete(s.data.resets, userID)
	return nil
}

// DeleteExpired removes resets whose deadline is at or before now.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	release, err := s.enter(ctx, "DeleteExpired")
	if err != nil {
		return 0, err
	}
	defer release()
	var n int64
	for id, r := range s.data.resets {
		if r.IsExpired(now) {
			delete(s.data.resets, id)
			n++
		}
	}
	return n, nil
}
