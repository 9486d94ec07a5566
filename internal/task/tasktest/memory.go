// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package tasktest provides an in-memory task repository for tests.
package tasktest

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/task"
	"github.com/dayplan/dayplan/pkg/errutil"
)

type txKey struct{}

// Store is an in-memory task.Repository and task.Transactor. Transactions
// are serialized by a single mutex and roll back to a snapshot on error.
type Store struct {
	mu     sync.Mutex
	tasks  map[ulid.ULID]*task.Task
	faults map[string]error
	locks  []task.Bucket
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		tasks:  make(map[ulid.ULID]*task.Task),
		faults: make(map[string]error),
	}
}

var (
	_ task.Repository = (*Store)(nil)
	_ task.Transactor = (*Store)(nil)
)

// FailNext makes the next call to method return err.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = err
}

// LockedBuckets returns every bucket passed to LockBuckets so far.
func (s *Store) LockedBuckets() []task.Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]task.Bucket(nil), s.locks...)
}

// InTransaction runs fn with exclusive access to the store.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.tasks = snapshot
		return err
	}
	return nil
}

func (s *Store) snapshot() map[ulid.ULID]*task.Task {
	out := make(map[ulid.ULID]*task.Task, len(s.tasks))
	for id, t := range s.tasks {
		out[id] = t.Clone()
	}
	return out
}

// enter takes the mutex unless ctx is inside a transaction, and reports an
// injected fault for method.
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

func notFound(id ulid.ULID) error {
	return oops.Code("TASK_NOT_FOUND").With("task_id", id.String()).Wrap(errutil.ErrNotFound)
}

// Create inserts a copy of t.
func (s *Store) Create(ctx context.Context, t *task.Task) error {
	release, err := s.enter(ctx, "Create")
	if err != nil {
		return err
	}
	defer release()
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Get returns a copy of the user's task.
func (s *Store) Get(ctx context.Context, userID, id ulid.ULID) (*task.Task, error) {
	release, err := s.enter(ctx, "Get")
	if err != nil {
		return nil, err
	}
	defer release()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, notFound(id)
	}
	return t.Clone(), nil
}

// List returns copies of the user's tasks matching f.
func (s *Store) List(ctx context.Context, userID ulid.ULID, f task.Filter) ([]*task.Task, error) {
	release, err := s.enter(ctx, "List")
	if err != nil {
		return nil, err
	}
	defer release()

	var out []*task.Task
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if f.Done != nil && t.Done != *f.Done {
			continue
		}
		if f.Bucket != nil && t.Bucket != *f.Bucket {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bucket != out[j].Bucket {
			return out[i].Bucket < out[j].Bucket
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID.Compare(out[j].ID) < 0
	})
	return out, nil
}

// Count returns the number of the user's tasks in bucket.
func (s *Store) Count(ctx context.Context, userID ulid.ULID, bucket task.Bucket) (int, error) {
	release, err := s.enter(ctx, "Count")
	if err != nil {
		return 0, err
	}
	defer release()
	n := 0
	for _, t := range s.tasks {
		if t.UserID == userID && t.Bucket == bucket {
			n++
		}
	}
	return n, nil
}

// Update replaces the stored task.
func (s *Store) Update(ctx context.Context, t *task.Task) error {
	release, err := s.enter(ctx, "Update")
	if err != nil {
		return err
	}
	defer release()
	existing, ok := s.tasks[t.ID]
	if !ok || existing.UserID != t.UserID {
		return notFound(t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Delete removes the user's task.
func (s *Store) Delete(ctx context.Context, userID, id ulid.ULID) error {
	release, err := s.enter(ctx, "Delete")
	if err != nil {
		return err
	}
	defer release()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return notFound(id)
	}
	delete(s.tasks, id)
	return nil
}

// Shift moves positions at or after from by delta.
func (s *Store) Shift(ctx context.Context, userID ulid.ULID, bucket task.Bucket, from, delta int, exclude ulid.ULID) error {
	release, err := s.enter(ctx, "Shift")
	if err != nil {
		return err
	}
	defer release()
	for id, t := range s.tasks {
		if id == exclude || t.UserID != userID || t.Bucket != bucket || t.Position < from {
			continue
		}
		t.Position += delta
	}
	return nil
}

// LockBuckets records the request. The store mutex already serializes
// transactions.
func (s *Store) LockBuckets(ctx context.Context, _ ulid.ULID, buckets ...task.Bucket) error {
	release, err := s.enter(ctx, "LockBuckets")
	if err != nil {
		return err
	}
	defer release()
	s.locks = append(s.locks, buckets...)
	return nil
}
