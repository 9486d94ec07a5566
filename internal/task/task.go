// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package task

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/pkg/errutil"
)

// Field limits.
const (
	MaxContentLength = 2000
	MinColor         = 0
	MaxColor         = 15
)

// Task is a single to-do item owned by exactly one user.
type Task struct {
	ID          ulid.ULID
	UserID      ulid.ULID
	Content     string
	Bucket      Bucket
	Position    int
	Done        bool
	DoneAt      *time.Time
	Color       int
	Reoccurring bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	if t.DoneAt != nil {
		doneAt := *t.DoneAt
		c.DoneAt = &doneAt
	}
	return &c
}

// Draft holds the caller-supplied fields of a new task.
type Draft struct {
	Content     string
	Bucket      Bucket
	Color       int
	Reoccurring bool
}

// Patch is a partial update. Nil fields are left unchanged, except Done: an
// omitted Done clears completion.
type Patch struct {
	Content     *string
	Bucket      *Bucket
	Reoccurring *bool
	Done        *bool
	Position    *int
	Color       *int
}

// Filter narrows List. Nil fields match everything.
type Filter struct {
	Done   *bool
	Bucket *Bucket
}

// Reposition is one entry of a bulk position overwrite.
type Reposition struct {
	ID       ulid.ULID
	Position int
	Bucket   *Bucket
}

// RepositionResult reports the outcome of one Reposition.
type RepositionResult struct {
	ID   ulid.ULID
	Task *Task
	Err  error
}

// ValidateContent trims content and checks it is non-empty and bounded.
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", oops.Code("TASK_INVALID_CONTENT").Wrapf(errutil.ErrValidation, "content cannot be empty")
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxContentLength {
		return "", oops.Code("TASK_INVALID_CONTENT").
			With("max", MaxContentLength).
			With("length", n).
			Wrapf(errutil.ErrValidation, "content must be at most %d characters", MaxContentLength)
	}
	return trimmed, nil
}

// ValidateColor checks the display color index.
func ValidateColor(color int) error {
	if color < MinColor || color > MaxColor {
		return oops.Code("TASK_INVALID_COLOR").
			With("color", color).
			Wrapf(errutil.ErrValidation, "color must be between %d and %d", MinColor, MaxColor)
	}
	return nil
}

// ValidatePosition checks a position is not negative.
func ValidatePosition(position int) error {
	if position < 0 {
		return oops.Code("TASK_INVALID_POSITION").
			With("position", position).
			Wrapf(errutil.ErrValidation, "position cannot be negative")
	}
	return nil
}

// Repository persists tasks. Every method is scoped to the owning user.
// Implementations resolve the active transaction from ctx.
type Repository interface {
	// Create inserts a task.
	Create(ctx context.Context, t *Task) error

	// Get returns the user's task or a not-found error.
	Get(ctx context.Context, userID, id ulid.ULID) (*Task, error)

	// List returns the user's tasks ordered by bucket then position.
	List(ctx context.Context, userID ulid.ULID, filter Filter) ([]*Task, error)

	// Count returns how many tasks the user has in bucket.
	Count(ctx context.Context, userID ulid.ULID, bucket Bucket) (int, error)

	// Update overwrites every mutable column of an existing task.
	Update(ctx context.Context, t *Task) error

	// Delete removes the user's task or returns a not-found error.
	Delete(ctx context.Context, userID, id ulid.ULID) error

	// Shift adds delta to the position of every task in (userID, bucket)
	// whose position is at least from, skipping exclude.
	Shift(ctx context.Context, userID ulid.ULID, bucket Bucket, from, delta int, exclude ulid.ULID) error

	// LockBuckets serializes structural changes to the given buckets until
	// the surrounding transaction ends.
	LockBuckets(ctx context.Context, userID ulid.ULID, buckets ...Bucket) error
}

// Transactor runs fn atomically.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
