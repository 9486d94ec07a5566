// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package task

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/dayplan/dayplan/pkg/errutil"
)

// BucketKind selects which scheduling semantic a deployment uses.
type BucketKind string

// Supported bucket kinds.
const (
	// BucketKindDay partitions tasks by day of week, 0 through 6.
	BucketKindDay BucketKind = "day"
	// BucketKindDue partitions tasks by calendar due date.
	BucketKindDue BucketKind = "due"
)

// Day-of-week bounds.
const (
	MinDay = 0
	MaxDay = 6
)

const dueLayout = "2006-01-02"

// Bucket is the opaque scheduling key a task is ordered within. Values are
// comparable and serialize as "day:<0-6>" or "due:<YYYY-MM-DD>".
type Bucket string

// ParseBucketKind validates a configured bucket kind.
func ParseBucketKind(s string) (BucketKind, error) {
	switch k := BucketKind(s); k {
	case BucketKindDay, BucketKindDue:
		return k, nil
	}
	return "", oops.Code("TASK_INVALID_BUCKET_KIND").
		With("kind", s).
		Wrapf(errutil.ErrValidation, "bucket kind must be %q or %q", BucketKindDay, BucketKindDue)
}

// DayBucket returns the bucket for a day of week.
func DayBucket(day int) (Bucket, error) {
	if day < MinDay || day > MaxDay {
		return "", oops.Code("TASK_INVALID_BUCKET").
			With("day", day).
			Wrapf(errutil.ErrValidation, "day must be between %d and %d", MinDay, MaxDay)
	}
	return Bucket(string(BucketKindDay) + ":" + strconv.Itoa(day)), nil
}

// DueBucket returns the bucket for the UTC calendar date of t.
func DueBucket(t time.Time) Bucket {
	return Bucket(string(BucketKindDue) + ":" + t.UTC().Format(dueLayout))
}

// ParseBucket validates the serialized form of a bucket.
func ParseBucket(s string) (Bucket, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		return "", invalidBucket(s)
	}
	switch BucketKind(kind) {
	case BucketKindDay:
		day, err := strconv.Atoi(value)
		if err != nil || strconv.Itoa(day) != value {
			return "", invalidBucket(s)
		}
		return DayBucket(day)
	case BucketKindDue:
		due, err := time.Parse(dueLayout, value)
		if err != nil {
			return "", invalidBucket(s)
		}
		return DueBucket(due), nil
	}
	return "", invalidBucket(s)
}

// Kind reports the bucket's kind, or "" for a malformed bucket.
func (b Bucket) Kind() BucketKind {
	kind, _, _ := strings.Cut(string(b), ":")
	switch k := BucketKind(kind); k {
	case BucketKindDay, BucketKindDue:
		return k
	}
	return ""
}

// String returns the serialized bucket.
func (b Bucket) String() string { return string(b) }

func invalidBucket(s string) error {
	return oops.Code("TASK_INVALID_BUCKET").
		With("bucket", s).
		Wrapf(errutil.ErrValidation, "bucket %q must look like day:<0-6> or due:<YYYY-MM-DD>", s)
}
