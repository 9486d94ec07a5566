// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package task implements the task ordering engine.
//
// # Buckets
//
// Tasks are partitioned per owning user into buckets. A Bucket is an opaque
// string key: "day:0" through "day:6" for weekday scheduling, or
// "due:2026-10-18" for due-date scheduling. A deployment accepts exactly one
// kind and rejects the other instead of converting between them.
//
// # Ordering
//
// Within a (user, bucket) partition the positions of the n tasks are exactly
// 0 through n-1. Create, Delete and Move preserve this by shifting the
// neighbours of the affected task inside one transaction while holding a
// per-bucket lock. UpdateFields and BulkReposition overwrite positions as
// given and leave consistency to the caller.
package task
