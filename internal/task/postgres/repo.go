// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package postgres stores tasks in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/store"
	"github.com/dayplan/dayplan/internal/task"
	"github.com/dayplan/dayplan/pkg/errutil"
)

const taskColumns = `id, user_id, content, bucket, position, done, done_at,
	       color, reoccurring, created_at, updated_at`

// TaskRepository implements task.Repository using PostgreSQL.
type TaskRepository struct {
	pool store.DBTX
}

var _ task.Repository = (*TaskRepository)(nil)

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool store.DBTX) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// Create inserts a task.
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO tasks (
			id, user_id, content, bucket, position, done, done_at,
			color, reoccurring, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		t.ID.String(),
		t.UserID.String(),
		t.Content,
		string(t.Bucket),
		t.Position,
		t.Done,
		t.DoneAt,
		t.Color,
		t.Reoccurring,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return oops.Code("TASK_INSERT_FAILED").
			With("task_id", t.ID.String()).
			Wrap(errutil.Storage(err))
	}
	return nil
}

// Get returns the user's task.
func (r *TaskRepository) Get(ctx context.Context, userID, id ulid.ULID) (*task.Task, error) {
	row := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`, id.String(), userID.String())

	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, oops.Code("TASK_QUERY_FAILED").
			With("operation", "get task").
			With("task_id", id.String()).
			Wrap(errutil.Storage(err))
	}
	return t, nil
}

// List returns the user's tasks ordered by bucket then position.
func (r *TaskRepository) List(ctx context.Context, userID ulid.ULID, f task.Filter) ([]*task.Task, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`)
	args := []any{userID.String()}
	if f.Done != nil {
		args = append(args, *f.Done)
		query.WriteString(` AND done = $` + strconv.Itoa(len(args)))
	}
	if f.Bucket != nil {
		args = append(args, string(*f.Bucket))
		query.WriteString(` AND bucket = $` + strconv.Itoa(len(args)))
	}
	query.WriteString(` ORDER BY bucket, position, id`)

	rows, err := store.Conn(ctx, r.pool).Query(ctx, query.String(), args...)
	if err != nil {
		return nil, oops.Code("TASK_QUERY_FAILED").
			With("operation", "list tasks").
			Wrap(errutil.Storage(err))
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, oops.Code("TASK_QUERY_FAILED").
				With("operation", "scan task").
				Wrap(errutil.Storage(err))
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TASK_QUERY_FAILED").
			With("operation", "iterate tasks").
			Wrap(errutil.Storage(err))
	}
	return tasks, nil
}

// Count returns how many tasks the user has in bucket.
func (r *TaskRepository) Count(ctx context.Context, userID ulid.ULID, bucket task.Bucket) (int, error) {
	var n int
	err := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT count(*) FROM tasks WHERE user_id = $1 AND bucket = $2
	`, userID.String(), string(bucket)).Scan(&n)
	if err != nil {
		return 0, oops.Code("TASK_QUERY_FAILED").
			With("operation", "count bucket").
			With("bucket", string(bucket)).
			Wrap(errutil.Storage(err))
	}
	return n, nil
}

// Update overwrites the mutable columns of a task.
func (r *TaskRepository) Update(ctx context.Context, t *task.Task) error {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE tasks SET
			content = $3,
			bucket = $4,
			position = $5,
			done = $6,
			done_at = $7,
			color = $8,
			reoccurring = $9,
			updated_at = $10
		WHERE id = $1 AND user_id = $2
	`,
		t.ID.String(),
		t.UserID.String(),
		t.Content,
		string(t.Bucket),
		t.Position,
		t.Done,
		t.DoneAt,
		t.Color,
		t.Reoccurring,
		t.UpdatedAt,
	)
	if err != nil {
		return oops.Code("TASK_WRITE_FAILED").
			With("operation", "update task").
			With("task_id", t.ID.String()).
			Wrap(errutil.Storage(err))
	}
	if result.RowsAffected() == 0 {
		return notFound(t.ID)
	}
	return nil
}

// Delete removes the user's task.
func (r *TaskRepository) Delete(ctx context.Context, userID, id ulid.ULID) error {
	result, err := store.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id.String(), userID.String())
	if err != nil {
		return oops.Code("TASK_WRITE_FAILED").
			With("operation", "delete task").
			With("task_id", id.String()).
			Wrap(errutil.Storage(err))
	}
	if result.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// Shift adds delta to every position in the bucket at or after from.
func (r *TaskRepository) Shift(ctx context.Context, userID ulid.ULID, bucket task.Bucket, from, delta int, exclude ulid.ULID) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE tasks SET position = position + $4
		WHERE user_id = $1 AND bucket = $2 AND position >= $3 AND id <> $5
	`, userID.String(), string(bucket), from, delta, exclude.String())
	if err != nil {
		return oops.Code("TASK_WRITE_FAILED").
			With("operation", "shift positions").
			With("bucket", string(bucket)).
			With("from", from).
			With("delta", delta).
			Wrap(errutil.Storage(err))
	}
	return nil
}

// LockBuckets takes a transaction-scoped advisory lock per bucket. Keys are
// sorted so concurrent transactions always acquire them in the same order.
func (r *TaskRepository) LockBuckets(ctx context.Context, userID ulid.ULID, buckets ...task.Bucket) error {
	if !store.InTx(ctx) {
		return oops.Code("TASK_LOCK_OUTSIDE_TX").Errorf("bucket locks require a transaction")
	}

	keys := make([]string, 0, len(buckets))
	for _, b := range buckets {
		keys = append(keys, lockKey(userID, b))
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	conn := store.Conn(ctx, r.pool)
	for _, key := range keys {
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return oops.Code("TASK_LOCK_FAILED").
				With("key", key).
				Wrap(errutil.Storage(err))
		}
	}
	return nil
}

func lockKey(userID ulid.ULID, b task.Bucket) string {
	return userID.String() + "/" + string(b)
}

func notFound(id ulid.ULID) error {
	return oops.Code("TASK_NOT_FOUND").
		With("task_id", id.String()).
		Wrap(errutil.ErrNotFound)
}

func scanTask(row pgx.Row) (*task.Task, error) {
	var (
		t               task.Task
		id, userID      string
		bucket          string
		doneAt          *time.Time
		position, color int
	)
	if err := row.Scan(&id, &userID, &t.Content, &bucket, &position, &t.Done, &doneAt,
		&color, &t.Reoccurring, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if t.ID, err = ulid.Parse(id); err != nil {
		return nil, oops.With("column", "id").Wrap(err)
	}
	if t.UserID, err = ulid.Parse(userID); err != nil {
		return nil, oops.With("column", "user_id").Wrap(err)
	}
	t.Bucket = task.Bucket(bucket)
	t.Position = position
	t.Color = color
	t.DoneAt = doneAt
	return &t, nil
}
