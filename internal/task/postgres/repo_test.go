// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplan/dayplan/internal/store"
	"github.com/dayplan/dayplan/internal/task"
	"github.com/dayplan/dayplan/pkg/errutil"
)

var columns = []string{
	"id", "user_id", "content", "bucket", "position", "done", "done_at",
	"color", "reoccurring", "created_at", "updated_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func sampleTask() *task.Task {
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	return &task.Task{
		ID:        ulid.Make(),
		UserID:    ulid.Make(),
		Content:   "water plants",
		Bucket:    "day:2",
		Position:  1,
		Color:     3,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func taskRow(t *task.Task) []any {
	return []any{
		t.ID.String(), t.UserID.String(), t.Content, string(t.Bucket), t.Position, t.Done, t.DoneAt,
		t.Color, t.Reoccurring, t.CreatedAt, t.UpdatedAt,
	}
}

func TestTaskRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)
	tk := sampleTask()

	mock.ExpectExec(`INSERT INTO tasks`).
		WithArgs(tk.ID.String(), tk.UserID.String(), tk.Content, "day:2", 1, false,
			pgxmock.AnyArg(), 3, false, tk.CreatedAt, tk.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), tk))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_Create_StorageError(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)

	mock.ExpectExec(`INSERT INTO tasks`).WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), sampleTask())
	errutil.AssertErrorCode(t, err, "TASK_INSERT_FAILED")
	errutil.AssertErrorKind(t, err, errutil.KindStorage)
}

func TestTaskRepository_Get(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)
	tk := sampleTask()
	doneAt := tk.CreatedAt.Add(time.Hour)
	tk.Done, tk.DoneAt = true, &doneAt

	mock.ExpectQuery(`SELECT .+ FROM tasks\s+WHERE id = \$1 AND user_id = \$2`).
		WithArgs(tk.ID.String(), tk.UserID.String()).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(taskRow(tk)...))

	got, err := repo.Get(context.Background(), tk.UserID, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_Get_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)
	id, userID := ulid.Make(), ulid.Make()

	mock.ExpectQuery(`SELECT .+ FROM tasks`).
		WithArgs(id.String(), userID.String()).
		WillReturnRows(pgxmock.NewRows(columns))

	_, err := repo.Get(context.Background(), userID, id)
	errutil.AssertErrorCode(t, err, "TASK_NOT_FOUND")
	errutil.AssertErrorKind(t, err, errutil.KindNotFound)
}

func TestTaskRepository_Get_CorruptID(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)
	tk := sampleTask()
	row := taskRow(tk)
	row[0] = "not-a-ulid"

	mock.ExpectQuery(`SELECT .+ FROM tasks`).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(row...))

	_, err := repo.Get(context.Background(), tk.UserID, tk.ID)
	errutil.AssertErrorKind(t, err, errutil.KindStorage)
}

func TestTaskRepository_List(t *testing.T) {
	first, second := sampleTask(), sampleTask()
	second.UserID = first.UserID
	second.Position = 2
	done := true
	bucket := task.Bucket("day:2")

	tests := []struct {
		name   string
		filter task.Filter
		query  string
		args   []any
	}{
		{"no filter", task.Filter{}, `WHERE user_id = \$1 ORDER BY bucket, position, id`, []any{first.UserID.String()}},
		{"done", task.Filter{Done: &done}, `AND done = \$2 ORDER BY`, []any{first.UserID.String(), true}},
		{"bucket", task.Filter{Bucket: &bucket}, `AND bucket = \$2 ORDER BY`, []any{first.UserID.String(), "day:2"}},
		{"both", task.Filter{Done: &done, Bucket: &bucket}, `AND done = \$2 AND bucket = \$3 ORDER BY`, []any{first.UserID.String(), true, "day:2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			repo := NewTaskRepository(mock)

			mock.ExpectQuery(tt.query).
				WithArgs(tt.args...).
				WillReturnRows(pgxmock.NewRows(columns).AddRow(taskRow(first)...).AddRow(taskRow(second)...))

			got, err := repo.List(context.Background(), first.UserID, tt.filter)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, first.ID, got[0].ID)
			assert.Equal(t, 2, got[1].Position)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTaskRepository_Count(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)
	userID := ulid.Make()

	mock.ExpectQuery(`SELECT count\(\*\) FROM tasks`).
		WithArgs(userID.String(), "day:5").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.Count(context.Background(), userID, "day:5")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestTaskRepository_Update(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)
	tk := sampleTask()

	mock.ExpectExec(`UPDATE tasks SET`).
		WithArgs(tk.ID.String(), tk.UserID.String(), tk.Content, "day:2", 1, false,
			pgxmock.AnyArg(), 3, false, tk.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.Update(context.Background(), tk))

	mock.ExpectExec(`UPDATE tasks SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := repo.Update(context.Background(), tk)
	errutil.AssertErrorCode(t, err, "TASK_NOT_FOUND")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)
	id, userID := ulid.Make(), ulid.Make()

	mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1 AND user_id = \$2`).
		WithArgs(id.String(), userID.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), userID, id))

	mock.ExpectExec(`DELETE FROM tasks`).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	errutil.AssertErrorKind(t, repo.Delete(context.Background(), userID, id), errutil.KindNotFound)
}

func TestTaskRepository_Shift(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)
	userID, exclude := ulid.Make(), ulid.Make()

	mock.ExpectExec(`UPDATE tasks SET position = position \+ \$4`).
		WithArgs(userID.String(), "day:1", 3, -1, exclude.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	require.NoError(t, repo.Shift(context.Background(), userID, "day:1", 3, -1, exclude))

	mock.ExpectExec(`UPDATE tasks SET position`).WillReturnError(errors.New("timeout"))
	err := repo.Shift(context.Background(), userID, "day:1", 0, 1, exclude)
	errutil.AssertErrorCode(t, err, "TASK_WRITE_FAILED")
	errutil.AssertErrorContext(t, err, "delta", 1)
}

func TestTaskRepository_LockBuckets_SortedAndDeduplicated(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)
	userID := ulid.Make()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(userID.String() + "/day:0").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(userID.String() + "/day:3").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	err := store.NewTransactor(mock).InTransaction(context.Background(), func(ctx context.Context) error {
		return repo.LockBuckets(ctx, userID, "day:3", "day:0", "day:3")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_LockBuckets_RequiresTransaction(t *testing.T) {
	repo := NewTaskRepository(newMock(t))
	err := repo.LockBuckets(context.Background(), ulid.Make(), "day:0")
	errutil.AssertErrorCode(t, err, "TASK_LOCK_OUTSIDE_TX")
}
