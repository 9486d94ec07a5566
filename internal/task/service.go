// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dayplan/dayplan/internal/core"
	"github.com/dayplan/dayplan/pkg/errutil"
)

var tracer = otel.Tracer("github.com/dayplan/dayplan/internal/task")

// lockAttempts bounds how often lockTask chases a task that keeps moving
// between buckets while it waits for a lock.
const lockAttempts = 3

// Service is the task ordering engine. It keeps the positions of every
// (user, bucket) partition dense: the n tasks of a bucket occupy exactly
// positions 0 through n-1.
type Service struct {
	repo    Repository
	tx      Transactor
	clock   core.Clock
	kind    BucketKind
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for timestamps.
func WithClock(c core.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithBucketKind restricts the service to one bucket semantic.
func WithBucketKind(k BucketKind) Option {
	return func(s *Service) { s.kind = k }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a task Service.
func NewService(repo Repository, tx Transactor, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("TASK_SERVICE_INVALID").Errorf("task repository is required")
	}
	if tx == nil {
		return nil, oops.Code("TASK_SERVICE_INVALID").Errorf("transactor is required")
	}
	s := &Service{
		repo:   repo,
		tx:     tx,
		clock:  core.SystemClock{},
		kind:   BucketKindDay,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := ParseBucketKind(string(s.kind)); err != nil {
		return nil, err
	}
	return s, nil
}

// BucketKind returns the bucket semantic this service accepts.
func (s *Service) BucketKind() BucketKind { return s.kind }

// Create appends a task to the end of its bucket.
func (s *Service) Create(ctx context.Context, userID ulid.ULID, d Draft) (created *Task, err error) {
	ctx, finish := s.begin(ctx, "create", userID)
	defer func() { finish(err) }()

	content, err := ValidateContent(d.Content)
	if err != nil {
		return nil, err
	}
	if err = s.checkBucket(d.Bucket); err != nil {
		return nil, err
	}
	if err = ValidateColor(d.Color); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	t := &Task{
		ID:          core.NewULIDAt(now),
		UserID:      userID,
		Content:     content,
		Bucket:      d.Bucket,
		Color:       d.Color,
		Reoccurring: d.Reoccurring,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockBuckets(ctx, userID, t.Bucket); err != nil {
			return err
		}
		n, err := s.repo.Count(ctx, userID, t.Bucket)
		if err != nil {
			return err
		}
		t.Position = n
		return s.repo.Create(ctx, t)
	})
	if err != nil {
		return nil, wrapFailure("TASK_CREATE_FAILED", err, userID)
	}
	return t, nil
}

// Get returns one of the user's tasks.
func (s *Service) Get(ctx context.Context, userID, id ulid.ULID) (found *Task, err error) {
	ctx, finish := s.begin(ctx, "get", userID)
	defer func() { finish(err) }()

	found, err = s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, wrapFailure("TASK_GET_FAILED", err, userID)
	}
	return found, nil
}

// List returns the user's tasks ordered by bucket and position.
func (s *Service) List(ctx context.Context, userID ulid.ULID, f Filter) (tasks []*Task, err error) {
	ctx, finish := s.begin(ctx, "list", userID)
	defer func() { finish(err) }()

	if f.Bucket != nil {
		if err = s.checkBucket(*f.Bucket); err != nil {
			return nil, err
		}
	}
	tasks, err = s.repo.List(ctx, userID, f)
	if err != nil {
		return nil, wrapFailure("TASK_LIST_FAILED", err, userID)
	}
	return tasks, nil
}

// Delete removes a task and closes the gap it leaves in its bucket.
func (s *Service) Delete(ctx context.Context, userID, id ulid.ULID) (deleted *Task, err error) {
	ctx, finish := s.begin(ctx, "delete", userID)
	defer func() { finish(err) }()

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		t, err := s.lockTask(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, userID, id); err != nil {
			return err
		}
		if err := s.repo.Shift(ctx, userID, t.Bucket, t.Position+1, -1, t.ID); err != nil {
			return err
		}
		deleted = t
		return nil
	})
	if err != nil {
		return nil, wrapFailure("TASK_DELETE_FAILED", err, userID)
	}
	return deleted, nil
}

// UpdateFields applies a partial update. Completion follows the patch:
// Done=true stamps DoneAt with the current time, anything else clears both.
// Position and bucket are written as given with no compensating shift; use
// Move to relocate a task without breaking bucket density.
func (s *Service) UpdateFields(ctx context.Context, userID, id ulid.ULID, p Patch) (updated *Task, err error) {
	ctx, finish := s.begin(ctx, "update", userID)
	defer func() { finish(err) }()

	if err = s.validatePatch(&p); err != nil {
		return nil, err
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		var t *Task
		var err error
		if p.Bucket != nil || p.Position != nil {
			var extra []Bucket
			if p.Bucket != nil {
				extra = append(extra, *p.Bucket)
			}
			t, err = s.lockTask(ctx, userID, id, extra...)
		} else {
			t, err = s.repo.Get(ctx, userID, id)
		}
		if err != nil {
			return err
		}

		now := s.clock.Now()
		applyPatch(t, p, now)
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, wrapFailure("TASK_UPDATE_FAILED", err, userID)
	}
	return updated, nil
}

func applyPatch(t *Task, p Patch, now time.Time) {
	if p.Content != nil {
		t.Content = *p.Content
	}
	if p.Bucket != nil {
		t.Bucket = *p.Bucket
	}
	if p.Reoccurring != nil {
		t.Reoccurring = *p.Reoccurring
	}
	if p.Position != nil {
		t.Position = *p.Position
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Done != nil && *p.Done {
		t.Done = true
		t.DoneAt = &now
	} else {
		t.Done = false
		t.DoneAt = nil
	}
	t.UpdatedAt = now
}

func (s *Service) validatePatch(p *Patch) error {
	if p.Content != nil {
		content, err := ValidateContent(*p.Content)
		if err != nil {
			return err
		}
		p.Content = &content
	}
	if p.Bucket != nil {
		if err := s.checkBucket(*p.Bucket); err != nil {
			return err
		}
	}
	if p.Position != nil {
		if err := ValidatePosition(*p.Position); err != nil {
			return err
		}
	}
	if p.Color != nil {
		if err := ValidateColor(*p.Color); err != nil {
			return err
		}
	}
	return nil
}

// BulkReposition overwrites positions item by item. Each item commits or
// fails on its own, and the caller is responsible for supplying a
// self-consistent ordering.
func (s *Service) BulkReposition(ctx context.Context, userID ulid.ULID, items []Reposition) []RepositionResult {
	ctx, finish := s.begin(ctx, "bulk_reposition", userID)
	defer finish(nil)

	results := make([]RepositionResult, len(items))
	for i, item := range items {
		t, err := s.repositionOne(ctx, userID, item)
		if err != nil {
			s.logger.DebugContext(ctx, "reposition item failed",
				"user_id", userID.String(),
				"task_id", item.ID.String(),
				"error", err)
		}
		results[i] = RepositionResult{ID: item.ID, Task: t, Err: err}
	}
	return results
}

func (s *Service) repositionOne(ctx context.Context, userID ulid.ULID, item Reposition) (*Task, error) {
	if err := ValidatePosition(item.Position); err != nil {
		return nil, err
	}
	var extra []Bucket
	if item.Bucket != nil {
		if err := s.checkBucket(*item.Bucket); err != nil {
			return nil, err
		}
		extra = append(extra, *item.Bucket)
	}

	var out *Task
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		t, err := s.lockTask(ctx, userID, item.ID, extra...)
		if err != nil {
			return err
		}
		t.Position = item.Position
		if item.Bucket != nil {
			t.Bucket = *item.Bucket
		}
		t.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, wrapFailure("TASK_REPOSITION_FAILED", err, userID)
	}
	return out, nil
}

// Move relocates a task to newPosition in newBucket. In one transaction it
// closes the gap in the source bucket, then opens a slot in the destination
// computed against the state after that close, then places the task. Moving
// within one bucket therefore accepts positions 0 through n-1.
func (s *Service) Move(ctx context.Context, userID, id ulid.ULID, newBucket Bucket, newPosition int) (moved *Task, err error) {
	ctx, finish := s.begin(ctx, "move", userID)
	defer func() { finish(err) }()

	if err = s.checkBucket(newBucket); err != nil {
		return nil, err
	}
	if err = ValidatePosition(newPosition); err != nil {
		return nil, err
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		t, err := s.lockTask(ctx, userID, id, newBucket)
		if err != nil {
			return err
		}

		room, err := s.repo.Count(ctx, userID, newBucket)
		if err != nil {
			return err
		}
		if newBucket == t.Bucket {
			room--
		}
		if newPosition > room {
			return oops.Code("TASK_INVALID_POSITION").
				With("position", newPosition).
				With("max", room).
				Wrapf(errutil.ErrValidation, "position must be between 0 and %d", room)
		}

		if err := s.repo.Shift(ctx, userID, t.Bucket, t.Position+1, -1, t.ID); err != nil {
			return err
		}
		if err := s.repo.Shift(ctx, userID, newBucket, newPosition, 1, t.ID); err != nil {
			return err
		}

		t.Bucket = newBucket
		t.Position = newPosition
		t.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		moved = t
		return nil
	})
	if err != nil {
		return nil, wrapFailure("TASK_MOVE_FAILED", err, userID)
	}
	return moved, nil
}

// lockTask loads a task and takes the locks of its bucket plus extra. A task
// moved by a concurrent transaction while this one waited is reloaded so the
// caller always holds the lock of the bucket the task is actually in.
func (s *Service) lockTask(ctx context.Context, userID, id ulid.ULID, extra ...Bucket) (*Task, error) {
	t, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	for range lockAttempts {
		buckets := append([]Bucket{t.Bucket}, extra...)
		if err := s.repo.LockBuckets(ctx, userID, buckets...); err != nil {
			return nil, err
		}
		current, err := s.repo.Get(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if current.Bucket == t.Bucket {
			return current, nil
		}
		t = current
	}
	return nil, oops.Code("TASK_CONFLICT").
		With("task_id", id.String()).
		Wrapf(errutil.ErrConflict, "task changed bucket while being locked")
}

func (s *Service) checkBucket(b Bucket) error {
	if _, err := ParseBucket(string(b)); err != nil {
		return err
	}
	if b.Kind() != s.kind {
		return oops.Code("TASK_INVALID_BUCKET").
			With("bucket", string(b)).
			With("kind", string(s.kind)).
			Wrapf(errutil.ErrValidation, "this deployment schedules by %s buckets", s.kind)
	}
	return nil
}

func (s *Service) begin(ctx context.Context, op string, userID ulid.ULID) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "task."+op, trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	start := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, errutil.Code(err))
		}
		span.End()
		s.metrics.observe(op, time.Since(start), err)
	}
}

// wrapFailure tags storage and unexpected errors with the operation code.
// Domain errors already carry a precise code and pass through unchanged.
func wrapFailure(code string, err error, userID ulid.ULID) error {
	switch errutil.KindOf(err) {
	case errutil.KindStorage, errutil.KindInternal:
		return oops.Code(code).With("user_id", userID.String()).Wrap(err)
	}
	return err
}
