// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/auth"
	"github.com/dayplan/dayplan/pkg/errutil"
)

// Defaults for Async.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultQueueDepth = 256
)

// ErrClosed is returned by Notify after Close.
var ErrClosed = oops.Code("NOTIFY_CLOSED").Errorf("notifier is closed")

type delivery struct {
	email string
	code  string
}

// Async hands deliveries to a background worker so callers never wait on the
// downstream notifier. Each delivery runs with its own timeout, detached from
// the caller's context.
type Async struct {
	next    auth.Notifier
	timeout time.Duration
	logger  *slog.Logger

	queue   chan delivery
	closeMu sync.RWMutex
	closed  bool
	done    chan struct{}

	outcomes *prometheus.CounterVec
}

var _ auth.Notifier = (*Async)(nil)

// AsyncOption configures an Async notifier.
type AsyncOption func(*Async)

// WithTimeout bounds each delivery.
func WithTimeout(d time.Duration) AsyncOption {
	return func(a *Async) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithQueueDepth sets how many deliveries may wait for the worker.
func WithQueueDepth(n int) AsyncOption {
	return func(a *Async) {
		if n > 0 {
			a.queue = make(chan delivery, n)
		}
	}
}

// WithLogger sets the logger used for failed deliveries.
func WithLogger(l *slog.Logger) AsyncOption {
	return func(a *Async) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRegisterer registers delivery counters with reg.
func WithRegisterer(reg prometheus.Registerer) AsyncOption {
	return func(a *Async) {
		a.outcomes = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dayplan_notify_deliveries_total",
			Help: "Total number of reset code deliveries by outcome",
		}, []string{"outcome"})
	}
}

// NewAsync wraps next and starts the delivery worker. Close must be called
// to stop it.
func NewAsync(next auth.Notifier, opts ...AsyncOption) (*Async, error) {
	if next == nil {
		return nil, oops.Code("NOTIFY_INVALID").Errorf("notifier is required")
	}
	a := &Async{
		next:    next,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		queue:   make(chan delivery, DefaultQueueDepth),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.run()
	return a, nil
}

// Notify enqueues a delivery. A full queue drops the delivery and returns
// an error so the caller can log it.
func (a *Async) Notify(_ context.Context, email, code string) error {
	a.closeMu.RLock()
	defer a.closeMu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- delivery{email: email, code: code}:
		return nil
	default:
		a.record("dropped")
		return oops.Code("NOTIFY_QUEUE_FULL").
			With("queue_depth", cap(a.queue)).
			Errorf("notification queue is full")
	}
}

// Close stops accepting deliveries and waits for queued ones to finish or
// for ctx to end, whichever comes first.
func (a *Async) Close(ctx context.Context) error {
	a.closeMu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.closeMu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return oops.Code("NOTIFY_DRAIN_TIMEOUT").
			With("pending", len(a.queue)).
			Wrap(ctx.Err())
	}
}

func (a *Async) run() {
	defer close(a.done)
	for d := range a.queue {
		a.deliver(d)
	}
}

func (a *Async) deliver(d delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.next.Notify(ctx, d.email, d.code); err != nil {
		a.record("failed")
		errutil.LogErrorContext(ctx, a.logger, "reset code delivery failed",
			oops.Code("NOTIFY_DELIVERY_FAILED").With("email", d.email).Wrap(err))
		return
	}
	a.record("delivered")
}

func (a *Async) record(outcome string) {
	if a.outcomes != nil {
		a.outcomes.WithLabelValues(outcome).Inc()
	}
}
