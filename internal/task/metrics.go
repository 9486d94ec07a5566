// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package task

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dayplan/dayplan/pkg/errutil"
)

// Metrics records task engine operations.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates task metrics registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dayplan_task_operations_total",
			Help: "Total number of task engine operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dayplan_task_operation_duration_seconds",
			Help:    "Histogram of task engine operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// observe is safe on a nil receiver so metrics stay optional.
func (m *Metrics) observe(operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(errutil.KindOf(err))
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
