package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/plancraft/internal/errors"
)

// Metrics holds all Prometheus metrics for plancraft
type Metrics struct {
	// State machine metrics
	Transitions *prometheus.CounterVec
	Rejections  *prometheus.CounterVec

	// Scheduler metrics
	NextTaskLookups *prometheus.CounterVec

	// Checkpoint metrics
	CheckpointOps      *prometheus.CounterVec
	CheckpointDuration *prometheus.HistogramVec
	CheckpointBytes    prometheus.Histogram

	// Progress gauges, one series per plan
	TasksTotal      *prometheus.GaugeVec
	TasksCompleted  *prometheus.GaugeVec
	PercentComplete *prometheus.GaugeVec

	// HTTP read surface
	HTTPRequests *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plancraft_transitions_total",
				Help: "Total number of applied status transitions",
			},
			[]string{"entity", "to"},
		),
		Rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plancraft_operations_rejected_total",
				Help: "Total number of engine operations rejected with an error",
			},
			[]string{"operation", "error_kind"},
		),

		NextTaskLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plancraft_next_task_lookups_total",
				Help: "Total number of next-task lookups by outcome",
			},
			[]string{"outcome"},
		),

		CheckpointOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plancraft_checkpoint_operations_total",
				Help: "Total number of checkpoint operations",
			},
			[]string{"operation", "success"},
		),
		CheckpointDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plancraft_checkpoint_duration_seconds",
				Help:    "Checkpoint operation duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"operation"},
		),
		CheckpointBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plancraft_checkpoint_size_bytes",
				Help:    "Size of written checkpoints in bytes",
				Buckets: prometheus.ExponentialBuckets(512, 4, 8),
			},
		),

		TasksTotal: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plancraft_plan_tasks",
				Help: "Number of tasks in a plan",
			},
			[]string{"plan"},
		),
		TasksCompleted: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plancraft_plan_tasks_completed",
				Help: "Number of completed tasks in a plan",
			},
			[]string{"plan"},
		),
		PercentComplete: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plancraft_plan_percent_complete",
				Help: "Plan completion percentage",
			},
			[]string{"plan"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plancraft_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"route", "code"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plancraft_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// RecordTransition counts one applied status transition.
func (m *Metrics) RecordTransition(entity, to string) {
	m.Transitions.WithLabelValues(entity, to).Inc()
}

// RecordRejection counts a failed engine operation and its error code.
func (m *Metrics) RecordRejection(operation string, err error) {
	if err == nil {
		return
	}
	kind := string(errors.KindOf(err))
	if kind == "" {
		kind = "unknown"
	}
	m.Rejections.WithLabelValues(operation, kind).Inc()
	m.RecordError("engine", err)
}

// RecordCheckpoint records the outcome of a checkpoint operation. size is
// only observed for successful writes.
func (m *Metrics) RecordCheckpoint(operation string, d time.Duration, size int, err error) {
	m.CheckpointOps.WithLabelValues(operation, strconv.FormatBool(err == nil)).Inc()
	m.CheckpointDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		m.RecordError("checkpoint", err)
		return
	}
	if operation == "create" && size > 0 {
		m.CheckpointBytes.Observe(float64(size))
	}
}

// RecordProgress sets the progress gauges for a plan.
func (m *Metrics) RecordProgress(plan string, completed, total int, percent float64) {
	m.TasksTotal.WithLabelValues(plan).Set(float64(total))
	m.TasksCompleted.WithLabelValues(plan).Set(float64(completed))
	m.PercentComplete.WithLabelValues(plan).Set(percent)
}

// RecordError counts err under its error code, or "unknown" for plain errors.
func (m *Metrics) RecordError(component string, err error) {
	if err == nil {
		return
	}
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "unknown"
	}
	m.Errors.WithLabelValues(code, component).Inc()
}
