package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/felixgeelhaar/plancraft/internal/errors"
)

func TestTransitionMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTransition("task", "in_progress")
	m.RecordTransition("task", "in_progress")
	m.RecordTransition("phase", "completed")

	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("task", "in_progress")); got != 2 {
		t.Errorf("task transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("phase", "completed")); got != 1 {
		t.Errorf("phase transitions = %v, want 1", got)
	}
}

func TestRecordRejection(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRejection("start_task", errors.NewDependencyPendingError("phase-2", "phase-1"))
	m.RecordRejection("start_task", fmt.Errorf("plain"))
	m.RecordRejection("start_task", nil)

	if got := testutil.ToFloat64(m.Rejections.WithLabelValues("start_task", "invalid_state")); got != 1 {
		t.Errorf("invalid_state rejections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Rejections.WithLabelValues("start_task", "unknown")); got != 1 {
		t.Errorf("unknown rejections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Errors.WithLabelValues("STATE-002", "engine")); got != 1 {
		t.Errorf("STATE-002 errors = %v, want 1", got)
	}
}

func TestRecordCheckpoint(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordCheckpoint("create", 20*time.Millisecond, 2048, nil)
	m.RecordCheckpoint("restore", 5*time.Millisecond, 0, errors.NewCheckpointNotFoundError("cp-1"))

	if got := testutil.ToFloat64(m.CheckpointOps.WithLabelValues("create", "true")); got != 1 {
		t.Errorf("create ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CheckpointOps.WithLabelValues("restore", "false")); got != 1 {
		t.Errorf("restore failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Errors.WithLabelValues("NF-005", "checkpoint")); got != 1 {
		t.Errorf("NF-005 errors = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.CheckpointBytes); n != 1 {
		t.Errorf("checkpoint size series = %d, want 1", n)
	}
}

func TestRecordProgress(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordProgress("plan-a", 1, 3, 33.3)
	m.RecordProgress("plan-a", 2, 3, 66.6)

	if got := testutil.ToFloat64(m.TasksCompleted.WithLabelValues("plan-a")); got != 2 {
		t.Errorf("completed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PercentComplete.WithLabelValues("plan-a")); got != 66.6 {
		t.Errorf("percent = %v, want 66.6", got)
	}
}

func TestRecordError(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordError("store", nil)
	m.RecordError("store", fmt.Errorf("disk"))

	if got := testutil.ToFloat64(m.Errors.WithLabelValues("unknown", "store")); got != 1 {
		t.Errorf("unknown errors = %v, want 1", got)
	}
}
