// Package engine is the caller-facing facade over a single plan.
//
// An Engine owns one plan behind a read/write mutex. Mutations take the write
// lock; reads take the read lock and hand out deep copies, so callers never
// observe or hold references into the live plan. Checkpoint I/O is performed
// outside the lock on a private snapshot.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/plancraft/internal/checkpoint"
	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
	"github.com/felixgeelhaar/plancraft/internal/log"
	"github.com/felixgeelhaar/plancraft/internal/metrics"
	"github.com/felixgeelhaar/plancraft/internal/plan"
	"github.com/felixgeelhaar/plancraft/internal/progress"
	"github.com/felixgeelhaar/plancraft/internal/scheduler"
	"github.com/felixgeelhaar/plancraft/internal/telemetry"
	"github.com/felixgeelhaar/plancraft/internal/workspace"
)

// Engine serializes access to one plan.
type Engine struct {
	mu   sync.RWMutex
	plan *plan.Plan
	id   domain.PlanID

	checkpoints *checkpoint.Manager
	logger      *log.Logger
	metrics     *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithCheckpoints enables checkpoint and artifact operations.
func WithCheckpoints(m *checkpoint.Manager) Option {
	return func(e *Engine) { e.checkpoints = m }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records operations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func newEngine(opts []Option) *Engine {
	e := &Engine{logger: log.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// New wraps an existing plan. The engine takes ownership of p.
func New(p *plan.Plan, opts ...Option) *Engine {
	e := newEngine(opts)
	e.plan = p
	e.id = p.ID
	return e
}

// Create starts a new, empty plan.
func Create(id domain.PlanID, name, description string, opts ...Option) (*Engine, error) {
	p, err := plan.New(id, name, description)
	if err != nil {
		return nil, err
	}
	return New(p, opts...), nil
}

// Open restores the newest checkpoint of a workspace.
func Open(ctx context.Context, ws string, opts ...Option) (*Engine, error) {
	e := newEngine(opts)
	if e.checkpoints == nil {
		return nil, fmt.Errorf("engine: open %s: no checkpoint manager configured", ws)
	}
	id, err := e.checkpoints.Latest(ctx, ws)
	if err != nil {
		return nil, err
	}
	p, err := e.checkpoints.Restore(ctx, ws, id)
	if err != nil {
		return nil, err
	}
	e.plan = p
	e.id = p.ID
	e.logger.DebugContext(ctx, "plan opened", "plan_id", p.ID, "checkpoint_id", id)
	return e, nil
}

// ID returns the plan id.
func (e *Engine) ID() domain.PlanID { return e.id }

// Workspace returns the workspace reference, empty until the first checkpoint.
func (e *Engine) Workspace() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.plan.Workspace
}

// mutate runs fn under the write lock and handles logging, metrics, and
// tracing for the operation.
func (e *Engine) mutate(ctx context.Context, op string, fn func(p *plan.Plan) ([]plan.Transition, error)) (trs []plan.Transition, err error) {
	ctx, span := telemetry.StartOperationSpan(ctx, e.id.String(), op)
	defer func() {
		telemetry.End(span, err, attribute.Int("plancraft.transitions", len(trs)))
	}()

	e.mu.Lock()
	trs, err = fn(e.plan)
	var pr progress.Progress
	if err == nil {
		pr = progress.Compute(e.plan)
	}
	e.mu.Unlock()

	logger := e.logger.WithContext(ctx)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordRejection(op, err)
		}
		logger.WithError(err).Debug("operation rejected", "plan_id", e.id, "operation", op)
		return nil, err
	}

	for _, tr := range trs {
		logger.Debug("status transition",
			"plan_id", e.id, "operation", op,
			"entity", tr.Entity, "id", tr.ID, "from", tr.From, "to", tr.To, "reason", tr.Reason)
		if e.metrics != nil {
			e.metrics.RecordTransition(tr.Entity, tr.To)
		}
	}
	if e.metrics != nil {
		e.metrics.RecordProgress(e.id.String(), pr.TasksCompleted, pr.TotalTasks, pr.PercentComplete)
	}
	return trs, nil
}

// CreatePhase appends a phase to the plan.
func (e *Engine) CreatePhase(ctx context.Context, spec plan.PhaseSpec) (*plan.Phase, error) {
	var out *plan.Phase
	_, err := e.mutate(ctx, "create_phase", func(p *plan.Plan) ([]plan.Transition, error) {
		ph, err := p.CreatePhase(spec)
		if err != nil {
			return nil, err
		}
		out = ph.Clone()
		return nil, nil
	})
	return out, err
}

// CreateTask appends a task to a phase.
func (e *Engine) CreateTask(ctx context.Context, phaseID domain.PhaseID, spec plan.TaskSpec) (*plan.Task, error) {
	var out *plan.Task
	_, err := e.mutate(ctx, "create_task", func(p *plan.Plan) ([]plan.Transition, error) {
		t, err := p.CreateTask(phaseID, spec)
		if err != nil {
			return nil, err
		}
		out = t.Clone()
		return nil, nil
	})
	return out, err
}

// AddSubtask adds a subtask to a task.
func (e *Engine) AddSubtask(ctx context.Context, taskID domain.TaskID, spec plan.SubtaskSpec) (*plan.Subtask, error) {
	var out *plan.Subtask
	_, err := e.mutate(ctx, "add_subtask", func(p *plan.Plan) ([]plan.Transition, error) {
		st, err := p.AddSubtask(taskID, spec)
		if err != nil {
			return nil, err
		}
		out = st.Clone()
		return nil, nil
	})
	return out, err
}

// StartTask moves a pending task to in_progress.
func (e *Engine) StartTask(ctx context.Context, id domain.TaskID) ([]plan.Transition, error) {
	return e.mutate(ctx, "start_task", func(p *plan.Plan) ([]plan.Transition, error) {
		return p.StartTask(id)
	})
}

// CompleteTask records result and closes the task.
func (e *Engine) CompleteTask(ctx context.Context, id domain.TaskID, result plan.TaskResult) ([]plan.Transition, error) {
	return e.mutate(ctx, "complete_task", func(p *plan.Plan) ([]plan.Transition, error) {
		return p.CompleteTask(id, result)
	})
}

// ReopenTask returns a failed task to pending.
func (e *Engine) ReopenTask(ctx context.Context, id domain.TaskID, reason string) ([]plan.Transition, error) {
	return e.mutate(ctx, "reopen_task", func(p *plan.Plan) ([]plan.Transition, error) {
		return p.ReopenTask(id, reason)
	})
}

// StartSubtask moves a pending subtask to in_progress.
func (e *Engine) StartSubtask(ctx context.Context, id domain.SubtaskID) ([]plan.Transition, error) {
	return e.mutate(ctx, "start_subtask", func(p *plan.Plan) ([]plan.Transition, error) {
		return p.StartSubtask(id)
	})
}

// CompleteSubtask completes an in-progress subtask.
func (e *Engine) CompleteSubtask(ctx context.Context, id domain.SubtaskID) ([]plan.Transition, error) {
	return e.mutate(ctx, "complete_subtask", func(p *plan.Plan) ([]plan.Transition, error) {
		return p.CompleteSubtask(id)
	})
}

// BlockPhase blocks a phase and its dependents.
func (e *Engine) BlockPhase(ctx context.Context, id domain.PhaseID, reason string) ([]plan.Transition, error) {
	return e.mutate(ctx, "block_phase", func(p *plan.Plan) ([]plan.Transition, error) {
		return p.BlockPhase(id, reason)
	})
}

// UnblockPhase releases a blocked phase and the dependents it blocked.
func (e *Engine) UnblockPhase(ctx context.Context, id domain.PhaseID) ([]plan.Transition, error) {
	return e.mutate(ctx, "unblock_phase", func(p *plan.Plan) ([]plan.Transition, error) {
		return p.UnblockPhase(id)
	})
}

// Apply adds every phase, task, and subtask of def. Either the whole
// definition is applied or the plan is left unchanged.
func (e *Engine) Apply(ctx context.Context, def *plan.Definition) (map[string]domain.PhaseID, error) {
	var assigned map[string]domain.PhaseID
	_, err := e.mutate(ctx, "apply_definition", func(p *plan.Plan) ([]plan.Transition, error) {
		draft := p.Clone()
		a, err := def.Apply(draft)
		if err != nil {
			return nil, err
		}
		*p = *draft
		assigned = a
		return nil, nil
	})
	return assigned, err
}

// Snapshot returns a deep copy of the plan.
func (e *Engine) Snapshot() *plan.Plan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.plan.Clone()
}

// Phase returns a copy of a phase.
func (e *Engine) Phase(id domain.PhaseID) (*plan.Phase, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ph, err := e.plan.Phase(id)
	if err != nil {
		return nil, err
	}
	return ph.Clone(), nil
}

// Task returns a copy of a task.
func (e *Engine) Task(id domain.TaskID) (*plan.Task, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, err := e.plan.Task(id)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// Subtask returns a copy of a subtask.
func (e *Engine) Subtask(id domain.SubtaskID) (*plan.Subtask, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, err := e.plan.Subtask(id)
	if err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

// NextTask returns a copy of the next task to run, if any.
func (e *Engine) NextTask(ctx context.Context) (*plan.Task, bool) {
	d := e.Decide(ctx)
	return d.Task, d.Task != nil
}

// Decide runs the scheduler and returns the decision with its explanation.
func (e *Engine) Decide(ctx context.Context) scheduler.Decision {
	_, span := telemetry.StartOperationSpan(ctx, e.id.String(), "next_task")
	defer span.End()

	e.mu.RLock()
	d := scheduler.Decide(e.plan)
	if d.Task != nil {
		d.Task = d.Task.Clone()
	}
	e.mu.RUnlock()

	outcome := "found"
	if d.Task == nil {
		outcome = string(d.Wait)
	}
	if e.metrics != nil {
		e.metrics.NextTaskLookups.WithLabelValues(outcome).Inc()
	}
	telemetry.RecordSuccess(span, attribute.String("plancraft.outcome", outcome))
	return d
}

// Finished reports whether every phase is completed.
func (e *Engine) Finished() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return scheduler.Finished(e.plan)
}

// Progress returns overall completion figures.
func (e *Engine) Progress() progress.Progress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return progress.Compute(e.plan)
}

// Report returns the structured report.
func (e *Engine) Report() progress.Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return progress.BuildReport(e.plan)
}

// GenerateReport returns the plain-text report.
func (e *Engine) GenerateReport() string {
	return e.Report().String()
}

func (e *Engine) requireCheckpoints() error {
	if e.checkpoints == nil {
		return errors.Storage(errors.ErrCodeStoreUnavailable, "no workspace store configured", nil)
	}
	return nil
}

// CreateCheckpoint snapshots the plan and persists it. The plan stays
// readable and writable while the checkpoint is written.
func (e *Engine) CreateCheckpoint(ctx context.Context, aux map[string]string) (sum checkpoint.Summary, err error) {
	if err := e.requireCheckpoints(); err != nil {
		return checkpoint.Summary{}, err
	}

	snap := e.Snapshot()

	ctx, span := telemetry.StartCheckpointSpan(ctx, e.id.String(), "create")
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordCheckpoint("create", time.Since(start), sum.Size, err)
		}
		telemetry.End(span, err, telemetry.AttrCheckpointID.String(sum.ID.String()))
	}()

	sum, err = e.checkpoints.Create(ctx, snap, aux)
	if err != nil {
		e.logger.LogError(ctx, "checkpoint failed", err)
		return checkpoint.Summary{}, err
	}

	e.mu.Lock()
	if e.plan.Workspace == "" {
		e.plan.Workspace = snap.Workspace
	}
	e.mu.Unlock()
	return sum, nil
}

// RestoreCheckpoint replaces the plan with the state stored in checkpoint
// id. On error the current plan is kept.
func (e *Engine) RestoreCheckpoint(ctx context.Context, id domain.CheckpointID) (err error) {
	if err := e.requireCheckpoints(); err != nil {
		return err
	}

	ctx, span := telemetry.StartCheckpointSpan(ctx, e.id.String(), "restore")
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordCheckpoint("restore", time.Since(start), 0, err)
		}
		telemetry.End(span, err, telemetry.AttrCheckpointID.String(id.String()))
	}()

	ws := e.Workspace()
	if ws == "" {
		return errors.NewCheckpointNotFoundError(id.String())
	}
	restored, err := e.checkpoints.Restore(ctx, ws, id)
	if err != nil {
		return err
	}
	if restored.ID != e.id {
		return errors.Validation(errors.ErrCodeInvalidDefinition,
			"checkpoint %s belongs to plan %s, not %s", id, restored.ID, e.id)
	}

	e.mu.Lock()
	e.plan = restored
	e.mu.Unlock()
	return nil
}

// Checkpoints lists the plan's checkpoints, newest first.
func (e *Engine) Checkpoints(ctx context.Context) ([]checkpoint.Summary, error) {
	if err := e.requireCheckpoints(); err != nil {
		return nil, err
	}
	ws := e.Workspace()
	if ws == "" {
		return nil, nil
	}
	return e.checkpoints.List(ctx, ws)
}

// WriteArtifact stores a file in the plan's workspace, allocating the
// workspace if needed.
func (e *Engine) WriteArtifact(ctx context.Context, name string, data []byte) error {
	if err := e.requireCheckpoints(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, e.checkpoints.Timeout())
	defer cancel()

	store := e.checkpoints.Store()
	ws := e.Workspace()
	if ws == "" {
		allocated, err := store.Allocate(ctx, e.id)
		if err != nil {
			return err
		}
		e.mu.Lock()
		if e.plan.Workspace == "" {
			e.plan.Workspace = allocated
		}
		ws = e.plan.Workspace
		e.mu.Unlock()
	}
	if err := store.WriteArtifact(ctx, ws, name, data); err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("workspace", err)
		}
		return err
	}
	e.logger.InfoContext(ctx, "artifact written", "plan_id", e.id, "path", name, "bytes", len(data))
	return nil
}

// Artifacts lists workspace entries matching a doublestar pattern. An empty
// pattern matches everything.
func (e *Engine) Artifacts(ctx context.Context, pattern string) ([]workspace.Entry, error) {
	if err := e.requireCheckpoints(); err != nil {
		return nil, err
	}
	ws := e.Workspace()
	if ws == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.checkpoints.Timeout())
	defer cancel()

	entries, err := e.checkpoints.Store().ListStructure(ctx, ws)
	if err != nil {
		return nil, err
	}
	return workspace.Filter(entries, pattern)
}
