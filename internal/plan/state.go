package plan

import (
	"fmt"
	"slices"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
)

// Transition describes one status change applied by an operation. Operations
// return every change they made, cascades included, in the order applied.
type Transition struct {
	Entity string `json:"entity" yaml:"entity"`
	ID     string `json:"id" yaml:"id"`
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func (t Transition) String() string {
	return fmt.Sprintf("%s %s: %s -> %s", t.Entity, t.ID, t.From, t.To)
}

const (
	entityPhase   = "phase"
	entityTask    = "task"
	entitySubtask = "subtask"
)

func (p *Plan) movePhase(ph *Phase, to domain.PhaseStatus, reason string) (Transition, error) {
	if !ph.Status.CanTransitionTo(to) {
		return Transition{}, errors.NewIllegalTransitionError(entityPhase, ph.ID.String(), ph.Status.String(), to.String())
	}
	now := Now()
	tr := Transition{Entity: entityPhase, ID: ph.ID.String(), From: ph.Status.String(), To: to.String(), Reason: reason}
	ph.History = append(ph.History, StatusChange{From: tr.From, To: tr.To, At: now, Reason: reason})
	ph.Status = to
	switch to {
	case domain.PhaseInProgress:
		if ph.StartedAt == nil {
			ph.StartedAt = &now
		}
	case domain.PhaseCompleted:
		ph.CompletedAt = &now
	}
	p.UpdatedAt = now
	return tr, nil
}

func (p *Plan) moveTask(t *Task, to domain.TaskStatus, reason string) (Transition, error) {
	if !t.Status.CanTransitionTo(to) {
		return Transition{}, errors.NewIllegalTransitionError(entityTask, t.ID.String(), t.Status.String(), to.String())
	}
	now := Now()
	tr := Transition{Entity: entityTask, ID: t.ID.String(), From: t.Status.String(), To: to.String(), Reason: reason}
	t.History = append(t.History, StatusChange{From: tr.From, To: tr.To, At: now, Reason: reason})
	t.Status = to
	switch to {
	case domain.TaskInProgress:
		t.StartedAt = &now
		t.CompletedAt = nil
	case domain.TaskCompleted, domain.TaskFailed:
		t.CompletedAt = &now
	}
	p.UpdatedAt = now
	return tr, nil
}

func (p *Plan) moveSubtask(st *Subtask, to domain.SubtaskStatus, reason string) (Transition, error) {
	if !st.Status.CanTransitionTo(to) {
		return Transition{}, errors.NewIllegalTransitionError(entitySubtask, st.ID.String(), st.Status.String(), to.String())
	}
	now := Now()
	tr := Transition{Entity: entitySubtask, ID: st.ID.String(), From: st.Status.String(), To: to.String(), Reason: reason}
	st.History = append(st.History, StatusChange{From: tr.From, To: tr.To, At: now, Reason: reason})
	st.Status = to
	if to == domain.SubtaskCompleted {
		st.CompletedAt = &now
	}
	p.UpdatedAt = now
	return tr, nil
}

// DependenciesMet reports whether every dependency of ph is completed. The
// first unmet dependency is returned when it is not.
func (p *Plan) DependenciesMet(ph *Phase) (domain.PhaseID, bool) {
	for _, dep := range ph.DependsOn {
		d, ok := p.Phases[dep]
		if !ok || d.Status != domain.PhaseCompleted {
			return dep, false
		}
	}
	return "", true
}

// StartTask moves a pending task to in_progress, starting its phase if this is
// the first task to run.
func (p *Plan) StartTask(id domain.TaskID) ([]Transition, error) {
	t, err := p.Task(id)
	if err != nil {
		return nil, err
	}
	ph, err := p.Phase(t.PhaseID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskPending {
		return nil, errors.NewIllegalTransitionError(entityTask, t.ID.String(), t.Status.String(), domain.TaskInProgress.String())
	}
	switch ph.Status {
	case domain.PhaseBlocked:
		return nil, errors.InvalidState(errors.ErrCodePhaseBlocked, "phase %s is blocked: %s", ph.ID, ph.BlockedReason).
			WithSuggestion(fmt.Sprintf("Run 'plancraft phase unblock %s' once the cause is resolved", ph.ID))
	case domain.PhaseCompleted:
		return nil, errors.InvalidState(errors.ErrCodePhaseClosed, "phase %s is already completed", ph.ID)
	}
	if dep, ok := p.DependenciesMet(ph); !ok {
		return nil, errors.NewDependencyPendingError(ph.ID.String(), dep.String())
	}

	var out []Transition
	if ph.Status == domain.PhasePending {
		tr, err := p.movePhase(ph, domain.PhaseInProgress, fmt.Sprintf("task %s started", t.ID))
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	tr, err := p.moveTask(t, domain.TaskInProgress, "")
	if err != nil {
		return nil, err
	}
	t.Attempts++
	return append(out, tr), nil
}

// CompleteTask records the outcome of an in-progress task. A successful result
// closes the task's open subtasks and completes the phase once every task in
// it is completed. A failed result leaves the phase in progress.
func (p *Plan) CompleteTask(id domain.TaskID, result TaskResult) ([]Transition, error) {
	t, err := p.Task(id)
	if err != nil {
		return nil, err
	}
	if result.TaskID != "" && result.TaskID != t.ID {
		return nil, errors.Validation(errors.ErrCodeResultMismatch,
			"result belongs to task %s, not %s", result.TaskID, t.ID)
	}
	if t.Status != domain.TaskInProgress {
		target := domain.TaskCompleted
		if !result.Success {
			target = domain.TaskFailed
		}
		return nil, errors.NewIllegalTransitionError(entityTask, t.ID.String(), t.Status.String(), target.String())
	}

	target := domain.TaskFailed
	if result.Success {
		target = domain.TaskCompleted
	}
	tr, err := p.moveTask(t, target, "")
	if err != nil {
		return nil, err
	}

	res := result.clone()
	res.TaskID = t.ID
	if res.RecordedAt.IsZero() {
		res.RecordedAt = Now()
	}
	t.Result = &res
	out := []Transition{tr}

	if result.Success {
		for _, st := range p.TaskSubtasks(t) {
			steps, err := p.closeSubtask(st, fmt.Sprintf("task %s completed", t.ID))
			if err != nil {
				return out, err
			}
			out = append(out, steps...)
		}
	}

	ph, err := p.Phase(t.PhaseID)
	if err != nil {
		return out, err
	}
	steps, err := p.settlePhase(ph)
	if err != nil {
		return out, err
	}
	return append(out, steps...), nil
}

// closeSubtask walks a subtask to completed through legal steps.
func (p *Plan) closeSubtask(st *Subtask, reason string) ([]Transition, error) {
	var out []Transition
	for st.Status != domain.SubtaskCompleted {
		next := domain.SubtaskCompleted
		if st.Status == domain.SubtaskPending {
			next = domain.SubtaskInProgress
		}
		tr, err := p.moveSubtask(st, next, reason)
		if err != nil {
			return out, err
		}
		out = append(out, tr)
	}
	return out, nil
}

// settlePhase completes an in-progress phase whose tasks are all completed.
func (p *Plan) settlePhase(ph *Phase) ([]Transition, error) {
	if ph.Status != domain.PhaseInProgress || !p.allTasksCompleted(ph) {
		return nil, nil
	}
	tr, err := p.movePhase(ph, domain.PhaseCompleted, "all tasks completed")
	if err != nil {
		return nil, err
	}
	return []Transition{tr}, nil
}

func (p *Plan) allTasksCompleted(ph *Phase) bool {
	if len(ph.TaskIDs) == 0 {
		return false
	}
	for _, t := range p.PhaseTasks(ph) {
		if t.Status != domain.TaskCompleted {
			return false
		}
	}
	return true
}

// ReopenTask returns a failed task to pending so it can be retried. The failed
// result is archived in PreviousResults.
func (p *Plan) ReopenTask(id domain.TaskID, reason string) ([]Transition, error) {
	t, err := p.Task(id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskFailed {
		return nil, errors.NewIllegalTransitionError(entityTask, t.ID.String(), t.Status.String(), domain.TaskPending.String())
	}
	tr, err := p.moveTask(t, domain.TaskPending, reason)
	if err != nil {
		return nil, err
	}
	if t.Result != nil {
		t.PreviousResults = append(t.PreviousResults, *t.Result)
		t.Result = nil
	}
	t.CompletedAt = nil
	return []Transition{tr}, nil
}

// StartSubtask moves a pending subtask to in_progress. The parent task must be
// running.
func (p *Plan) StartSubtask(id domain.SubtaskID) ([]Transition, error) {
	st, err := p.Subtask(id)
	if err != nil {
		return nil, err
	}
	parent, err := p.Task(st.TaskID)
	if err != nil {
		return nil, err
	}
	if parent.Status != domain.TaskInProgress {
		return nil, errors.InvalidState(errors.ErrCodeParentNotStarted,
			"subtask %s cannot start while task %s is %s", st.ID, parent.ID, parent.Status).
			WithSuggestion(fmt.Sprintf("Run 'plancraft task start %s' first", parent.ID))
	}
	tr, err := p.moveSubtask(st, domain.SubtaskInProgress, "")
	if err != nil {
		return nil, err
	}
	return []Transition{tr}, nil
}

// CompleteSubtask moves an in-progress subtask to completed.
func (p *Plan) CompleteSubtask(id domain.SubtaskID) ([]Transition, error) {
	st, err := p.Subtask(id)
	if err != nil {
		return nil, err
	}
	parent, err := p.Task(st.TaskID)
	if err != nil {
		return nil, err
	}
	if parent.Status == domain.TaskPending {
		return nil, errors.InvalidState(errors.ErrCodeParentNotStarted,
			"subtask %s cannot complete while task %s is pending", st.ID, parent.ID)
	}
	tr, err := p.moveSubtask(st, domain.SubtaskCompleted, "")
	if err != nil {
		return nil, err
	}
	return []Transition{tr}, nil
}

// BlockPhase marks a phase as blocked and propagates the block to every phase
// that transitively depends on it and has not completed.
func (p *Plan) BlockPhase(id domain.PhaseID, reason string) ([]Transition, error) {
	ph, err := p.Phase(id)
	if err != nil {
		return nil, err
	}
	tr, err := p.movePhase(ph, domain.PhaseBlocked, reason)
	if err != nil {
		return nil, err
	}
	ph.BlockedReason = reason
	ph.BlockedBy = ""
	out := []Transition{tr}

	for _, dep := range p.dependents(id) {
		if dep.Status != domain.PhasePending && dep.Status != domain.PhaseInProgress {
			continue
		}
		why := fmt.Sprintf("dependency %s blocked", id)
		tr, err := p.movePhase(dep, domain.PhaseBlocked, why)
		if err != nil {
			return out, err
		}
		dep.BlockedReason = why
		dep.BlockedBy = id
		out = append(out, tr)
	}
	return out, nil
}

// UnblockPhase clears a block. The phase returns to pending, or straight on to
// in_progress when some of its tasks already started. Phases that were blocked
// only through this phase are released the same way.
func (p *Plan) UnblockPhase(id domain.PhaseID) ([]Transition, error) {
	ph, err := p.Phase(id)
	if err != nil {
		return nil, err
	}
	if ph.Status != domain.PhaseBlocked {
		return nil, errors.NewIllegalTransitionError(entityPhase, ph.ID.String(), ph.Status.String(), domain.PhasePending.String())
	}
	for _, dep := range ph.DependsOn {
		if d, ok := p.Phases[dep]; ok && d.Status == domain.PhaseBlocked {
			return nil, errors.InvalidState(errors.ErrCodePhaseBlocked,
				"phase %s depends on blocked phase %s", ph.ID, dep).
				WithSuggestion(fmt.Sprintf("Unblock %s first", dep))
		}
	}

	out, err := p.release(ph, "unblocked")
	if err != nil {
		return out, err
	}

	for _, dep := range p.dependents(id) {
		if dep.Status != domain.PhaseBlocked || dep.BlockedBy == "" || p.upstreamBlocked(dep) {
			continue
		}
		steps, err := p.release(dep, fmt.Sprintf("dependency %s unblocked", id))
		if err != nil {
			return out, err
		}
		out = append(out, steps...)
	}
	return out, nil
}

func (p *Plan) release(ph *Phase, reason string) ([]Transition, error) {
	tr, err := p.movePhase(ph, domain.PhasePending, reason)
	if err != nil {
		return nil, err
	}
	ph.BlockedReason = ""
	ph.BlockedBy = ""
	out := []Transition{tr}

	started := false
	for _, t := range p.PhaseTasks(ph) {
		if t.Status != domain.TaskPending {
			started = true
			break
		}
	}
	if !started {
		return out, nil
	}
	tr, err = p.movePhase(ph, domain.PhaseInProgress, "resuming started tasks")
	if err != nil {
		return out, err
	}
	out = append(out, tr)
	steps, err := p.settlePhase(ph)
	if err != nil {
		return out, err
	}
	return append(out, steps...), nil
}

func (p *Plan) upstreamBlocked(ph *Phase) bool {
	for _, dep := range ph.DependsOn {
		if d, ok := p.Phases[dep]; ok && d.Status == domain.PhaseBlocked {
			return true
		}
	}
	return false
}

// dependents returns the phases that transitively depend on id, in phase order.
func (p *Plan) dependents(id domain.PhaseID) []*Phase {
	reached := map[domain.PhaseID]bool{id: true}
	var out []*Phase
	// Dependencies always point at earlier phases, so one ordered sweep
	// reaches the full transitive closure.
	for _, ph := range p.OrderedPhases() {
		if reached[ph.ID] {
			continue
		}
		if slices.ContainsFunc(ph.DependsOn, func(d domain.PhaseID) bool { return reached[d] }) {
			reached[ph.ID] = true
			out = append(out, ph)
		}
	}
	return out
}
