package plan

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
)

// Now is the clock used for timestamps. Tests replace it for determinism.
var Now = func() time.Time { return time.Now().UTC() }

// New creates an empty plan.
func New(id domain.PlanID, name, description string) (*Plan, error) {
	if err := id.Validate(); err != nil {
		return nil, errors.Validation(errors.ErrCodeEmptyName, "invalid plan id: %v", err)
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.Validation(errors.ErrCodeEmptyName, "plan name cannot be empty")
	}

	now := Now()
	return &Plan{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		PhaseOrder:  []domain.PhaseID{},
		Phases:      make(map[domain.PhaseID]*Phase),
		Tasks:       make(map[domain.TaskID]*Task),
		Subtasks:    make(map[domain.SubtaskID]*Subtask),
	}, nil
}

// Phase returns the phase with the given id.
func (p *Plan) Phase(id domain.PhaseID) (*Phase, error) {
	ph, ok := p.Phases[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrCodePhaseNotFound, "phase", id.String())
	}
	return ph, nil
}

// Task returns the task with the given id.
func (p *Plan) Task(id domain.TaskID) (*Task, error) {
	t, ok := p.Tasks[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrCodeTaskNotFound, "task", id.String())
	}
	return t, nil
}

// Subtask returns the subtask with the given id.
func (p *Plan) Subtask(id domain.SubtaskID) (*Subtask, error) {
	st, ok := p.Subtasks[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrCodeSubtaskNotFound, "subtask", id.String())
	}
	return st, nil
}

// OrderedPhases returns the phases in ascending order.
func (p *Plan) OrderedPhases() []*Phase {
	phases := make([]*Phase, 0, len(p.PhaseOrder))
	for _, id := range p.PhaseOrder {
		if ph, ok := p.Phases[id]; ok {
			phases = append(phases, ph)
		}
	}
	slices.SortStableFunc(phases, func(a, b *Phase) int { return a.Order - b.Order })
	return phases
}

// PhaseTasks returns the tasks of a phase in creation order.
func (p *Plan) PhaseTasks(ph *Phase) []*Task {
	tasks := make([]*Task, 0, len(ph.TaskIDs))
	for _, id := range ph.TaskIDs {
		if t, ok := p.Tasks[id]; ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// TaskSubtasks returns the subtasks of a task sorted by their order.
func (p *Plan) TaskSubtasks(t *Task) []*Subtask {
	subs := make([]*Subtask, 0, len(t.SubtaskIDs))
	for _, id := range t.SubtaskIDs {
		if st, ok := p.Subtasks[id]; ok {
			subs = append(subs, st)
		}
	}
	slices.SortStableFunc(subs, func(a, b *Subtask) int { return a.Order - b.Order })
	return subs
}

// CreatePhase appends a new pending phase after the existing ones.
func (p *Plan) CreatePhase(spec PhaseSpec) (*Phase, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, errors.Validation(errors.ErrCodeEmptyName, "phase name cannot be empty")
	}

	next := domain.NewPhaseID(p.Sequence.Phase + 1)
	seen := make(map[domain.PhaseID]bool, len(spec.DependsOn))
	for _, dep := range spec.DependsOn {
		if dep == next {
			return nil, errors.Validation(errors.ErrCodeCyclicDependency, "phase cannot depend on itself")
		}
		if _, ok := p.Phases[dep]; !ok {
			return nil, errors.Validation(errors.ErrCodeUnknownDependency, "unknown dependency phase %q", dep).
				WithSuggestion("Dependencies must reference phases that already exist in the plan")
		}
		if seen[dep] {
			return nil, errors.Validation(errors.ErrCodeUnknownDependency, "duplicate dependency phase %q", dep)
		}
		seen[dep] = true
	}

	now := Now()
	ph := &Phase{
		ID:           next,
		Name:         spec.Name,
		Description:  spec.Description,
		Order:        p.Sequence.Phase + 1,
		Status:       domain.PhasePending,
		DependsOn:    slices.Clone(spec.DependsOn),
		ExitCriteria: slices.Clone(spec.ExitCriteria),
		CreatedAt:    now,
	}

	// Dependencies only point at existing phases, so a cycle here means the
	// arena was already inconsistent. Check anyway before publishing.
	p.Phases[ph.ID] = ph
	if err := p.checkCircularDependencies(); err != nil {
		delete(p.Phases, ph.ID)
		return nil, err
	}

	p.Sequence.Phase++
	p.PhaseOrder = append(p.PhaseOrder, ph.ID)
	p.UpdatedAt = now
	return ph, nil
}

// CreateTask appends a new pending task to a phase.
func (p *Plan) CreateTask(phaseID domain.PhaseID, spec TaskSpec) (*Task, error) {
	ph, err := p.Phase(phaseID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec.Title) == "" {
		return nil, errors.Validation(errors.ErrCodeEmptyName, "task title cannot be empty")
	}
	if err := validateContext(spec.Context); err != nil {
		return nil, err
	}
	if ph.Status == domain.PhaseCompleted {
		return nil, errors.InvalidState(errors.ErrCodePhaseClosed, "phase %s is completed and cannot take new tasks", ph.ID)
	}

	now := Now()
	t := &Task{
		ID:          domain.NewTaskID(p.Sequence.Task + 1),
		PhaseID:     ph.ID,
		Title:       spec.Title,
		Description: spec.Description,
		Status:      domain.TaskPending,
		Context:     spec.Context.clone(),
		CreatedAt:   now,
	}

	p.Sequence.Task++
	p.Tasks[t.ID] = t
	ph.TaskIDs = append(ph.TaskIDs, t.ID)
	p.UpdatedAt = now
	return t, nil
}

// AddSubtask appends a new pending subtask to a task.
func (p *Plan) AddSubtask(taskID domain.TaskID, spec SubtaskSpec) (*Subtask, error) {
	t, err := p.Task(taskID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec.Title) == "" {
		return nil, errors.Validation(errors.ErrCodeEmptyName, "subtask title cannot be empty")
	}
	if spec.Order < 0 {
		return nil, errors.Validation(errors.ErrCodeOrderCollision, "subtask order must not be negative, got %d", spec.Order)
	}
	if t.Status == domain.TaskCompleted {
		return nil, errors.InvalidState(errors.ErrCodeParentClosed, "task %s is completed and cannot take new subtasks", t.ID)
	}

	order := spec.Order
	highest := 0
	for _, sub := range p.TaskSubtasks(t) {
		if order != 0 && sub.Order == order {
			return nil, errors.Validation(errors.ErrCodeOrderCollision,
				"subtask order %d is already used by %s in task %s", order, sub.ID, t.ID)
		}
		highest = max(highest, sub.Order)
	}
	if order == 0 {
		order = highest + 1
	}

	now := Now()
	st := &Subtask{
		ID:              domain.NewSubtaskID(p.Sequence.Subtask + 1),
		TaskID:          t.ID,
		Title:           spec.Title,
		Description:     spec.Description,
		ThinkingProcess: spec.ThinkingProcess,
		Status:          domain.SubtaskPending,
		Order:           order,
		CreatedAt:       now,
	}

	p.Sequence.Subtask++
	p.Subtasks[st.ID] = st
	t.SubtaskIDs = append(t.SubtaskIDs, st.ID)
	p.UpdatedAt = now
	return st, nil
}

func validateContext(c *TaskContext) error {
	if c == nil {
		return nil
	}
	for i, con := range c.Constraints {
		if err := con.Type.Validate(); err != nil {
			return errors.Wrap(errors.KindValidation, errors.ErrCodeInvalidContext,
				fmt.Sprintf("constraint %d is invalid", i), err)
		}
	}
	for i, a := range c.Assumptions {
		if err := a.Confidence.Validate(); err != nil {
			return errors.Wrap(errors.KindValidation, errors.ErrCodeInvalidContext,
				fmt.Sprintf("assumption %d is invalid", i), err)
		}
	}
	return nil
}
