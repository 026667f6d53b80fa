package plan

import (
	"slices"
	"time"

	"github.com/felixgeelhaar/plancraft/internal/domain"
)

// Clone returns a deep copy of the plan. Callers outside the engine only ever
// see clones, so they cannot mutate live state.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.PhaseOrder = slices.Clone(p.PhaseOrder)
	c.Phases = make(map[domain.PhaseID]*Phase, len(p.Phases))
	for id, ph := range p.Phases {
		c.Phases[id] = ph.Clone()
	}
	c.Tasks = make(map[domain.TaskID]*Task, len(p.Tasks))
	for id, t := range p.Tasks {
		c.Tasks[id] = t.Clone()
	}
	c.Subtasks = make(map[domain.SubtaskID]*Subtask, len(p.Subtasks))
	for id, st := range p.Subtasks {
		c.Subtasks[id] = st.Clone()
	}
	return &c
}

// Clone returns a deep copy of the phase.
func (ph *Phase) Clone() *Phase {
	if ph == nil {
		return nil
	}
	c := *ph
	c.DependsOn = slices.Clone(ph.DependsOn)
	c.ExitCriteria = slices.Clone(ph.ExitCriteria)
	c.TaskIDs = slices.Clone(ph.TaskIDs)
	c.StartedAt = cloneTime(ph.StartedAt)
	c.CompletedAt = cloneTime(ph.CompletedAt)
	c.History = slices.Clone(ph.History)
	return &c
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Context = t.Context.clone()
	if t.Result != nil {
		r := t.Result.clone()
		c.Result = &r
	}
	if t.PreviousResults != nil {
		c.PreviousResults = make([]TaskResult, len(t.PreviousResults))
		for i, r := range t.PreviousResults {
			c.PreviousResults[i] = r.clone()
		}
	}
	c.SubtaskIDs = slices.Clone(t.SubtaskIDs)
	c.StartedAt = cloneTime(t.StartedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.History = slices.Clone(t.History)
	return &c
}

// Clone returns a deep copy of the subtask.
func (st *Subtask) Clone() *Subtask {
	if st == nil {
		return nil
	}
	c := *st
	c.CompletedAt = cloneTime(st.CompletedAt)
	c.History = slices.Clone(st.History)
	return &c
}

func (c *TaskContext) clone() *TaskContext {
	if c == nil {
		return nil
	}
	out := *c
	out.Constraints = slices.Clone(c.Constraints)
	out.Assumptions = slices.Clone(c.Assumptions)
	out.Resources = slices.Clone(c.Resources)
	out.SuccessCriteria = slices.Clone(c.SuccessCriteria)
	return &out
}

func (r TaskResult) clone() TaskResult {
	r.Artifacts = slices.Clone(r.Artifacts)
	r.ThinkingSteps = slices.Clone(r.ThinkingSteps)
	return r
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
