package plan

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
)

// Validate checks the structural invariants of a plan. It is run on every
// plan decoded from a checkpoint before the plan is handed to the engine.
func (p *Plan) Validate() error {
	if err := p.ID.Validate(); err != nil {
		return invalid("plan id: %v", err)
	}
	if p.Phases == nil || p.Tasks == nil || p.Subtasks == nil {
		return invalid("plan %s is missing entity tables", p.ID)
	}
	if len(p.PhaseOrder) != len(p.Phases) {
		return invalid("phase order lists %d phases but plan holds %d", len(p.PhaseOrder), len(p.Phases))
	}

	lastOrder := 0
	for i, id := range p.PhaseOrder {
		ph, ok := p.Phases[id]
		if !ok {
			return invalid("phase order references unknown phase %s", id)
		}
		if err := ph.validate(p); err != nil {
			return fmt.Errorf("phase at index %d (%s) is invalid: %w", i, id, err)
		}
		if ph.Order <= lastOrder {
			return invalid("phase %s order %d is not greater than %d", id, ph.Order, lastOrder)
		}
		lastOrder = ph.Order
	}

	for id, t := range p.Tasks {
		if id != t.ID {
			return invalid("task table key %s does not match id %s", id, t.ID)
		}
		if err := t.validate(p); err != nil {
			return fmt.Errorf("task %s is invalid: %w", id, err)
		}
	}

	for id, st := range p.Subtasks {
		if id != st.ID {
			return invalid("subtask table key %s does not match id %s", id, st.ID)
		}
		if err := st.Status.Validate(); err != nil {
			return invalid("subtask %s: %v", id, err)
		}
		if _, ok := p.Tasks[st.TaskID]; !ok {
			return invalid("subtask %s references unknown task %s", id, st.TaskID)
		}
	}

	return p.checkCircularDependencies()
}

func (ph *Phase) validate(p *Plan) error {
	if strings.TrimSpace(ph.Name) == "" {
		return invalid("phase name cannot be empty")
	}
	if err := ph.Status.Validate(); err != nil {
		return invalid("%v", err)
	}
	for _, dep := range ph.DependsOn {
		if _, ok := p.Phases[dep]; !ok {
			return invalid("dependency %s does not exist in plan", dep)
		}
	}
	for _, tid := range ph.TaskIDs {
		t, ok := p.Tasks[tid]
		if !ok {
			return invalid("references unknown task %s", tid)
		}
		if t.PhaseID != ph.ID {
			return invalid("task %s belongs to phase %s", tid, t.PhaseID)
		}
	}
	if completed := p.allTasksCompleted(ph); (ph.Status == domain.PhaseCompleted) != completed && ph.Status != domain.PhaseBlocked {
		return invalid("status %s disagrees with task completion", ph.Status)
	}
	return nil
}

func (t *Task) validate(p *Plan) error {
	if err := t.Status.Validate(); err != nil {
		return invalid("%v", err)
	}
	ph, ok := p.Phases[t.PhaseID]
	if !ok {
		return invalid("references unknown phase %s", t.PhaseID)
	}
	listed := false
	for _, id := range ph.TaskIDs {
		if id == t.ID {
			listed = true
			break
		}
	}
	if !listed {
		return invalid("is not listed by phase %s", ph.ID)
	}

	hasResult := t.Result != nil
	if hasResult != t.Status.IsTerminal() {
		return invalid("result presence does not match status %s", t.Status)
	}
	if hasResult && t.Result.TaskID != t.ID {
		return invalid("result belongs to task %s", t.Result.TaskID)
	}

	orders := make(map[int]domain.SubtaskID, len(t.SubtaskIDs))
	for _, sid := range t.SubtaskIDs {
		st, ok := p.Subtasks[sid]
		if !ok {
			return invalid("references unknown subtask %s", sid)
		}
		if prev, dup := orders[st.Order]; dup {
			return invalid("subtasks %s and %s share order %d", prev, sid, st.Order)
		}
		orders[st.Order] = sid
	}
	return validateContext(t.Context)
}

// checkCircularDependencies detects cycles in the phase dependency graph
func (p *Plan) checkCircularDependencies() error {
	graph := make(map[string][]string, len(p.Phases))
	ids := make([]string, 0, len(p.Phases))
	for _, ph := range p.OrderedPhases() {
		deps := make([]string, len(ph.DependsOn))
		for i, d := range ph.DependsOn {
			deps[i] = d.String()
		}
		graph[ph.ID.String()] = deps
		ids = append(ids, ph.ID.String())
	}
	// Phases added to the arena but not yet ordered still take part.
	for id, ph := range p.Phases {
		if _, ok := graph[id.String()]; ok {
			continue
		}
		deps := make([]string, len(ph.DependsOn))
		for i, d := range ph.DependsOn {
			deps[i] = d.String()
		}
		graph[id.String()] = deps
		ids = append(ids, id.String())
	}
	return detectCycle(ids, graph)
}

// detectCycle runs a depth-first search over graph starting from each id in
// turn and reports the first cycle found as "a -> b -> a".
func detectCycle(ids []string, graph map[string][]string) error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		visited[id] = true
		recStack[id] = true
		path = append(path, id)

		for _, dep := range graph[id] {
			if !visited[dep] {
				if err := visit(dep, path); err != nil {
					return err
				}
			} else if recStack[dep] {
				cycle := append(path, dep)
				return errors.Validation(errors.ErrCodeCyclicDependency,
					"circular dependency detected: %s", strings.Join(cycle, " -> "))
			}
		}

		recStack[id] = false
		return nil
	}

	for _, id := range ids {
		if !visited[id] {
			if err := visit(id, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.Validation(errors.ErrCodeInvalidDefinition, format, args...)
}
