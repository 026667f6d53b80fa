package plan

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/felixgeelhaar/plancraft/internal/domain"
)

// genPlan builds a random plan where each phase may depend on earlier ones.
func genPlan(t *rapid.T) *Plan {
	p, err := New("plan-prop", "prop", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	phases := rapid.IntRange(1, 5).Draw(t, "phases")
	for i := 0; i < phases; i++ {
		var deps []domain.PhaseID
		for j := 0; j < i; j++ {
			if rapid.Bool().Draw(t, fmt.Sprintf("dep-%d-%d", i, j)) {
				deps = append(deps, p.PhaseOrder[j])
			}
		}
		ph, err := p.CreatePhase(PhaseSpec{Name: fmt.Sprintf("P%d", i), DependsOn: deps})
		if err != nil {
			t.Fatalf("CreatePhase: %v", err)
		}
		tasks := rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("tasks-%d", i))
		for k := 0; k < tasks; k++ {
			if _, err := p.CreateTask(ph.ID, TaskSpec{Title: fmt.Sprintf("T%d.%d", i, k)}); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}
		}
	}
	return p
}

// TestStateMachine_RandomOperationsPreserveInvariants applies random
// operations and checks the plan stays structurally valid whether or not
// each operation was accepted.
func TestStateMachine_RandomOperationsPreserveInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := genPlan(t)
		if len(p.Tasks) == 0 {
			return
		}
		taskIDs := make([]domain.TaskID, 0, len(p.Tasks))
		for i := 1; i <= p.Sequence.Task; i++ {
			taskIDs = append(taskIDs, domain.NewTaskID(i))
		}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for s := 0; s < steps; s++ {
			id := rapid.SampledFrom(taskIDs).Draw(t, "task")
			before := p.Clone()
			var err error
			started := false
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0, 1:
				_, err = p.StartTask(id)
				started = err == nil
			case 2:
				_, err = p.CompleteTask(id, TaskResult{Success: rapid.Bool().Draw(t, "success")})
			case 3:
				_, err = p.ReopenTask(id, "retry")
			case 4:
				ph := rapid.SampledFrom(p.PhaseOrder).Draw(t, "phase")
				if rapid.Bool().Draw(t, "block") {
					_, err = p.BlockPhase(ph, "blocked")
				} else {
					_, err = p.UnblockPhase(ph)
				}
			}
			if err != nil && before.Tasks[id].Status != p.Tasks[id].Status {
				t.Fatalf("rejected operation changed task %s: %s -> %s", id, before.Tasks[id].Status, p.Tasks[id].Status)
			}
			if started {
				if dep, ok := p.DependenciesMet(p.Phases[p.Tasks[id].PhaseID]); !ok {
					t.Fatalf("task %s started while dependency %s incomplete", id, dep)
				}
			}
			if verr := p.Validate(); verr != nil {
				t.Fatalf("invariants broken after step %d: %v", s, verr)
			}
		}
	})
}
