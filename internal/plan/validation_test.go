package plan

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
)

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Plan)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid plan",
			mutate: func(p *Plan) {},
		},
		{
			name:    "phase order out of sync",
			mutate:  func(p *Plan) { p.PhaseOrder = p.PhaseOrder[:1] },
			wantErr: true,
			errMsg:  "phase order lists",
		},
		{
			name:    "orders not increasing",
			mutate:  func(p *Plan) { p.Phases["phase-2"].Order = 1 },
			wantErr: true,
			errMsg:  "not greater than",
		},
		{
			name: "result without terminal status",
			mutate: func(p *Plan) {
				p.Tasks["task-2"].Result = &TaskResult{TaskID: "task-2"}
			},
			wantErr: true,
			errMsg:  "result presence",
		},
		{
			name: "result for another task",
			mutate: func(p *Plan) {
				p.Tasks["task-1"].Result.TaskID = "task-2"
			},
			wantErr: true,
			errMsg:  "result belongs to",
		},
		{
			name: "completed phase with open task",
			mutate: func(p *Plan) {
				p.Tasks["task-1"].Status = domain.TaskInProgress
				p.Tasks["task-1"].Result = nil
			},
			wantErr: true,
			errMsg:  "disagrees with task completion",
		},
		{
			name:    "unknown task status",
			mutate:  func(p *Plan) { p.Tasks["task-2"].Status = "skipped" },
			wantErr: true,
			errMsg:  "invalid task status",
		},
		{
			name: "dependency cycle",
			mutate: func(p *Plan) {
				p.Phases["phase-1"].DependsOn = []domain.PhaseID{"phase-2"}
			},
			wantErr: true,
			errMsg:  "circular dependency detected",
		},
		{
			name: "subtask with unknown parent",
			mutate: func(p *Plan) {
				p.Subtasks["subtask-1"].TaskID = "task-9"
			},
			wantErr: true,
			errMsg:  "references unknown task",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := authPlan(t)
			if _, err := p.AddSubtask("task-2", SubtaskSpec{Title: "markup"}); err != nil {
				t.Fatalf("AddSubtask: %v", err)
			}
			if _, err := p.StartTask("task-1"); err != nil {
				t.Fatalf("StartTask: %v", err)
			}
			if _, err := p.CompleteTask("task-1", TaskResult{Success: true}); err != nil {
				t.Fatalf("CompleteTask: %v", err)
			}
			tt.mutate(p)

			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error should contain %q, got: %v", tt.errMsg, err)
				}
				if !errors.IsValidation(err) {
					t.Errorf("expected a validation error, got %T", err)
				}
			}
		})
	}
}

func TestDetectCycle(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}
	err := detectCycle([]string{"a", "b", "c"}, graph)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(err.Error(), "a -> b -> c -> a") {
		t.Errorf("unexpected cycle path: %v", err)
	}

	if err := detectCycle([]string{"a", "b"}, map[string][]string{"b": {"a"}}); err != nil {
		t.Errorf("unexpected error for acyclic graph: %v", err)
	}
}
