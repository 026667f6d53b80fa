package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/plancraft/internal/checkpoint"
	"github.com/felixgeelhaar/plancraft/internal/plan"
	"github.com/felixgeelhaar/plancraft/internal/progress"
	"github.com/felixgeelhaar/plancraft/internal/scheduler"
	"github.com/felixgeelhaar/plancraft/internal/ux"
	"github.com/felixgeelhaar/plancraft/internal/workspace"
)

func TestViews_RenderPlain(t *testing.T) {
	s := ux.NewStyles(true)

	change := changeView{
		Action:      "blocked phase",
		PlanID:      "plan-a",
		Transitions: []plan.Transition{{Entity: "phase", ID: "phase-1", From: "pending", To: "blocked", Reason: "legal"}},
		Checkpoint:  checkpoint.Summary{ID: "cp-1"},
	}
	out := change.Render(s)
	assert.Contains(t, out, "✓ blocked phase (plan-a)")
	assert.Contains(t, out, "phase phase-1: pending → blocked  legal")
	assert.Contains(t, out, "checkpoint cp-1")

	assert.Contains(t, planList(nil).Render(s), "No plans yet")
	assert.Contains(t, planList{{ID: "plan-b", Error: "corrupt"}}.Render(s), "plan-b  corrupt")

	waiting := decisionView{Decision: scheduler.Decision{
		Wait:    scheduler.WaitNoEligible,
		Detail:  "no phase is eligible to run",
		Skipped: []scheduler.SkipReason{{Phase: "phase-1", Reason: scheduler.SkipReasonBlocked, Detail: "legal"}},
	}, explain: true}
	out = waiting.Render(s)
	assert.Contains(t, out, "No task is ready: no phase is eligible to run")
	assert.Contains(t, out, "skipped phase-1: blocked (legal)")

	done := decisionView{Decision: scheduler.Decision{Wait: scheduler.WaitFinished}}
	assert.Equal(t, "All tasks completed.", done.Render(s))

	pr := progressView{Progress: progress.Progress{TasksCompleted: 1, TotalTasks: 4, PercentComplete: 25, Pending: 3}}
	assert.Contains(t, pr.Render(s), "25.0% (1/4 tasks)")
	assert.Contains(t, pr.Render(s), "pending 3")

	cps := checkpointList{{ID: "cp-2", Timestamp: time.Now(), Size: 120, Context: map[string]string{"command": "plancraft task start"}}}
	assert.Contains(t, cps.Render(s), "120 bytes  plancraft task start")
	assert.Equal(t, "No checkpoints found.", checkpointList(nil).Render(s))

	entries := entryList{{Path: "artifacts/task-1/spec.md", Kind: workspace.KindArtifact, Size: 7}}
	assert.Contains(t, entries.Render(s), "artifacts/task-1/spec.md")
}
