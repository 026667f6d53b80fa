package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
)

// authPlan builds Design(t1) -> Build(t2, t3).
func authPlan(t *testing.T) (*Plan, *Phase, *Phase) {
	t.Helper()
	p := newTestPlan(t)
	design, err := p.CreatePhase(PhaseSpec{Name: "Design"})
	require.NoError(t, err)
	build, err := p.CreatePhase(PhaseSpec{Name: "Build", DependsOn: []domain.PhaseID{design.ID}})
	require.NoError(t, err)
	for _, spec := range []struct {
		phase domain.PhaseID
		title string
	}{
		{design.ID, "Write spec"},
		{build.ID, "Login form"},
		{build.ID, "Token service"},
	} {
		_, err := p.CreateTask(spec.phase, TaskSpec{Title: spec.title})
		require.NoError(t, err)
	}
	return p, design, build
}

func TestAuthScenario(t *testing.T) {
	p, design, build := authPlan(t)

	trs, err := p.StartTask("task-1")
	require.NoError(t, err)
	require.Len(t, trs, 2)
	assert.Equal(t, "phase", trs[0].Entity)
	assert.Equal(t, domain.PhaseInProgress, design.Status)

	_, err = p.CompleteTask("task-1", TaskResult{Success: true, Output: "spec written"})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCompleted, design.Status)
	assert.Equal(t, domain.PhasePending, build.Status)

	for _, id := range []domain.TaskID{"task-2", "task-3"} {
		_, err := p.StartTask(id)
		require.NoError(t, err)
		_, err = p.CompleteTask(id, TaskResult{Success: true})
		require.NoError(t, err)
	}
	assert.Equal(t, domain.PhaseCompleted, build.Status)
	require.NoError(t, p.Validate())
}

func TestStartTask_DependencyIncomplete(t *testing.T) {
	p, design, build := authPlan(t)

	_, err := p.StartTask("task-2")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidState(err))
	assert.Equal(t, errors.ErrCodeDependencyPending, errors.CodeOf(err))
	assert.Equal(t, domain.TaskPending, p.Tasks["task-2"].Status)
	assert.Equal(t, domain.PhasePending, build.Status)
	assert.Equal(t, domain.PhasePending, design.Status)
}

func TestFailedTaskKeepsDependentsWaiting(t *testing.T) {
	p, design, build := authPlan(t)

	_, err := p.StartTask("task-1")
	require.NoError(t, err)
	_, err = p.CompleteTask("task-1", TaskResult{Success: false, Output: "reviewer rejected"})
	require.NoError(t, err)

	task := p.Tasks["task-1"]
	assert.Equal(t, domain.TaskFailed, task.Status)
	require.NotNil(t, task.Result)
	assert.False(t, task.Result.Success)
	assert.Equal(t, task.ID, task.Result.TaskID)
	assert.Equal(t, domain.PhaseInProgress, design.Status)

	_, err = p.StartTask("task-2")
	assert.True(t, errors.IsInvalidState(err))
	assert.Equal(t, domain.PhasePending, build.Status)
}

func TestStartTask_NotPending(t *testing.T) {
	p, _, _ := authPlan(t)
	_, err := p.StartTask("task-1")
	require.NoError(t, err)

	_, err = p.StartTask("task-1")
	assert.True(t, errors.IsInvalidState(err))

	_, err = p.StartTask("task-404")
	assert.True(t, errors.IsNotFound(err))
}

func TestCompleteTask_Errors(t *testing.T) {
	p, _, _ := authPlan(t)

	_, err := p.CompleteTask("task-1", TaskResult{Success: true})
	assert.True(t, errors.IsInvalidState(err), "pending task cannot complete")
	assert.Nil(t, p.Tasks["task-1"].Result)

	_, err = p.StartTask("task-1")
	require.NoError(t, err)
	_, err = p.CompleteTask("task-1", TaskResult{TaskID: "task-2", Success: true})
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, domain.TaskInProgress, p.Tasks["task-1"].Status)
}

func TestCompleteTask_ClosesSubtasks(t *testing.T) {
	p, _, _ := authPlan(t)
	a, _ := p.AddSubtask("task-1", SubtaskSpec{Title: "outline"})
	b, _ := p.AddSubtask("task-1", SubtaskSpec{Title: "review"})

	_, err := p.StartTask("task-1")
	require.NoError(t, err)
	_, err = p.StartSubtask(a.ID)
	require.NoError(t, err)

	trs, err := p.CompleteTask("task-1", TaskResult{Success: true})
	require.NoError(t, err)
	assert.Equal(t, domain.SubtaskCompleted, a.Status)
	assert.Equal(t, domain.SubtaskCompleted, b.Status)
	// task + a(1 step) + b(2 steps) + phase
	assert.Len(t, trs, 5)
}

func TestFailedTaskLeavesSubtasks(t *testing.T) {
	p, _, _ := authPlan(t)
	a, _ := p.AddSubtask("task-1", SubtaskSpec{Title: "outline"})
	_, _ = p.StartTask("task-1")
	_, _ = p.StartSubtask(a.ID)
	_, err := p.CompleteTask("task-1", TaskResult{Success: false})
	require.NoError(t, err)
	assert.Equal(t, domain.SubtaskInProgress, a.Status)
}

func TestReopenTask(t *testing.T) {
	p, design, _ := authPlan(t)
	_, _ = p.StartTask("task-1")
	_, _ = p.CompleteTask("task-1", TaskResult{Success: false, Output: "first try"})

	_, err := p.ReopenTask("task-1", "retry with reviewer notes")
	require.NoError(t, err)
	task := p.Tasks["task-1"]
	assert.Equal(t, domain.TaskPending, task.Status)
	assert.Nil(t, task.Result)
	require.Len(t, task.PreviousResults, 1)
	assert.Equal(t, "first try", task.PreviousResults[0].Output)

	_, err = p.StartTask("task-1")
	require.NoError(t, err)
	assert.Equal(t, 2, task.Attempts)
	_, err = p.CompleteTask("task-1", TaskResult{Success: true})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCompleted, design.Status)

	_, err = p.ReopenTask("task-1", "")
	assert.True(t, errors.IsInvalidState(err), "completed tasks cannot reopen")
}

func TestSubtaskLifecycle(t *testing.T) {
	p, _, _ := authPlan(t)
	st, _ := p.AddSubtask("task-1", SubtaskSpec{Title: "outline"})

	_, err := p.StartSubtask(st.ID)
	assert.True(t, errors.IsInvalidState(err), "parent pending")
	_, err = p.CompleteSubtask(st.ID)
	assert.True(t, errors.IsInvalidState(err), "parent pending")

	_, _ = p.StartTask("task-1")
	_, err = p.CompleteSubtask(st.ID)
	assert.True(t, errors.IsInvalidState(err), "subtask must start first")

	_, err = p.StartSubtask(st.ID)
	require.NoError(t, err)
	_, err = p.CompleteSubtask(st.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubtaskCompleted, st.Status)
	require.Len(t, st.History, 2)

	_, err = p.AddSubtask("task-1", SubtaskSpec{Title: "extra"})
	require.NoError(t, err)
	_, _ = p.CompleteTask("task-1", TaskResult{Success: true})
	_, err = p.AddSubtask("task-1", SubtaskSpec{Title: "too late"})
	assert.True(t, errors.IsInvalidState(err))
}

func TestBlockAndUnblockPhase(t *testing.T) {
	p, design, build := authPlan(t)
	qa, err := p.CreatePhase(PhaseSpec{Name: "QA", DependsOn: []domain.PhaseID{build.ID}})
	require.NoError(t, err)
	docs, err := p.CreatePhase(PhaseSpec{Name: "Docs"})
	require.NoError(t, err)

	trs, err := p.BlockPhase(design.ID, "vendor review pending")
	require.NoError(t, err)
	assert.Len(t, trs, 3)
	assert.Equal(t, domain.PhaseBlocked, design.Status)
	assert.Equal(t, domain.PhaseBlocked, build.Status)
	assert.Equal(t, domain.PhaseBlocked, qa.Status)
	assert.Equal(t, design.ID, qa.BlockedBy)
	assert.Equal(t, domain.PhasePending, docs.Status)

	_, err = p.StartTask("task-1")
	assert.True(t, errors.IsInvalidState(err))
	assert.Equal(t, errors.ErrCodePhaseBlocked, errors.CodeOf(err))

	_, err = p.UnblockPhase(build.ID)
	assert.True(t, errors.IsInvalidState(err), "upstream still blocked")

	_, err = p.BlockPhase(design.ID, "again")
	assert.True(t, errors.IsInvalidState(err))

	_, err = p.UnblockPhase(design.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePending, design.Status)
	assert.Equal(t, domain.PhasePending, build.Status)
	assert.Equal(t, domain.PhasePending, qa.Status)
	assert.Empty(t, qa.BlockedReason)

	_, err = p.UnblockPhase(docs.ID)
	assert.True(t, errors.IsInvalidState(err))
}

func TestUnblockResumesStartedPhase(t *testing.T) {
	p, design, _ := authPlan(t)
	_, err := p.StartTask("task-1")
	require.NoError(t, err)
	_, err = p.BlockPhase(design.ID, "waiting on legal")
	require.NoError(t, err)

	_, err = p.CompleteTask("task-1", TaskResult{Success: true})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseBlocked, design.Status)

	_, err = p.UnblockPhase(design.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCompleted, design.Status)
	require.NoError(t, p.Validate())
}

func TestDirectBlockSurvivesUpstreamUnblock(t *testing.T) {
	p, design, build := authPlan(t)
	_, err := p.BlockPhase(build.ID, "team unavailable")
	require.NoError(t, err)
	_, err = p.BlockPhase(design.ID, "vendor")
	require.NoError(t, err)

	_, err = p.UnblockPhase(design.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseBlocked, build.Status)
	assert.Equal(t, "team unavailable", build.BlockedReason)
}

func TestHistoryRecordsTransitions(t *testing.T) {
	p, design, _ := authPlan(t)
	_, _ = p.StartTask("task-1")
	_, _ = p.CompleteTask("task-1", TaskResult{Success: true})

	task := p.Tasks["task-1"]
	require.Len(t, task.History, 2)
	assert.Equal(t, "pending", task.History[0].From)
	assert.Equal(t, "completed", task.History[1].To)
	require.Len(t, design.History, 2)
	assert.NotNil(t, design.StartedAt)
	assert.NotNil(t, design.CompletedAt)
}
