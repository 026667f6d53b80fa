package tui

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/plan"
)

func watchPlan(t *testing.T) *plan.Plan {
	t.Helper()
	p, err := plan.New("plan-watch", "Auth", "")
	require.NoError(t, err)
	design, err := p.CreatePhase(plan.PhaseSpec{Name: "Design"})
	require.NoError(t, err)
	build, err := p.CreatePhase(plan.PhaseSpec{Name: "Build", DependsOn: []domain.PhaseID{design.ID}})
	require.NoError(t, err)
	_, err = p.CreateTask(design.ID, plan.TaskSpec{Title: "Write spec"})
	require.NoError(t, err)
	_, err = p.CreateTask(build.ID, plan.TaskSpec{Title: "Login form"})
	require.NoError(t, err)
	return p
}

func staticLoader(p *plan.Plan, id domain.CheckpointID) Loader {
	return func(context.Context) (Snapshot, error) {
		return Snapshot{Plan: p, Checkpoint: id}, nil
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestModel_LoadAndRender(t *testing.T) {
	p := watchPlan(t)
	m := NewModel(staticLoader(p, "cp-1"), nil, true)
	assert.Equal(t, "Loading plan...", m.View())

	msg := m.reload()()
	require.IsType(t, snapshotMsg{}, msg)

	m, _ = update(t, m, msg)
	assert.Equal(t, 1, m.reloads)

	view := m.View()
	assert.Contains(t, view, "plancraft watch · Auth")
	assert.Contains(t, view, "checkpoint cp-1")
	assert.Contains(t, view, "0% 0/2 tasks")
	assert.Contains(t, view, "task-1 Write spec pending")
	assert.Contains(t, view, "Next: task-1 Write spec")
	assert.Contains(t, view, "(not watching)")
}

func TestModel_CheckpointTriggersReload(t *testing.T) {
	p := watchPlan(t)
	var calls atomic.Int32
	load := func(ctx context.Context) (Snapshot, error) {
		calls.Add(1)
		return Snapshot{Plan: p, Checkpoint: "cp-2"}, nil
	}
	ch := make(chan domain.CheckpointID, 1)
	m := NewModel(load, ch, true)

	ch <- "cp-2"
	msg := m.waitForCheckpoint()()
	assert.Equal(t, CheckpointMsg{ID: "cp-2"}, msg)

	m, cmd := update(t, m, msg)
	require.NotNil(t, cmd)

	close(ch)
	assert.Equal(t, watchClosedMsg{}, m.waitForCheckpoint()())
	m, _ = update(t, m, watchClosedMsg{})
	assert.Nil(t, m.waitForCheckpoint())
}

func TestModel_FinishedPlan(t *testing.T) {
	p := watchPlan(t)
	for _, id := range []domain.TaskID{"task-1", "task-2"} {
		_, err := p.StartTask(id)
		require.NoError(t, err)
		_, err = p.CompleteTask(id, plan.TaskResult{Success: true})
		require.NoError(t, err)
	}

	m := NewModel(staticLoader(p, "cp-9"), nil, true)
	m, _ = update(t, m, m.reload()())

	view := m.View()
	assert.Contains(t, view, "100% 2/2 tasks")
	assert.Contains(t, view, "all tasks completed")
	assert.NotContains(t, view, "Login form")
}

func TestModel_LoadError(t *testing.T) {
	m := NewModel(func(context.Context) (Snapshot, error) {
		return Snapshot{}, stderrors.New("no checkpoints")
	}, nil, true)

	m, _ = update(t, m, m.reload()())
	assert.Contains(t, m.View(), "Error: no checkpoints")
}

func TestModel_Keys(t *testing.T) {
	m := NewModel(staticLoader(watchPlan(t), "cp-1"), nil, true)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	assert.IsType(t, snapshotMsg{}, cmd())

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View())
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel(staticLoader(watchPlan(t), "cp-1"), nil, true)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 50, Height: 20})
	assert.Equal(t, 30, m.bar.Width)
	assert.True(t, m.ready)
}

func TestWatchDir(t *testing.T) {
	dir := t.TempDir()
	w, err := WatchDir(dir, nil)
	require.NoError(t, err)
	defer w.Close()

	tmp := filepath.Join(dir, ".tmp-123")
	require.NoError(t, os.WriteFile(tmp, []byte("{}"), 0644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, "cp-abc.json")))

	select {
	case id := <-w.Changes():
		assert.Equal(t, domain.CheckpointID("cp-abc"), id)
	case <-time.After(5 * time.Second):
		t.Fatal("no checkpoint event")
	}
}

func TestWatchDir_MissingDir(t *testing.T) {
	_, err := WatchDir(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestPoll(t *testing.T) {
	var calls atomic.Int32
	latest := func(context.Context) (domain.CheckpointID, error) {
		if calls.Add(1) == 1 {
			return "cp-1", nil
		}
		return "cp-2", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := Poll(ctx, 10*time.Millisecond, latest)

	select {
	case id := <-ch:
		assert.Equal(t, domain.CheckpointID("cp-2"), id)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	for range ch {
	}
}
