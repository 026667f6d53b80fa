package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
	"github.com/felixgeelhaar/plancraft/internal/plan"
	"github.com/felixgeelhaar/plancraft/internal/workspace"
)

func authPlan(t *testing.T) *plan.Plan {
	t.Helper()
	p, err := plan.New("plan-cp", "Auth", "add login")
	require.NoError(t, err)
	design, err := p.CreatePhase(plan.PhaseSpec{Name: "Design", ExitCriteria: []string{"reviewed"}})
	require.NoError(t, err)
	build, err := p.CreatePhase(plan.PhaseSpec{Name: "Build", DependsOn: []domain.PhaseID{design.ID}})
	require.NoError(t, err)
	t1, err := p.CreateTask(design.ID, plan.TaskSpec{Title: "Write spec", Context: &plan.TaskContext{
		Objective:   "agree on flows",
		Constraints: []plan.Constraint{{Text: "no SSO", Type: domain.ConstraintSoft}},
	}})
	require.NoError(t, err)
	_, err = p.CreateTask(build.ID, plan.TaskSpec{Title: "Login form"})
	require.NoError(t, err)
	_, err = p.AddSubtask(t1.ID, plan.SubtaskSpec{Title: "outline"})
	require.NoError(t, err)
	_, err = p.StartTask(t1.ID)
	require.NoError(t, err)
	_, err = p.CompleteTask(t1.ID, plan.TaskResult{Success: true, Output: "done", Artifacts: []string{"spec.md"}})
	require.NoError(t, err)
	return p
}

func TestCreateRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := workspace.NewFSStore(t.TempDir())
	m := NewManager(store)
	p := authPlan(t)

	sum, err := m.Create(ctx, p, map[string]string{"reason": "test"})
	require.NoError(t, err)
	assert.NotEmpty(t, sum.ID)
	assert.Equal(t, p.ID, sum.PlanID)
	assert.Equal(t, "plan-cp", p.Workspace, "workspace allocated on first checkpoint")

	restored, err := m.Restore(ctx, p.Workspace, sum.ID)
	require.NoError(t, err)

	want, err := json.Marshal(p)
	require.NoError(t, err)
	got, err := json.Marshal(restored)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	restored.Name = "mutated"
	again, err := m.Restore(ctx, p.Workspace, sum.ID)
	require.NoError(t, err)
	assert.Equal(t, "Auth", again.Name, "restore must not alter the stored checkpoint")
}

func TestRestoreUnknown(t *testing.T) {
	ctx := context.Background()
	store := workspace.NewFSStore(t.TempDir())
	m := NewManager(store)
	ws, err := store.Allocate(ctx, "plan-cp")
	require.NoError(t, err)

	_, err = m.Restore(ctx, ws, "0192a3b4-0000-7000-8000-000000000000")
	assert.True(t, errors.IsNotFound(err))
}

func TestRestoreDetectsTampering(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	m := NewManager(workspace.NewFSStore(root))
	p := authPlan(t)
	sum, err := m.Create(ctx, p, nil)
	require.NoError(t, err)

	path := filepath.Join(root, p.Workspace, "checkpoints", sum.ID.String()+".json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"name": "Auth"`, `"name": "Evil"`, 1)
	require.NotEqual(t, string(data), tampered)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0644))

	_, err = m.Restore(ctx, p.Workspace, sum.ID)
	require.Error(t, err)
	assert.True(t, errors.IsStorage(err))
	assert.Equal(t, errors.ErrCodeCheckpointCorrupt, errors.CodeOf(err))
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	ctx := context.Background()
	store := workspace.NewFSStore(t.TempDir())
	m := NewManager(store)
	p := authPlan(t)
	ws, err := store.Allocate(ctx, p.ID)
	require.NoError(t, err)
	p.Workspace = ws

	state, err := json.Marshal(p)
	require.NoError(t, err)
	envelope := map[string]any{
		"schema_version": SchemaVersion + 1,
		"id":             "cp-future",
		"plan_id":        p.ID,
		"timestamp":      time.Now().UTC(),
		"digest":         Digest(state),
		"plan_state":     json.RawMessage(state),
		"retention":      map[string]any{"keep": 5},
	}
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	require.NoError(t, store.WriteCheckpoint(ctx, ws, "cp-future", data))

	restored, err := m.Restore(ctx, ws, "cp-future")
	require.NoError(t, err)
	assert.Equal(t, p.Name, restored.Name)
}

func TestListAndLatest(t *testing.T) {
	ctx := context.Background()
	m := NewManager(workspace.NewFSStore(t.TempDir()))
	p := authPlan(t)

	var ids []domain.CheckpointID
	for i := 0; i < 3; i++ {
		sum, err := m.Create(ctx, p, nil)
		require.NoError(t, err)
		ids = append(ids, sum.ID)
	}

	list, err := m.List(ctx, p.Workspace)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[0], list[2].ID)
	assert.Positive(t, list[0].Size)

	latest, err := m.Latest(ctx, p.Workspace)
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest)
}

func TestLatestEmptyWorkspace(t *testing.T) {
	ctx := context.Background()
	store := workspace.NewFSStore(t.TempDir())
	ws, err := store.Allocate(ctx, "plan-empty")
	require.NoError(t, err)

	_, err = NewManager(store).Latest(ctx, ws)
	assert.True(t, errors.IsNotFound(err))
}

// blockingStore never completes a write until its context ends.
type blockingStore struct {
	workspace.Store
	written bool
}

func (s *blockingStore) Allocate(ctx context.Context, id domain.PlanID) (string, error) {
	return id.String(), nil
}

func (s *blockingStore) WriteCheckpoint(ctx context.Context, ws string, id domain.CheckpointID, data []byte) error {
	<-ctx.Done()
	return errors.NewStoreTimeoutError("write checkpoint", ctx.Err())
}

func TestCreateTimesOut(t *testing.T) {
	store := &blockingStore{}
	m := NewManager(store, WithTimeout(20*time.Millisecond))
	p := authPlan(t)

	start := time.Now()
	_, err := m.Create(context.Background(), p, nil)
	require.Error(t, err)
	assert.True(t, errors.IsStorage(err))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, store.written)
}

func TestCreateHonoursCancellation(t *testing.T) {
	m := NewManager(workspace.NewFSStore(t.TempDir()))
	p := authPlan(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Create(ctx, p, nil)
	assert.True(t, errors.IsStorage(err))
}

func TestDigestStable(t *testing.T) {
	a := Digest([]byte("plan"))
	assert.Equal(t, a, Digest([]byte("plan")))
	assert.NotEqual(t, a, Digest([]byte("plan ")))
	assert.Len(t, a, 64)
}
