package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
)

func TestFSStore_Allocate(t *testing.T) {
	root := t.TempDir()
	s := NewFSStore(root)
	ctx := context.Background()

	ws, err := s.Allocate(ctx, "plan-a")
	require.NoError(t, err)
	again, err := s.Allocate(ctx, "plan-a")
	require.NoError(t, err)
	assert.Equal(t, ws, again)

	for _, sub := range []string{"artifacts", "checkpoints"} {
		info, err := os.Stat(filepath.Join(root, ws, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	_, err = s.Allocate(ctx, "../escape")
	assert.True(t, errors.IsValidation(err))
}

func TestFSStore_CheckpointRoundTrip(t *testing.T) {
	s := NewFSStore(t.TempDir())
	ctx := context.Background()
	ws, err := s.Allocate(ctx, "plan-a")
	require.NoError(t, err)

	require.NoError(t, s.WriteCheckpoint(ctx, ws, "cp-1", []byte(`{"v":1}`)))
	data, err := s.ReadCheckpoint(ctx, ws, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))

	_, err = s.ReadCheckpoint(ctx, ws, "cp-missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestFSStore_WriteCheckpointRequiresAllocation(t *testing.T) {
	s := NewFSStore(t.TempDir())
	err := s.WriteCheckpoint(context.Background(), "never-allocated", "cp-1", []byte("x"))
	assert.True(t, errors.IsStorage(err))
}

func TestFSStore_CancelledWriteLeavesNoTrace(t *testing.T) {
	root := t.TempDir()
	s := NewFSStore(root)
	ws, err := s.Allocate(context.Background(), "plan-a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.WriteCheckpoint(ctx, ws, "cp-1", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.IsStorage(err))
	assert.Equal(t, errors.ErrCodeStoreTimeout, errors.CodeOf(err))

	files, err := os.ReadDir(filepath.Join(root, ws, "checkpoints"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFSStore_ExpiredDeadline(t *testing.T) {
	s := NewFSStore(t.TempDir())
	ws, err := s.Allocate(context.Background(), "plan-a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	err = s.WriteCheckpoint(ctx, ws, "cp-1", []byte("x"))
	assert.True(t, errors.IsStorage(err))
}

func TestFSStore_Artifacts(t *testing.T) {
	s := NewFSStore(t.TempDir())
	ctx := context.Background()
	ws, err := s.Allocate(ctx, "plan-a")
	require.NoError(t, err)

	require.NoError(t, s.WriteArtifact(ctx, ws, "docs/spec.md", []byte("# spec")))
	require.NoError(t, s.WriteArtifact(ctx, ws, "out.txt", []byte("ok")))
	require.NoError(t, s.WriteArtifact(ctx, ws, "out.txt", []byte("overwritten")))
	require.NoError(t, s.WriteCheckpoint(ctx, ws, "cp-1", []byte("{}")))

	for _, bad := range []string{"", "../x", "/etc/passwd", ".."} {
		err := s.WriteArtifact(ctx, ws, bad, []byte("x"))
		assert.True(t, errors.IsValidation(err), "path %q", bad)
	}

	entries, err := s.ListStructure(ctx, ws)
	require.NoError(t, err)
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
		assert.False(t, strings.Contains(e.Path, tempPrefix))
	}
	assert.Equal(t, []string{"artifacts/docs/spec.md", "artifacts/out.txt", "checkpoints/cp-1.json"}, paths)
	assert.Equal(t, KindCheckpoint, entries[2].Kind)
	assert.Equal(t, int64(len("overwritten")), entries[1].Size)
	assert.Equal(t, []domain.CheckpointID{"cp-1"}, Checkpoints(entries))
}

func TestFSStore_ListUnknownWorkspace(t *testing.T) {
	s := NewFSStore(t.TempDir())
	_, err := s.ListStructure(context.Background(), "nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestFSStore_Workspaces(t *testing.T) {
	s := NewFSStore(filepath.Join(t.TempDir(), "not-yet"))
	ctx := context.Background()

	got, err := s.Workspaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, _ = s.Allocate(ctx, "plan-b")
	_, _ = s.Allocate(ctx, "plan-a")
	got, err = s.Workspaces(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"plan-a", "plan-b"}, got)
}

func TestFilter(t *testing.T) {
	entries := []Entry{
		{Path: "artifacts/docs/spec.md", Kind: KindArtifact},
		{Path: "artifacts/docs/deep/notes.md", Kind: KindArtifact},
		{Path: "artifacts/out.txt", Kind: KindArtifact},
		{Path: "checkpoints/cp-1.json", Kind: KindCheckpoint},
	}

	got, err := Filter(entries, "artifacts/**/*.md")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = Filter(entries, "")
	require.NoError(t, err)
	assert.Len(t, got, 4)

	_, err = Filter(entries, "artifacts/[")
	assert.True(t, errors.IsValidation(err))
}
