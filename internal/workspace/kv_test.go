package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
)

func newNATSBackend(t *testing.T) *NATSBackend {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b, err := OpenNATS(ctx, NATSOptions{Embedded: true, StoreDir: t.TempDir(), Bucket: "TEST_WORKSPACES"})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestKVStore_CheckpointRoundTrip(t *testing.T) {
	b := newNATSBackend(t)
	ctx := context.Background()

	ws, err := b.Allocate(ctx, "plan-kv")
	require.NoError(t, err)
	again, err := b.Allocate(ctx, "plan-kv")
	require.NoError(t, err)
	assert.Equal(t, ws, again)

	id := domain.CheckpointID("0192a3b4-aaaa-7bbb-8ccc-123456789abc")
	require.NoError(t, b.WriteCheckpoint(ctx, ws, id, []byte(`{"v":1}`)))

	data, err := b.ReadCheckpoint(ctx, ws, id)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))

	_, err = b.ReadCheckpoint(ctx, ws, "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestKVStore_WriteCheckpointRequiresAllocation(t *testing.T) {
	b := newNATSBackend(t)
	err := b.WriteCheckpoint(context.Background(), "plan-none", "cp-1", []byte("x"))
	assert.True(t, errors.IsStorage(err))
}

func TestKVStore_WriteCheckpointCancelled(t *testing.T) {
	b := newNATSBackend(t)
	ws, err := b.Allocate(context.Background(), "plan-kv")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	id := domain.CheckpointID("0192a3b4-aaaa-7bbb-8ccc-123456789abc")
	err = b.WriteCheckpoint(ctx, ws, id, []byte(`{"v":1}`))
	assert.True(t, errors.IsStorage(err))

	_, err = b.ReadCheckpoint(context.Background(), ws, id)
	assert.True(t, errors.IsNotFound(err))
}

func TestKVStore_DiscardRemovesLatePut(t *testing.T) {
	b := newNATSBackend(t)
	ctx := context.Background()
	ws, err := b.Allocate(ctx, "plan-kv")
	require.NoError(t, err)

	id := domain.CheckpointID("0192a3b4-aaaa-7bbb-8ccc-123456789abc")
	require.NoError(t, b.WriteCheckpoint(ctx, ws, id, []byte(`{"v":1}`)))

	expired, cancel := context.WithCancel(ctx)
	cancel()
	b.discard(expired, key(ws, checkpointsDir, id.String()))

	_, err = b.ReadCheckpoint(ctx, ws, id)
	assert.True(t, errors.IsNotFound(err))
	entries, err := b.ListStructure(ctx, ws)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, KindCheckpoint, e.Kind, e.Path)
	}

	// missing keys are left alone
	b.discard(ctx, key(ws, checkpointsDir, "never-written"))
}

func TestKVStore_ListStructure(t *testing.T) {
	b := newNATSBackend(t)
	ctx := context.Background()
	ws, err := b.Allocate(ctx, "plan-kv")
	require.NoError(t, err)
	_, err = b.Allocate(ctx, "plan-other")
	require.NoError(t, err)

	require.NoError(t, b.WriteArtifact(ctx, ws, "docs/spec v2.md", []byte("# spec")))
	require.NoError(t, b.WriteCheckpoint(ctx, ws, "cp-1", []byte("{}")))

	entries, err := b.ListStructure(ctx, ws)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "artifacts/docs/spec v2.md", entries[0].Path)
	assert.Equal(t, int64(6), entries[0].Size)
	assert.Equal(t, "checkpoints/cp-1.json", entries[1].Path)
	assert.Equal(t, []domain.CheckpointID{"cp-1"}, Checkpoints(entries))

	_, err = b.ListStructure(ctx, "plan-unknown")
	assert.True(t, errors.IsNotFound(err))

	wss, err := b.Workspaces(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"plan-kv", "plan-other"}, wss)
}
