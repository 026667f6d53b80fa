package workspace

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
)

const tempPrefix = ".tmp-"

// FSStore keeps each workspace in a directory under Root:
//
//	<root>/<plan-id>/artifacts/...
//	<root>/<plan-id>/checkpoints/<checkpoint-id>.json
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at root.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

// Root returns the directory holding all workspaces.
func (s *FSStore) Root() string { return s.root }

// Dir returns the directory of a workspace.
func (s *FSStore) Dir(ws string) string { return filepath.Join(s.root, ws) }

// CheckpointDir returns the directory holding a workspace's checkpoints.
func (s *FSStore) CheckpointDir(ws string) string {
	return filepath.Join(s.root, ws, checkpointsDir)
}

func (s *FSStore) Allocate(ctx context.Context, planID domain.PlanID) (string, error) {
	if err := planID.Validate(); err != nil {
		return "", errors.Validation(errors.ErrCodeInvalidDefinition, "cannot allocate workspace: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return "", storageError("allocate workspace", errors.ErrCodeStoreWrite, err)
	}
	ws := planID.String()
	for _, sub := range []string{artifactsDir, checkpointsDir} {
		if err := os.MkdirAll(filepath.Join(s.root, ws, sub), 0755); err != nil {
			return "", storageError("allocate workspace", errors.ErrCodeStoreWrite, err)
		}
	}
	return ws, nil
}

func (s *FSStore) WriteArtifact(ctx context.Context, ws, name string, data []byte) error {
	clean, err := cleanArtifactPath(name)
	if err != nil {
		return err
	}
	target := filepath.Join(s.root, ws, artifactsDir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return storageError("write artifact", errors.ErrCodeStoreWrite, err)
	}
	return s.publish(ctx, "write artifact", target, data)
}

func (s *FSStore) WriteCheckpoint(ctx context.Context, ws string, id domain.CheckpointID, data []byte) error {
	dir := filepath.Join(s.root, ws, checkpointsDir)
	if _, err := os.Stat(dir); err != nil {
		return storageError("write checkpoint", errors.ErrCodeStoreUnavailable,
			fmt.Errorf("workspace %s is not allocated: %w", ws, err))
	}
	return s.publish(ctx, "write checkpoint", filepath.Join(dir, id.String()+".json"), data)
}

func (s *FSStore) ReadCheckpoint(ctx context.Context, ws string, id domain.CheckpointID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageError("read checkpoint", errors.ErrCodeStoreRead, err)
	}
	if strings.ContainsAny(id.String(), `/\`) {
		return nil, errors.NewCheckpointNotFoundError(id.String())
	}
	data, err := os.ReadFile(filepath.Join(s.root, ws, checkpointsDir, id.String()+".json"))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewCheckpointNotFoundError(id.String())
		}
		return nil, storageError("read checkpoint", errors.ErrCodeStoreRead, err)
	}
	return data, nil
}

func (s *FSStore) ListStructure(ctx context.Context, ws string) ([]Entry, error) {
	base := filepath.Join(s.root, ws)
	var entries []Entry
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		kind := KindArtifact
		if strings.HasPrefix(rel, checkpointsDir+"/") {
			kind = KindCheckpoint
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: rel, Kind: kind, Size: info.Size(), Modified: info.ModTime()})
		return nil
	})
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFound(errors.ErrCodePlanNotFound, "workspace", ws)
		}
		return nil, storageError("list workspace", errors.ErrCodeStoreRead, err)
	}
	sortEntries(entries)
	return entries, nil
}

// Workspaces lists the allocated workspaces.
func (s *FSStore) Workspaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageError("list workspaces", errors.ErrCodeStoreRead, err)
	}
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, storageError("list workspaces", errors.ErrCodeStoreRead, err)
	}
	var out []string
	for _, d := range dirents {
		if d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
			out = append(out, d.Name())
		}
	}
	return out, nil
}

// publish writes data to a temp file next to target, syncs it, and renames it
// into place. The target is untouched when any step fails or ctx ends first.
func (s *FSStore) publish(ctx context.Context, op, target string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return storageError(op, errors.ErrCodeStoreWrite, err)
	}

	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, tempPrefix+filepath.Base(target)+"-*")
	if err != nil {
		return storageError(op, errors.ErrCodeStoreWrite, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return storageError(op, errors.ErrCodeStoreWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return storageError(op, errors.ErrCodeStoreWrite, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return storageError(op, errors.ErrCodeStoreWrite, err)
	}

	if err := ctx.Err(); err != nil {
		cleanup()
		return storageError(op, errors.ErrCodeStoreWrite, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return storageError(op, errors.ErrCodeStoreWrite, err)
	}

	// Persist the rename itself. Not every platform supports syncing a
	// directory, so a failure here is ignored.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
