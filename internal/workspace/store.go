// Package workspace persists plan artifacts and checkpoints.
//
// Every plan gets its own workspace holding two namespaces: artifacts, written
// by task execution, and checkpoints, written by the checkpoint manager. A
// workspace is addressed by the reference returned from Allocate. Writes are
// all-or-nothing: a reader either sees the previous content or the new one.
package workspace

import (
	"context"
	stderrors "errors"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
)

// EntryKind tells artifacts and checkpoints apart in a listing.
type EntryKind string

const (
	KindArtifact   EntryKind = "artifact"
	KindCheckpoint EntryKind = "checkpoint"
)

const (
	artifactsDir   = "artifacts"
	checkpointsDir = "checkpoints"
)

// Entry is one stored object in a workspace.
type Entry struct {
	Path     string    `json:"path" yaml:"path"`
	Kind     EntryKind `json:"kind" yaml:"kind"`
	Size     int64     `json:"size" yaml:"size"`
	Modified time.Time `json:"modified" yaml:"modified"`
}

// Store is the persistence boundary used by the engine.
type Store interface {
	// Allocate prepares the workspace for a plan and returns its reference.
	// Calling it again for the same plan returns the same reference.
	Allocate(ctx context.Context, planID domain.PlanID) (string, error)
	WriteArtifact(ctx context.Context, ws, name string, data []byte) error
	WriteCheckpoint(ctx context.Context, ws string, id domain.CheckpointID, data []byte) error
	// ReadCheckpoint returns a NotFound error for unknown ids.
	ReadCheckpoint(ctx context.Context, ws string, id domain.CheckpointID) ([]byte, error)
	ListStructure(ctx context.Context, ws string) ([]Entry, error)
}

// Lister is implemented by stores that can enumerate their workspaces.
type Lister interface {
	Workspaces(ctx context.Context) ([]string, error)
}

// Checkpoints returns the checkpoint ids in a listing, in listing order.
func Checkpoints(entries []Entry) []domain.CheckpointID {
	var ids []domain.CheckpointID
	for _, e := range entries {
		if e.Kind != KindCheckpoint {
			continue
		}
		name := path.Base(e.Path)
		ids = append(ids, domain.CheckpointID(strings.TrimSuffix(name, ".json")))
	}
	return ids
}

// Filter keeps the entries whose path matches a doublestar pattern such as
// "artifacts/**/*.md". An empty pattern keeps everything.
func Filter(entries []Entry, pattern string) ([]Entry, error) {
	if pattern == "" {
		return entries, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.Validation(errors.ErrCodeInvalidDefinition, "invalid pattern %q", pattern)
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		ok, err := doublestar.Match(pattern, e.Path)
		if err != nil {
			return nil, errors.Validation(errors.ErrCodeInvalidDefinition, "invalid pattern %q: %v", pattern, err)
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// cleanArtifactPath normalises an artifact name and rejects names that would
// escape the artifacts namespace.
func cleanArtifactPath(name string) (string, error) {
	if name == "" {
		return "", errors.Validation(errors.ErrCodeEmptyName, "artifact path cannot be empty")
	}
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if path.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.Validation(errors.ErrCodeInvalidDefinition, "artifact path %q escapes the workspace", name)
	}
	return clean, nil
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
}

// storageError maps an I/O failure onto the storage error kind, reporting
// deadline and cancellation separately.
func storageError(op string, code errors.ErrorCode, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.NewStoreTimeoutError(op, err)
	}
	return errors.Storage(code, op+" failed", err)
}
