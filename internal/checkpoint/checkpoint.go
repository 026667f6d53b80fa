// Package checkpoint persists and restores plan snapshots.
//
// A checkpoint is a versioned JSON envelope around the serialized plan. The
// envelope carries a BLAKE3 digest of the plan payload so that truncated or
// edited checkpoints are rejected on restore instead of silently loaded.
// Checkpoint ids are UUIDv7 values, so lexical order is creation order.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
	"github.com/felixgeelhaar/plancraft/internal/log"
	"github.com/felixgeelhaar/plancraft/internal/plan"
	"github.com/felixgeelhaar/plancraft/internal/workspace"
)

// SchemaVersion is written into every new checkpoint.
const SchemaVersion = 1

// DefaultTimeout bounds a single checkpoint read or write.
const DefaultTimeout = 10 * time.Second

// Checkpoint is the persisted envelope.
type Checkpoint struct {
	SchemaVersion int                 `json:"schema_version"`
	ID            domain.CheckpointID `json:"id"`
	PlanID        domain.PlanID       `json:"plan_id"`
	Timestamp     time.Time           `json:"timestamp"`
	Digest        string              `json:"digest"`
	PlanState     json.RawMessage     `json:"plan_state"`
	Context       map[string]string   `json:"context,omitempty"`
}

// Summary describes a checkpoint without its payload.
type Summary struct {
	ID        domain.CheckpointID `json:"id" yaml:"id"`
	PlanID    domain.PlanID       `json:"plan_id" yaml:"plan_id"`
	Timestamp time.Time           `json:"timestamp" yaml:"timestamp"`
	Size      int                 `json:"size" yaml:"size"`
	Digest    string              `json:"digest" yaml:"digest"`
	Context   map[string]string   `json:"context,omitempty" yaml:"context,omitempty"`
}

// Manager creates and restores checkpoints through a workspace store.
type Manager struct {
	store   workspace.Store
	timeout time.Duration
	logger  *log.Logger
	now     func() time.Time
	newID   func() (uuid.UUID, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout bounds each store call. Zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a checkpoint manager on top of store.
func NewManager(store workspace.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		timeout: DefaultTimeout,
		logger:  log.Discard(),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewV7,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Timeout returns the per-operation deadline.
func (m *Manager) Timeout() time.Duration { return m.timeout }

// Store returns the workspace store checkpoints are written to.
func (m *Manager) Store() workspace.Store { return m.store }

// Create serializes p and publishes it as a new checkpoint. The caller must
// not mutate p concurrently; the engine passes a private snapshot. If the
// plan has no workspace yet one is allocated.
func (m *Manager) Create(ctx context.Context, p *plan.Plan, aux map[string]string) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ws := p.Workspace
	if ws == "" {
		var err error
		if ws, err = m.store.Allocate(ctx, p.ID); err != nil {
			return Summary{}, err
		}
		p.Workspace = ws
	}

	uid, err := m.newID()
	if err != nil {
		return Summary{}, errors.Storage(errors.ErrCodeEncode, "generate checkpoint id", err)
	}

	state, err := json.Marshal(p)
	if err != nil {
		return Summary{}, errors.Storage(errors.ErrCodeEncode, "encode plan state", err)
	}

	cp := Checkpoint{
		SchemaVersion: SchemaVersion,
		ID:            domain.CheckpointID(uid.String()),
		PlanID:        p.ID,
		Timestamp:     m.now(),
		Digest:        Digest(state),
		PlanState:     state,
		Context:       aux,
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return Summary{}, errors.Storage(errors.ErrCodeEncode, "encode checkpoint", err)
	}

	if err := m.store.WriteCheckpoint(ctx, ws, cp.ID, data); err != nil {
		return Summary{}, err
	}

	m.logger.InfoContext(ctx, "checkpoint created",
		"plan_id", p.ID, "checkpoint_id", cp.ID, "bytes", len(data))
	return cp.Summary(len(data)), nil
}

// Load reads and decodes a checkpoint without restoring it. Unknown fields
// are ignored so older binaries can read newer checkpoints.
func (m *Manager) Load(ctx context.Context, ws string, id domain.CheckpointID) (*Checkpoint, int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	data, err := m.store.ReadCheckpoint(ctx, ws, id)
	if err != nil {
		return nil, 0, err
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, 0, errors.Storage(errors.ErrCodeCheckpointCorrupt,
			fmt.Sprintf("decode checkpoint %s", id), err)
	}
	if cp.SchemaVersion > SchemaVersion {
		m.logger.WarnContext(ctx, "checkpoint written by a newer schema",
			"checkpoint_id", id, "schema_version", cp.SchemaVersion, "supported", SchemaVersion)
	}
	if cp.ID == "" {
		cp.ID = id
	}
	return &cp, len(data), nil
}

// Restore loads a checkpoint, verifies its digest, and rebuilds the plan. The
// returned plan is independent of the stored bytes; restoring never changes
// the checkpoint itself.
func (m *Manager) Restore(ctx context.Context, ws string, id domain.CheckpointID) (*plan.Plan, error) {
	cp, _, err := m.Load(ctx, ws, id)
	if err != nil {
		return nil, err
	}
	p, err := cp.Plan()
	if err != nil {
		return nil, err
	}
	if p.Workspace == "" {
		p.Workspace = ws
	}
	m.logger.InfoContext(ctx, "checkpoint restored", "plan_id", p.ID, "checkpoint_id", cp.ID)
	return p, nil
}

// Plan verifies the envelope and decodes the plan payload.
func (cp *Checkpoint) Plan() (*plan.Plan, error) {
	if len(cp.PlanState) == 0 {
		return nil, corrupt(cp.ID, "missing plan state", nil)
	}
	// The envelope is written indented; the digest covers the compact form.
	var compact bytes.Buffer
	if err := json.Compact(&compact, cp.PlanState); err != nil {
		return nil, corrupt(cp.ID, "decode plan state", err)
	}
	if cp.Digest != "" && cp.Digest != Digest(compact.Bytes()) {
		return nil, corrupt(cp.ID, "digest mismatch", nil)
	}

	var p plan.Plan
	if err := json.Unmarshal(cp.PlanState, &p); err != nil {
		return nil, corrupt(cp.ID, "decode plan state", err)
	}
	if cp.PlanID != "" && p.ID != cp.PlanID {
		return nil, corrupt(cp.ID, fmt.Sprintf("plan id %s does not match envelope %s", p.ID, cp.PlanID), nil)
	}
	if err := p.Validate(); err != nil {
		return nil, corrupt(cp.ID, "plan state is inconsistent", err)
	}
	return &p, nil
}

// List returns summaries of every checkpoint in a workspace, newest first.
// Checkpoints that cannot be decoded are skipped and logged.
func (m *Manager) List(ctx context.Context, ws string) ([]Summary, error) {
	ids, err := m.ids(ctx, ws)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		cp, size, err := m.Load(ctx, ws, id)
		if err != nil {
			if errors.IsStorage(err) && errors.CodeOf(err) == errors.ErrCodeCheckpointCorrupt {
				m.logger.WarnContext(ctx, "skipping unreadable checkpoint", "checkpoint_id", id)
				continue
			}
			return nil, err
		}
		out = append(out, cp.Summary(size))
	}
	return out, nil
}

// Latest returns the id of the newest checkpoint in a workspace.
func (m *Manager) Latest(ctx context.Context, ws string) (domain.CheckpointID, error) {
	ids, err := m.ids(ctx, ws)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", errors.NotFound(errors.ErrCodeCheckpointNotFound, "checkpoint for workspace", ws).
			WithSuggestion("Create the plan with 'plancraft plan create' first")
	}
	return ids[0], nil
}

// ids lists checkpoint ids newest first.
func (m *Manager) ids(ctx context.Context, ws string) ([]domain.CheckpointID, error) {
	lctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	entries, err := m.store.ListStructure(lctx, ws)
	if err != nil {
		return nil, err
	}
	ids := workspace.Checkpoints(entries)
	slices.SortFunc(ids, func(a, b domain.CheckpointID) int {
		return strings.Compare(b.String(), a.String())
	})
	return ids, nil
}

// Summary describes cp given the size of its encoded form.
func (cp *Checkpoint) Summary(size int) Summary {
	return Summary{
		ID:        cp.ID,
		PlanID:    cp.PlanID,
		Timestamp: cp.Timestamp,
		Size:      size,
		Digest:    cp.Digest,
		Context:   cp.Context,
	}
}

// Digest returns the hex BLAKE3 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func corrupt(id domain.CheckpointID, msg string, cause error) error {
	return errors.Storage(errors.ErrCodeCheckpointCorrupt,
		fmt.Sprintf("checkpoint %s: %s", id, msg), cause).
		WithSuggestion("Restore an earlier checkpoint with 'plancraft checkpoint restore <id>'")
}
