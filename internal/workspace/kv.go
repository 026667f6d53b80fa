package workspace

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/errors"
)

// DefaultBucket is the KV bucket used when none is configured.
const DefaultBucket = "PLANCRAFT_WORKSPACES"

const (
	metaKey        = "meta"
	discardTimeout = 5 * time.Second
)

// KVStore keeps workspaces in a NATS JetStream key-value bucket. Keys are
//
//	<plan-id>.meta
//	<plan-id>.artifacts.<base64url(path)>
//	<plan-id>.checkpoints.<checkpoint-id>
//
// A single Put is atomic, so every write is published all-or-nothing.
type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore opens or creates the bucket and returns a store on top of it.
func NewKVStore(ctx context.Context, js jetstream.JetStream, bucket string) (*KVStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, storageError("open bucket "+bucket, errors.ErrCodeStoreUnavailable, err)
	}
	return &KVStore{kv: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "plancraft workspaces",
		History:     1,
	})
}

func (s *KVStore) Allocate(ctx context.Context, planID domain.PlanID) (string, error) {
	if err := planID.Validate(); err != nil {
		return "", errors.Validation(errors.ErrCodeInvalidDefinition, "cannot allocate workspace: %v", err)
	}
	ws := planID.String()
	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	if _, err := s.kv.Create(ctx, key(ws, metaKey), stamp); err != nil && !stderrors.Is(err, jetstream.ErrKeyExists) {
		return "", storageError("allocate workspace", errors.ErrCodeStoreWrite, err)
	}
	return ws, nil
}

func (s *KVStore) WriteArtifact(ctx context.Context, ws, name string, data []byte) error {
	clean, err := cleanArtifactPath(name)
	if err != nil {
		return err
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(clean))
	if _, err := s.kv.Put(ctx, key(ws, artifactsDir, encoded), data); err != nil {
		return storageError("write artifact", errors.ErrCodeStoreWrite, err)
	}
	return nil
}

func (s *KVStore) WriteCheckpoint(ctx context.Context, ws string, id domain.CheckpointID, data []byte) error {
	if _, err := s.kv.Get(ctx, key(ws, metaKey)); err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return storageError("write checkpoint", errors.ErrCodeStoreUnavailable,
				fmt.Errorf("workspace %s is not allocated", ws))
		}
		return storageError("write checkpoint", errors.ErrCodeStoreWrite, err)
	}
	if err := ctx.Err(); err != nil {
		return storageError("write checkpoint", errors.ErrCodeStoreWrite, err)
	}
	k := key(ws, checkpointsDir, id.String())
	if _, err := s.kv.Put(ctx, k, data); err != nil {
		if ctx.Err() != nil {
			// The server may still have applied the put.
			s.discard(ctx, k)
		}
		return storageError("write checkpoint", errors.ErrCodeStoreWrite, err)
	}
	return nil
}

// discard purges k if it exists. Checkpoint keys are never reused, so a key
// present after a failed put can only come from that put.
func (s *KVStore) discard(ctx context.Context, k string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	if _, err := s.kv.Get(ctx, k); err != nil {
		return
	}
	_ = s.kv.Purge(ctx, k)
}

func (s *KVStore) ReadCheckpoint(ctx context.Context, ws string, id domain.CheckpointID) ([]byte, error) {
	entry, err := s.kv.Get(ctx, key(ws, checkpointsDir, id.String()))
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) || stderrors.Is(err, jetstream.ErrInvalidKey) {
			return nil, errors.NewCheckpointNotFoundError(id.String())
		}
		return nil, storageError("read checkpoint", errors.ErrCodeStoreRead, err)
	}
	return entry.Value(), nil
}

func (s *KVStore) ListStructure(ctx context.Context, ws string) ([]Entry, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, storageError("list workspace", errors.ErrCodeStoreRead, err)
	}

	prefix := ws + "."
	found := false
	var entries []Entry
	for _, k := range keys {
		rest, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		found = true
		kind, name, ok := strings.Cut(rest, ".")
		if !ok {
			continue
		}

		var e Entry
		switch kind {
		case artifactsDir:
			raw, err := base64.RawURLEncoding.DecodeString(name)
			if err != nil {
				continue
			}
			e = Entry{Path: artifactsDir + "/" + string(raw), Kind: KindArtifact}
		case checkpointsDir:
			e = Entry{Path: checkpointsDir + "/" + name + ".json", Kind: KindCheckpoint}
		default:
			continue
		}

		kve, err := s.kv.Get(ctx, k)
		if err != nil {
			if stderrors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, storageError("list workspace", errors.ErrCodeStoreRead, err)
		}
		e.Size = int64(len(kve.Value()))
		e.Modified = kve.Created()
		entries = append(entries, e)
	}
	if !found {
		return nil, errors.NotFound(errors.ErrCodePlanNotFound, "workspace", ws)
	}
	sortEntries(entries)
	return entries, nil
}

// Workspaces lists the allocated workspaces.
func (s *KVStore) Workspaces(ctx context.Context) ([]string, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, storageError("list workspaces", errors.ErrCodeStoreRead, err)
	}
	var out []string
	for _, k := range keys {
		if ws, ok := strings.CutSuffix(k, "."+metaKey); ok && !strings.Contains(ws, ".") {
			out = append(out, ws)
		}
	}
	return out, nil
}

func (s *KVStore) keys(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}
	return keys, nil
}

func key(parts ...string) string {
	return strings.Join(parts, ".")
}
