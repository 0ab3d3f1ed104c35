package orchestrator

import (
	"encoding/json"
	"sync"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
	"github.com/mandubian/ccos-sub020/internal/rtfs"
	"github.com/mandubian/ccos-sub020/internal/types"
)

// Checkpoint is a serialized snapshot of a paused plan's lexical and
// execution-context state, addressed by a content hash of that state
// (spec §4.7: checkpoint ids are a hash of serialized context, mirroring
// plan ids being a hash of body).
type Checkpoint struct {
	ID       string
	PlanID   string
	IntentID string

	// Bindings is the plain-data projection of the evaluator's Env.Snapshot,
	// via Value.Native(); function-valued bindings (closures) cannot survive
	// serialization and are dropped, matching the open question decision
	// recorded for checkpoint/resume (closures are re-established by
	// re-evaluating the plan body's defn/fn forms on resume, not restored
	// from the checkpoint itself).
	Bindings map[string]any
	// ExecutionContext is the plain-data projection of the host's
	// set!/get-backed execution context.
	ExecutionContext map[string]any
}

// NewCheckpoint serializes env's bindings and the host's execution context
// into a content-addressed Checkpoint for planID/intentID.
func NewCheckpoint(planID, intentID string, envSnapshot map[string]rtfs.Value, hostContext map[string]rtfs.Value) Checkpoint {
	bindings := make(map[string]any, len(envSnapshot))
	for k, v := range envSnapshot {
		if v.Kind == rtfs.KindFunction {
			continue
		}
		bindings[k] = v.Native()
	}
	execContext := make(map[string]any, len(hostContext))
	for k, v := range hostContext {
		execContext[k] = v.Native()
	}

	cp := Checkpoint{
		PlanID:           planID,
		IntentID:         intentID,
		Bindings:         bindings,
		ExecutionContext: execContext,
	}
	// encoding/json marshals map keys in sorted order, giving a canonical,
	// deterministic byte representation to hash regardless of Go's
	// randomized map iteration order.
	canonical, err := json.Marshal(struct {
		PlanID           string
		IntentID         string
		Bindings         map[string]any
		ExecutionContext map[string]any
	}{planID, intentID, bindings, execContext})
	if err != nil {
		canonical = []byte(planID + intentID)
	}
	// Checkpoint ids carry a literal "cp-" prefix over the content hash
	// (spec §6), distinguishing them from plan ids at a glance in logs.
	cp.ID = "cp-" + types.ContentHash(canonical)
	return cp
}

// RestoreEnv defines every checkpoint binding back into env, converting
// each plain-data value back into an rtfs.Value.
func (cp Checkpoint) RestoreEnv(env *rtfs.Env) {
	snapshot := make(map[string]rtfs.Value, len(cp.Bindings))
	for k, v := range cp.Bindings {
		snapshot[k] = rtfs.FromNative(v)
	}
	rtfs.RestoreInto(env, snapshot)
}

// RestoreHostContext converts cp's execution-context entries back into
// rtfs.Value form, suitable for host.RestoreContext.
func (cp Checkpoint) RestoreHostContext() map[string]rtfs.Value {
	out := make(map[string]rtfs.Value, len(cp.ExecutionContext))
	for k, v := range cp.ExecutionContext {
		out[k] = rtfs.FromNative(v)
	}
	return out
}

// CheckpointStore archives checkpoints by id.
type CheckpointStore interface {
	Put(cp Checkpoint) error
	Get(id string) (Checkpoint, bool)
}

// MemoryCheckpointStore is the default in-process CheckpointStore.
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]Checkpoint
}

// NewMemoryCheckpointStore constructs an empty MemoryCheckpointStore.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{checkpoints: map[string]Checkpoint{}}
}

// Put archives cp under its id.
func (s *MemoryCheckpointStore) Put(cp Checkpoint) error {
	if cp.ID == "" {
		return ccoserr.New(ccoserr.KindParse, "checkpoint store: cannot archive a checkpoint with no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.ID] = cp
	return nil
}

// Get returns the archived checkpoint for id, if any.
func (s *MemoryCheckpointStore) Get(id string) (Checkpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[id]
	return cp, ok
}
