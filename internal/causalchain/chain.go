package causalchain

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mandubian/ccos-sub020/internal/ccoserr"
	"github.com/mandubian/ccos-sub020/internal/telemetry"
)

// Filter narrows Iter results. A zero Filter matches every action.
type Filter struct {
	PlanID     string
	IntentID   string
	ActionType ActionType
}

func (f Filter) matches(a Action) bool {
	if f.PlanID != "" && a.PlanID != f.PlanID {
		return false
	}
	if f.IntentID != "" && a.IntentID != f.IntentID {
		return false
	}
	if f.ActionType != "" && a.ActionType != f.ActionType {
		return false
	}
	return true
}

// Store persists appended actions. The in-memory Chain is the default Store;
// a durable backend (file, database) can implement the same interface so
// Chain's append/iterate/signing logic is reused unchanged.
type Store interface {
	Append(ctx context.Context, a Action) error
	List(ctx context.Context) ([]Action, error)
}

// Chain is the append-only, signed action ledger. All mutation is serialized
// through mu (single-writer region); readers iterate over an immutable
// snapshot taken under the same lock, matching the intent graph's
// concurrency model in spec §5.
type Chain struct {
	mu     sync.Mutex
	store  Store
	signer *Signer
	fanout *fanout

	logger  telemetry.Logger
	metrics telemetry.Metrics

	// lastTimestampByPlan enforces "timestamps monotonic per plan".
	lastTimestampByPlan map[string]int64

	nowFn func() time.Time
}

// Option configures a Chain at construction time.
type Option func(*Chain)

// WithStore overrides the default in-memory store with a durable one.
func WithStore(s Store) Option { return func(c *Chain) { c.store = s } }

// WithSigner overrides the default signer (useful for deterministic tests).
func WithSigner(s *Signer) Option { return func(c *Chain) { c.signer = s } }

// WithLogger sets the logger used for sink-failure diagnostics.
func WithLogger(l telemetry.Logger) Option { return func(c *Chain) { c.logger = l } }

// WithMetrics sets the metrics recorder for append counters/timers.
func WithMetrics(m telemetry.Metrics) Option { return func(c *Chain) { c.metrics = m } }

// WithClock overrides the time source; tests use this for determinism.
func WithClock(now func() time.Time) Option { return func(c *Chain) { c.nowFn = now } }

// New constructs a Chain backed by an in-memory Store unless WithStore
// overrides it.
func New(opts ...Option) *Chain {
	c := &Chain{
		store:               NewMemoryStore(),
		signer:              NewSigner(),
		fanout:              newFanout(nil, 0, 2),
		lastTimestampByPlan: map[string]int64{},
		nowFn:               time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fanout.logger = c.logger
	return c
}

// RegisterSink adds an observer notified after every successful Append.
// Returns an unregister function.
func (c *Chain) RegisterSink(sink Sink) func() {
	return c.fanout.register(sink)
}

// Append assigns an id (if absent), a monotonic-per-plan timestamp, and a
// signature, persists the action, and fans out to registered sinks. In
// in-memory mode Append never fails on I/O (spec §4.1); a durable Store's
// error is surfaced to the caller unchanged.
func (c *Chain) Append(ctx context.Context, a Action) (Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a.ActionID == "" {
		a.ActionID = uuid.NewString()
	}
	now := c.nowFn().UnixNano()
	if last := c.lastTimestampByPlan[a.PlanID]; now <= last {
		now = last + 1
	}
	a.Timestamp = now
	c.lastTimestampByPlan[a.PlanID] = now

	a.Signature = c.signer.Sign(a)

	if err := c.store.Append(ctx, a); err != nil {
		return Action{}, ccoserr.NewWithCause(ccoserr.KindInternal, "causal chain append failed", err)
	}
	if c.metrics != nil {
		c.metrics.IncCounter("ccos.causal_chain.append", 1, "action_type", string(a.ActionType))
	}
	if c.logger != nil {
		c.logger.Debug(ctx, "causal chain append", "action_id", a.ActionID, "action_type", string(a.ActionType))
	}
	c.fanout.publish(a)
	return a, nil
}

// Verify reports whether signature authenticates action under this chain's
// signer.
func (c *Chain) Verify(a Action, signature string) bool {
	return c.signer.Verify(a, signature)
}

// Iter returns actions matching filter, in append order. The slice is a
// point-in-time, restartable snapshot; later appends are not visible to an
// already-returned slice.
func (c *Chain) Iter(ctx context.Context, filter Filter) ([]Action, error) {
	c.mu.Lock()
	all, err := c.store.List(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindInternal, "causal chain list failed", err)
	}
	out := make([]Action, 0, len(all))
	for _, a := range all {
		if filter.matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// AppendStatusChange is a convenience wrapper that appends an
// IntentStatusChanged action recording the (old, new) transition.
func (c *Chain) AppendStatusChange(ctx context.Context, intentID, oldStatus, newStatus, reason, planID string) (Action, error) {
	return c.Append(ctx, Action{
		PlanID:     planID,
		IntentID:   intentID,
		ActionType: ActionIntentStatusChanged,
		Arguments: map[string]any{
			"old_status": oldStatus,
			"new_status": newStatus,
			"reason":     reason,
		},
	})
}

// Backup writes every action as newline-delimited JSON to w, in append
// order, for byte-identical round-trip via Restore.
func (c *Chain) Backup(ctx context.Context, w io.Writer) error {
	actions, err := c.Iter(ctx, Filter{})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, a := range actions {
		if err := enc.Encode(a); err != nil {
			return ccoserr.NewWithCause(ccoserr.KindInternal, "causal chain backup encode failed", err)
		}
	}
	return nil
}

// Restore replaces the chain's contents with actions decoded from r
// (newline-delimited JSON as written by Backup). Restore does not re-sign
// or re-timestamp actions; it is intended for disaster recovery where the
// original signatures must still verify.
func (c *Chain) Restore(ctx context.Context, r io.Reader) error {
	dec := json.NewDecoder(r)
	var actions []Action
	for {
		var a Action
		if err := dec.Decode(&a); err != nil {
			if err == io.EOF {
				break
			}
			return ccoserr.NewWithCause(ccoserr.KindInternal, "causal chain restore decode failed", err)
		}
		actions = append(actions, a)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ms, ok := c.store.(*MemoryStore)
	if !ok {
		return ccoserr.New(ccoserr.KindInternal, "restore only supported for in-memory store")
	}
	ms.replace(actions)
	c.lastTimestampByPlan = map[string]int64{}
	for _, a := range actions {
		if a.Timestamp > c.lastTimestampByPlan[a.PlanID] {
			c.lastTimestampByPlan[a.PlanID] = a.Timestamp
		}
	}
	return nil
}
