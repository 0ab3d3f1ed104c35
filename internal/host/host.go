// Package host wires the RTFS evaluator's HostInterface to the rest of
// CCOS: every (call …) reaches the Capability Marketplace, and every step
// lifecycle event and capability call is recorded on the Causal Chain, per
// spec §4.6/§4.1. The evaluator itself never imports marketplace or
// causalchain; this package is what connects the evaluator to them.
package host

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mandubian/ccos-sub020/internal/causalchain"
	"github.com/mandubian/ccos-sub020/internal/marketplace"
	"github.com/mandubian/ccos-sub020/internal/rtfs"
	"github.com/mandubian/ccos-sub020/internal/security"
)

// CCOSHost implements rtfs.HostInterface over a live Marketplace and Chain,
// scoped to one plan execution. A fresh CCOSHost is constructed per
// execute_plan call; ExecutionContext state (set!/get) does not outlive it
// except through a checkpoint, which carries ContextSnapshot alongside the
// evaluator's Env bindings and is restored via RestoreContext.
type CCOSHost struct {
	marketplace *marketplace.Marketplace
	chain       *causalchain.Chain
	rtCtx       *security.Context

	planID   string
	intentID string

	mu             sync.Mutex
	context        map[string]rtfs.Value
	stepExposure   map[string]bool
	lastActionID   string
	contextExposed bool
}

// New constructs a CCOSHost scoped to planID/intentID, dispatching
// capability calls through mp under rtCtx and recording lifecycle events on
// chain.
func New(mp *marketplace.Marketplace, chain *causalchain.Chain, rtCtx *security.Context, planID, intentID string) *CCOSHost {
	return &CCOSHost{
		marketplace:  mp,
		chain:        chain,
		rtCtx:        rtCtx,
		planID:       planID,
		intentID:     intentID,
		context:      map[string]rtfs.Value{},
		stepExposure: map[string]bool{},
	}
}

// ExecuteCapability routes a (call :id args) form to the marketplace and
// records a CapabilityCall action capturing duration and outcome. When the
// enclosing step has context exposure enabled, the action's Arguments also
// carry the exposed context snapshot under ":context" so working-memory
// ingestion can see what the step published.
func (h *CCOSHost) ExecuteCapability(ctx context.Context, capabilityID string, args rtfs.Value) (rtfs.Value, error) {
	start := time.Now()
	result, err := h.marketplace.ExecuteCapability(ctx, capabilityID, args.Native(), h.rtCtx)
	duration := time.Since(start)

	callArgs := map[string]any{"args": args.Native()}
	if exposed := h.exposedContextSnapshot(); exposed != nil {
		callArgs[":context"] = exposed
	}
	action := causalchain.Action{
		ParentActionID: h.currentParent(),
		PlanID:         h.planID,
		IntentID:       h.intentID,
		ActionType:     causalchain.ActionCapabilityCall,
		FunctionName:   capabilityID,
		Arguments:      callArgs,
		DurationMS:     duration.Milliseconds(),
	}
	if err != nil {
		action.Metadata = map[string]any{"error": err.Error()}
	} else {
		action.Result = result
	}
	h.append(ctx, action)

	if err != nil {
		return rtfs.Nil, err
	}
	return rtfs.FromNative(result), nil
}

// NotifyStepStarted records a PlanStepStarted action.
func (h *CCOSHost) NotifyStepStarted(ctx context.Context, stepName string, params rtfs.Value) {
	h.append(ctx, causalchain.Action{
		ParentActionID: h.currentParent(),
		PlanID:         h.planID,
		IntentID:       h.intentID,
		ActionType:     causalchain.ActionPlanStepStarted,
		FunctionName:   stepName,
		Arguments:      map[string]any{"params": params.Native()},
	})
}

// NotifyStepCompleted records a PlanStepCompleted action.
func (h *CCOSHost) NotifyStepCompleted(ctx context.Context, stepName string, result rtfs.Value) {
	h.append(ctx, causalchain.Action{
		ParentActionID: h.currentParent(),
		PlanID:         h.planID,
		IntentID:       h.intentID,
		ActionType:     causalchain.ActionPlanStepCompleted,
		FunctionName:   stepName,
		Result:         result.Native(),
	})
}

// NotifyStepFailed records a PlanStepFailed action.
func (h *CCOSHost) NotifyStepFailed(ctx context.Context, stepName string, stepErr error) {
	h.append(ctx, causalchain.Action{
		ParentActionID: h.currentParent(),
		PlanID:         h.planID,
		IntentID:       h.intentID,
		ActionType:     causalchain.ActionPlanStepFailed,
		FunctionName:   stepName,
		Metadata:       map[string]any{"error": stepErr.Error()},
	})
}

// SetExecutionContext stores key/value in this host's execution context,
// the backing store for (set! :key value) and (get :key). Keys written by
// step exposure (the "step:"+name convention evalStep uses) mark this
// host's context as exposed, so later capability calls attach a snapshot
// of it to their recorded action.
func (h *CCOSHost) SetExecutionContext(_ context.Context, key string, value rtfs.Value) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.context[key] = value
	if strings.HasPrefix(key, "step:") {
		h.contextExposed = true
	}
}

// exposedContextSnapshot returns a native-value copy of the execution
// context when step exposure has marked it visible, or nil otherwise.
func (h *CCOSHost) exposedContextSnapshot() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.contextExposed {
		return nil
	}
	out := make(map[string]any, len(h.context))
	for k, v := range h.context {
		out[k] = v.Native()
	}
	return out
}

// GetContextValue reads a value previously stored via SetExecutionContext.
func (h *CCOSHost) GetContextValue(_ context.Context, key string) (rtfs.Value, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.context[key]
	return v, ok
}

// SetStepExposureOverride records whether stepName's params/context should
// be exposed to later working-memory ingestion. The override is kept only in
// this host; the evaluator does not read it, and evalStep enables exposure
// only through a step's own :expose-context? option.
func (h *CCOSHost) SetStepExposureOverride(_ context.Context, stepName string, expose bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stepExposure[stepName] = expose
}

// ContextSnapshot returns a copy of this host's execution context, used by
// the orchestrator to persist plan-scoped state across a checkpoint.
func (h *CCOSHost) ContextSnapshot() map[string]rtfs.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]rtfs.Value, len(h.context))
	for k, v := range h.context {
		out[k] = v
	}
	return out
}

// RestoreContext replaces this host's execution context wholesale, used
// when resuming a plan from a checkpoint.
func (h *CCOSHost) RestoreContext(snapshot map[string]rtfs.Value) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.context = make(map[string]rtfs.Value, len(snapshot))
	for k, v := range snapshot {
		h.context[k] = v
	}
}

func (h *CCOSHost) append(ctx context.Context, a causalchain.Action) {
	appended, err := h.chain.Append(ctx, a)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.lastActionID = appended.ActionID
	h.mu.Unlock()
}

func (h *CCOSHost) currentParent() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastActionID
}
