package orchestrator

import (
	"context"

	"github.com/mandubian/ccos-sub020/internal/causalchain"
	"github.com/mandubian/ccos-sub020/internal/ccoserr"
	"github.com/mandubian/ccos-sub020/internal/governance"
	"github.com/mandubian/ccos-sub020/internal/host"
	"github.com/mandubian/ccos-sub020/internal/intent"
	"github.com/mandubian/ccos-sub020/internal/marketplace"
	"github.com/mandubian/ccos-sub020/internal/rtfs"
	"github.com/mandubian/ccos-sub020/internal/security"
	"github.com/mandubian/ccos-sub020/internal/telemetry"
)

// Orchestrator owns the full execute/checkpoint/resume lifecycle for plans,
// per spec §4.7. It composes the marketplace (capability dispatch), the
// causal chain (recording), the intent graph (status transitions), and an
// optional governance kernel (preflight approval) behind one entry point.
type Orchestrator struct {
	marketplace *marketplace.Marketplace
	chain       *causalchain.Chain
	intents     *intent.Graph
	kernel      *governance.Kernel

	plans       PlanStore
	checkpoints CheckpointStore

	logger telemetry.Logger
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithGovernanceKernel wires a preflight governance check ahead of every
// execution. Without one, plans execute unconditionally once resolved.
func WithGovernanceKernel(k *governance.Kernel) Option {
	return func(o *Orchestrator) { o.kernel = k }
}

// WithPlanStore overrides the default in-memory plan archive.
func WithPlanStore(s PlanStore) Option { return func(o *Orchestrator) { o.plans = s } }

// WithCheckpointStore overrides the default in-memory checkpoint archive.
func WithCheckpointStore(s CheckpointStore) Option {
	return func(o *Orchestrator) { o.checkpoints = s }
}

// WithLogger sets the structured logger used for execution diagnostics.
func WithLogger(l telemetry.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// New constructs an Orchestrator over mp/chain/intents.
func New(mp *marketplace.Marketplace, chain *causalchain.Chain, intents *intent.Graph, opts ...Option) *Orchestrator {
	logger, _, _ := telemetry.NewNoop()
	o := &Orchestrator{
		marketplace: mp,
		chain:       chain,
		intents:     intents,
		plans:       NewMemoryPlanStore(),
		checkpoints: NewMemoryCheckpointStore(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExecutePlan runs plan's body to completion (or failure) against rtCtx.
// It allocates the plan's content-hash id if absent, runs governance
// preflight if a kernel is wired, appends PlanStarted before evaluation and
// PlanCompleted/PlanFailed after, transitions every referenced intent's
// status, and archives the plan by its id.
func (o *Orchestrator) ExecutePlan(ctx context.Context, plan Plan, rtCtx *security.Context) ExecutionResult {
	plan.AllocateID()
	plan.Status = StatusRunning

	forms, err := rtfs.ReadAll(plan.Body)
	if err != nil {
		return o.fail(ctx, plan, err)
	}
	if len(plan.CapabilitiesRequired) == 0 {
		plan.CapabilitiesRequired = rtfs.PreflightCapabilities(forms)
	}

	if o.kernel != nil {
		if err := o.kernel.ApprovePlan(ctx, governance.JudgeRequest{
			Goal:                 o.firstIntentGoal(plan.IntentIDs),
			PlanBody:             plan.Body,
			ResolvedCapabilities: plan.CapabilitiesRequired,
		}); err != nil {
			return o.fail(ctx, plan, err)
		}
	}

	if _, err := o.chain.Append(ctx, causalchain.Action{
		PlanID:     plan.ID,
		ActionType: causalchain.ActionPlanStarted,
		Arguments:  map[string]any{"capabilities_required": plan.CapabilitiesRequired},
	}); err != nil {
		return o.fail(ctx, plan, err)
	}
	o.transitionIntents(ctx, plan, intent.StatusActive, "plan started")

	h := host.New(o.marketplace, o.chain, rtCtx, plan.ID, o.firstIntentID(plan.IntentIDs))
	ev := rtfs.NewEvaluator(h)
	env := rtfs.NewEnv()
	rtfs.InstallStdlib(env)

	result, evalErr := ev.EvalAll(ctx, forms, env)
	if evalErr != nil {
		return o.fail(ctx, plan, evalErr)
	}

	plan.Status = StatusCompleted
	_, _ = o.chain.Append(ctx, causalchain.Action{
		PlanID:     plan.ID,
		ActionType: causalchain.ActionPlanCompleted,
		Result:     result.Native(),
	})
	o.transitionIntents(ctx, plan, intent.StatusCompleted, "plan completed")
	_ = o.plans.Put(plan)

	return ExecutionResult{PlanID: plan.ID, Value: result.Native(), Status: StatusCompleted}
}

func (o *Orchestrator) fail(ctx context.Context, plan Plan, cause error) ExecutionResult {
	plan.Status = StatusFailed
	_, _ = o.chain.Append(ctx, causalchain.Action{
		PlanID:     plan.ID,
		ActionType: causalchain.ActionPlanFailed,
		Metadata:   map[string]any{"error": cause.Error()},
	})
	o.transitionIntents(ctx, plan, intent.StatusFailed, "plan failed: "+cause.Error())
	_ = o.plans.Put(plan)
	if o.logger != nil {
		o.logger.Error(ctx, "plan execution failed", "plan_id", plan.ID, "error", cause.Error())
	}
	return ExecutionResult{PlanID: plan.ID, Status: StatusFailed, Err: cause}
}

func (o *Orchestrator) transitionIntents(ctx context.Context, plan Plan, status intent.Status, reason string) {
	for _, id := range plan.IntentIDs {
		if err := o.intents.SetStatus(ctx, id, status, reason, plan.ID); err != nil && o.logger != nil {
			o.logger.Warn(ctx, "intent status transition rejected", "intent_id", id, "target_status", string(status), "error", err.Error())
		}
	}
}

func (o *Orchestrator) firstIntentID(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func (o *Orchestrator) firstIntentGoal(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	if i, ok := o.intents.GetIntent(ids[0]); ok {
		return i.Goal
	}
	return ""
}

// GetPlan returns the archived plan for id, if any.
func (o *Orchestrator) GetPlan(id string) (Plan, bool) {
	return o.plans.Get(id)
}

// CheckpointPlan serializes the evaluator env and host execution context
// for a paused plan, archives the checkpoint, and transitions the plan's
// intents to Paused.
func (o *Orchestrator) CheckpointPlan(ctx context.Context, plan Plan, env *rtfs.Env, h *host.CCOSHost) (Checkpoint, error) {
	cp := NewCheckpoint(plan.ID, o.firstIntentID(plan.IntentIDs), env.Snapshot(), h.ContextSnapshot())
	if err := o.checkpoints.Put(cp); err != nil {
		return Checkpoint{}, err
	}
	plan.Status = StatusPaused
	_ = o.plans.Put(plan)
	if _, err := o.chain.Append(ctx, causalchain.Action{
		PlanID:     plan.ID,
		ActionType: causalchain.ActionCheckpointTaken,
		Arguments:  map[string]any{"checkpoint_id": cp.ID},
	}); err != nil {
		return Checkpoint{}, err
	}
	o.transitionIntents(ctx, plan, intent.StatusPaused, "plan checkpointed")
	return cp, nil
}

// ResumePlanFromCheckpoint restores a previously checkpointed plan's
// bindings and execution context into a fresh evaluator/host pair, then
// evaluates the whole plan body again from the top. Every (call …) form in
// the body is evaluated again, including calls already recorded on the
// chain before the checkpoint; nothing skips them. The restored bindings
// sit in the root environment, so forms that read them see the
// checkpointed values unless a let or defn in the body rebinds the name
// (see the checkpoint/resume open question in the design ledger).
func (o *Orchestrator) ResumePlanFromCheckpoint(ctx context.Context, checkpointID string, rtCtx *security.Context) (ExecutionResult, error) {
	cp, ok := o.checkpoints.Get(checkpointID)
	if !ok {
		return ExecutionResult{}, ccoserr.Newf(ccoserr.KindNotFound, "unknown checkpoint %q", checkpointID)
	}
	plan, ok := o.plans.Get(cp.PlanID)
	if !ok {
		return ExecutionResult{}, ccoserr.Newf(ccoserr.KindNotFound, "unknown plan %q for checkpoint %q", cp.PlanID, checkpointID)
	}

	forms, err := rtfs.ReadAll(plan.Body)
	if err != nil {
		return o.fail(ctx, plan, err), err
	}

	h := host.New(o.marketplace, o.chain, rtCtx, plan.ID, cp.IntentID)
	h.RestoreContext(cp.RestoreHostContext())
	env := rtfs.NewEnv()
	rtfs.InstallStdlib(env)
	cp.RestoreEnv(env)

	ev := rtfs.NewEvaluator(h)
	result, evalErr := ev.EvalAll(ctx, forms, env)
	if evalErr != nil {
		return o.fail(ctx, plan, evalErr), evalErr
	}

	plan.Status = StatusCompleted
	_, _ = o.chain.Append(ctx, causalchain.Action{
		PlanID:     plan.ID,
		ActionType: causalchain.ActionPlanCompleted,
		Result:     result.Native(),
	})
	o.transitionIntents(ctx, plan, intent.StatusCompleted, "plan resumed to completion")
	_ = o.plans.Put(plan)

	return ExecutionResult{PlanID: plan.ID, Value: result.Native(), Status: StatusCompleted}, nil
}
