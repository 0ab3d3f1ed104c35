package governance

import (
	"context"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// CapabilityExistence is the narrow registry/marketplace slice preflight
// needs: whether a capability id is known at all, independent of policy.
type CapabilityExistence interface {
	Has(capabilityID string) bool
}

// Kernel is the Governance Kernel of record: a Constitution, an optional
// Semantic Judge, and a capability-existence preflight check, composed per
// spec §4.8.
type Kernel struct {
	constitution *Constitution
	judge        *SemanticJudge
	existence    CapabilityExistence
}

// Option configures a Kernel at construction time.
type Option func(*Kernel)

// WithJudge enables the semantic judge pass.
func WithJudge(j *SemanticJudge) Option { return func(k *Kernel) { k.judge = j } }

// WithCapabilityExistence wires the preflight capability-existence check.
func WithCapabilityExistence(e CapabilityExistence) Option {
	return func(k *Kernel) { k.existence = e }
}

// NewKernel constructs a Kernel over constitution.
func NewKernel(constitution *Constitution, opts ...Option) *Kernel {
	k := &Kernel{constitution: constitution}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// ApprovePlan runs the full preflight sequence for a plan's resolved
// capability ids: existence check, constitution evaluation, then (if
// wired) the semantic judge. The first failure wins; governance never
// runs later stages once an earlier one has already rejected the plan.
func (k *Kernel) ApprovePlan(ctx context.Context, req JudgeRequest) error {
	if k.existence != nil {
		for _, id := range req.ResolvedCapabilities {
			if !k.existence.Has(id) {
				return ccoserr.Newf(ccoserr.KindNotFound, "plan references unknown capability %q", id).
					WithFields(map[string]any{"operation": "preflight_existence", "capability": id})
			}
		}
	}

	if denied, _ := k.constitution.EvaluatePlan(req.ResolvedCapabilities); denied != nil {
		return ErrFromDenial(*denied)
	}

	if k.judge != nil {
		verdict, err := k.judge.Evaluate(ctx, req)
		if err != nil {
			return err
		}
		if !verdict.Allowed {
			return ccoserr.Newf(ccoserr.KindGovernance, "semantic judge rejected plan: %s", verdict.Reasoning).
				WithFields(map[string]any{"operation": "semantic_judge", "risk_score": verdict.RiskScore})
		}
	}
	return nil
}
