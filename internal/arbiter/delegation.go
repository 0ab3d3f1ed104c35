package arbiter

import (
	"context"

	"github.com/mandubian/ccos-sub020/internal/causalchain"
)

// Config selects the delegation engine and carries the hybrid engine's
// trigger threshold, per spec §4.9.
type Config struct {
	Kind EngineKind

	// HybridThreshold is the minimum AdaptiveThreshold.SuccessRate a hybrid
	// engine needs before it keeps trusting the LLM path; once the observed
	// success rate recorded on the causal chain drops below it,
	// Arbiter.LearnFromExecution replaces the hybrid engine with the plain
	// TemplateEngine for all subsequent calls. The arbiter does not switch
	// back to the hybrid engine when the rate later recovers.
	HybridThreshold float64
}

// DefaultConfig is the template engine with no LLM dependency, the only
// delegation kind that needs no provider wiring at all.
func DefaultConfig() Config {
	return Config{Kind: EngineTemplate, HybridThreshold: 0.5}
}

// AdaptiveThreshold tracks how often delegated plans have gone on to
// succeed, derived entirely from causal-chain feedback (spec §4.9:
// "adaptive thresholds tune delegation based on feedback recorded in the
// causal chain"). It holds no state beyond simple counters so its
// SuccessRate is always a pure function of the chain, never drifting out of
// sync with it.
type AdaptiveThreshold struct {
	Completed int
	Failed    int
}

// SuccessRate returns Completed/(Completed+Failed), defaulting to 1.0
// (optimistic) when there is no history yet, so a freshly booted arbiter
// starts out trusting its configured engine rather than immediately
// degrading to the template fallback.
func (t AdaptiveThreshold) SuccessRate() float64 {
	total := t.Completed + t.Failed
	if total == 0 {
		return 1.0
	}
	return float64(t.Completed) / float64(total)
}

// ObserveChainFeedback recomputes an AdaptiveThreshold by scanning chain
// for PlanCompleted/PlanFailed actions matching filter. It is the read side
// of learn_from_execution: the arbiter never keeps its own success/failure
// ledger, it re-derives the threshold from the chain of record every time.
func ObserveChainFeedback(ctx context.Context, chain *causalchain.Chain, filter causalchain.Filter) (AdaptiveThreshold, error) {
	actions, err := chain.Iter(ctx, filter)
	if err != nil {
		return AdaptiveThreshold{}, err
	}
	var t AdaptiveThreshold
	for _, a := range actions {
		switch a.ActionType {
		case causalchain.ActionPlanCompleted:
			t.Completed++
		case causalchain.ActionPlanFailed:
			t.Failed++
		}
	}
	return t, nil
}
