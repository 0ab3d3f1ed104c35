package arbiter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mandubian/ccos-sub020/internal/causalchain"
)

func TestAdaptiveThresholdDefaultsOptimisticWithNoHistory(t *testing.T) {
	var t0 AdaptiveThreshold
	require.Equal(t, 1.0, t0.SuccessRate())
}

func TestAdaptiveThresholdSuccessRateReflectsCounts(t *testing.T) {
	th := AdaptiveThreshold{Completed: 3, Failed: 1}
	require.InDelta(t, 0.75, th.SuccessRate(), 0.0001)
}

func TestObserveChainFeedbackCountsOnlyMatchingPlan(t *testing.T) {
	ctx := context.Background()
	chain := causalchain.New()
	_, err := chain.Append(ctx, causalchain.Action{PlanID: "p1", ActionType: causalchain.ActionPlanCompleted})
	require.NoError(t, err)
	_, err = chain.Append(ctx, causalchain.Action{PlanID: "p1", ActionType: causalchain.ActionPlanFailed})
	require.NoError(t, err)
	_, err = chain.Append(ctx, causalchain.Action{PlanID: "p2", ActionType: causalchain.ActionPlanFailed})
	require.NoError(t, err)

	th, err := ObserveChainFeedback(ctx, chain, causalchain.Filter{PlanID: "p1"})
	require.NoError(t, err)
	require.Equal(t, 1, th.Completed)
	require.Equal(t, 1, th.Failed)
}
