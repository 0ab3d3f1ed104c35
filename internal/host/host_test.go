package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mandubian/ccos-sub020/internal/capability"
	"github.com/mandubian/ccos-sub020/internal/causalchain"
	"github.com/mandubian/ccos-sub020/internal/intent"
	"github.com/mandubian/ccos-sub020/internal/marketplace"
	"github.com/mandubian/ccos-sub020/internal/rtfs"
	"github.com/mandubian/ccos-sub020/internal/security"
)

func newTestHost(t *testing.T) (*CCOSHost, *causalchain.Chain) {
	t.Helper()
	reg := capability.New()
	require.NoError(t, reg.Register(capability.Manifest{ID: "ccos.echo"}, func(_ context.Context, args map[string]any) (any, error) {
		return args, nil
	}))
	mp := marketplace.New(reg)
	chain := causalchain.New()
	rtCtx := security.NewFull()
	h := New(mp, chain, &rtCtx, "plan-1", "intent-1")
	return h, chain
}

func TestExecuteCapabilityRecordsActionOnChain(t *testing.T) {
	h, chain := newTestHost(t)
	result, err := h.ExecuteCapability(context.Background(), "ccos.echo", rtfs.Map(rtfs.MapPair{Key: rtfs.Keyword("x"), Value: rtfs.Number(1)}))
	require.NoError(t, err)
	require.Equal(t, rtfs.KindMap, result.Kind)

	actions, err := chain.Iter(context.Background(), causalchain.Filter{PlanID: "plan-1"})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, causalchain.ActionCapabilityCall, actions[0].ActionType)
	require.Equal(t, "ccos.echo", actions[0].FunctionName)
}

func TestExecuteCapabilityRecordsFailureMetadata(t *testing.T) {
	h, chain := newTestHost(t)
	_, err := h.ExecuteCapability(context.Background(), "ccos.missing", rtfs.Nil)
	require.Error(t, err)

	actions, _ := chain.Iter(context.Background(), causalchain.Filter{PlanID: "plan-1"})
	require.Len(t, actions, 1)
	require.NotNil(t, actions[0].Metadata["error"])
}

func TestStepLifecycleNotificationsAppendActions(t *testing.T) {
	h, chain := newTestHost(t)
	ctx := context.Background()
	h.NotifyStepStarted(ctx, "step-a", rtfs.Nil)
	h.NotifyStepCompleted(ctx, "step-a", rtfs.String("done"))

	actions, _ := chain.Iter(ctx, causalchain.Filter{PlanID: "plan-1"})
	require.Len(t, actions, 2)
	require.Equal(t, causalchain.ActionPlanStepStarted, actions[0].ActionType)
	require.Equal(t, causalchain.ActionPlanStepCompleted, actions[1].ActionType)
}

func TestSetExecutionContextRoundTrips(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()
	h.SetExecutionContext(ctx, "foo", rtfs.String("bar"))
	v, ok := h.GetContextValue(ctx, "foo")
	require.True(t, ok)
	require.Equal(t, rtfs.String("bar"), v)
}

func TestContextSnapshotRoundTripsThroughRestore(t *testing.T) {
	h, _ := newTestHost(t)
	ctx := context.Background()
	h.SetExecutionContext(ctx, "foo", rtfs.Number(42))
	snap := h.ContextSnapshot()

	other, _ := newTestHost(t)
	other.RestoreContext(snap)
	v, ok := other.GetContextValue(ctx, "foo")
	require.True(t, ok)
	require.Equal(t, rtfs.Number(42), v)
}

func TestExecuteCapabilityCarriesExposedContextSnapshot(t *testing.T) {
	h, chain := newTestHost(t)
	ctx := context.Background()

	h.SetExecutionContext(ctx, "step:plan", rtfs.Map(rtfs.MapPair{Key: rtfs.Keyword("goal"), Value: rtfs.String("demo")}))
	_, err := h.ExecuteCapability(ctx, "ccos.echo", rtfs.Map(rtfs.MapPair{Key: rtfs.Keyword("x"), Value: rtfs.Number(1)}))
	require.NoError(t, err)

	actions, err := chain.Iter(ctx, causalchain.Filter{PlanID: "plan-1"})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Contains(t, actions[0].Arguments, ":context")
}

func TestExecuteCapabilityOmitsContextWhenNotExposed(t *testing.T) {
	h, chain := newTestHost(t)
	ctx := context.Background()

	_, err := h.ExecuteCapability(ctx, "ccos.echo", rtfs.Map(rtfs.MapPair{Key: rtfs.Keyword("x"), Value: rtfs.Number(1)}))
	require.NoError(t, err)

	actions, err := chain.Iter(ctx, causalchain.Filter{PlanID: "plan-1"})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.NotContains(t, actions[0].Arguments, ":context")
}

func TestEchoCapabilityAcceptsBareStringArgument(t *testing.T) {
	reg := capability.New()
	require.NoError(t, reg.Register(capability.Manifest{
		ID:          "ccos.echo",
		InputSchema: &capability.Schema{Keys: []string{"value"}},
	}, func(_ context.Context, args map[string]any) (any, error) {
		return args["value"], nil
	}))
	mp := marketplace.New(reg)
	chain := causalchain.New()
	rtCtx := security.NewFull()
	h := New(mp, chain, &rtCtx, "plan-1", "intent-1")

	forms, err := rtfs.ReadAll(`(call :ccos.echo "hello")`)
	require.NoError(t, err)
	ev := rtfs.NewEvaluator(h)
	root := rtfs.NewEnv()
	rtfs.InstallStdlib(root)
	result, err := ev.EvalAll(context.Background(), forms, root)
	require.NoError(t, err)
	require.Equal(t, rtfs.String("hello"), result)
}

func TestChainStatusSinkWiresIntentGraphToChain(t *testing.T) {
	chain := causalchain.New()
	g := intent.New(intent.WithEventSink(ChainStatusSink{Chain: chain}))
	i, err := g.StoreIntent(intent.Intent{Name: "demo"})
	require.NoError(t, err)

	err = g.SetStatus(context.Background(), i.ID, intent.StatusActive, "plan started", "plan-1")
	require.NoError(t, err)

	actions, _ := chain.Iter(context.Background(), causalchain.Filter{IntentID: i.ID})
	require.Len(t, actions, 1)
	require.Equal(t, causalchain.ActionIntentStatusChanged, actions[0].ActionType)
}
