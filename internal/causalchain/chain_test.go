package causalchain

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendAssignsSignatureThatVerifies(t *testing.T) {
	chain := New(WithSigner(NewSignerWithKey("test-key")))
	ctx := context.Background()

	appended, err := chain.Append(ctx, Action{PlanID: "p1", ActionType: ActionPlanStarted})
	require.NoError(t, err)
	require.NotEmpty(t, appended.Signature)
	require.True(t, chain.Verify(appended, appended.Signature))
	require.False(t, chain.Verify(appended, "not-the-signature"))
}

func TestAppendTimestampsMonotonicPerPlan(t *testing.T) {
	chain := New()
	ctx := context.Background()

	a1, err := chain.Append(ctx, Action{PlanID: "p1", ActionType: ActionPlanStarted})
	require.NoError(t, err)
	a2, err := chain.Append(ctx, Action{PlanID: "p1", ActionType: ActionPlanCompleted})
	require.NoError(t, err)

	require.Greater(t, a2.Timestamp, a1.Timestamp)
}

func TestIterFiltersByPlanAndType(t *testing.T) {
	chain := New()
	ctx := context.Background()

	_, _ = chain.Append(ctx, Action{PlanID: "p1", ActionType: ActionPlanStarted})
	_, _ = chain.Append(ctx, Action{PlanID: "p2", ActionType: ActionPlanStarted})
	_, _ = chain.Append(ctx, Action{PlanID: "p1", ActionType: ActionPlanCompleted})

	actions, err := chain.Iter(ctx, Filter{PlanID: "p1"})
	require.NoError(t, err)
	require.Len(t, actions, 2)

	actions, err = chain.Iter(ctx, Filter{ActionType: ActionPlanStarted})
	require.NoError(t, err)
	require.Len(t, actions, 2)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	chain := New()
	ctx := context.Background()
	_, _ = chain.Append(ctx, Action{PlanID: "p1", ActionType: ActionPlanStarted})
	_, _ = chain.Append(ctx, Action{PlanID: "p1", ActionType: ActionPlanCompleted})

	var buf bytes.Buffer
	require.NoError(t, chain.Backup(ctx, &buf))

	restored := New()
	require.NoError(t, restored.Restore(ctx, bytes.NewReader(buf.Bytes())))

	before, _ := chain.Iter(ctx, Filter{})
	after, _ := restored.Iter(ctx, Filter{})
	require.Equal(t, before, after)
}

func TestAppendStatusChangeRecordsOldAndNew(t *testing.T) {
	chain := New()
	ctx := context.Background()

	_, err := chain.AppendStatusChange(ctx, "intent-1", "Draft", "Active", "start", "plan-1")
	require.NoError(t, err)
	_, err = chain.AppendStatusChange(ctx, "intent-1", "Active", "Completed", "done", "plan-1")
	require.NoError(t, err)

	actions, err := chain.Iter(ctx, Filter{IntentID: "intent-1", ActionType: ActionIntentStatusChanged})
	require.NoError(t, err)
	require.Len(t, actions, 2)
	require.Equal(t, "Draft", actions[0].Arguments["old_status"])
	require.Equal(t, "Active", actions[0].Arguments["new_status"])
	require.Equal(t, "Completed", actions[1].Arguments["new_status"])
}

func TestRegisterSinkObservesWithoutBlockingAppend(t *testing.T) {
	chain := New()
	ctx := context.Background()

	observed := make(chan Action, 4)
	unregister := chain.RegisterSink(SinkFunc(func(_ context.Context, a Action) error {
		observed <- a
		return nil
	}))
	defer unregister()

	appended, err := chain.Append(ctx, Action{PlanID: "p1", ActionType: ActionPlanStarted})
	require.NoError(t, err)

	select {
	case got := <-observed:
		require.Equal(t, appended.ActionID, got.ActionID)
	case <-time.After(time.Second):
		t.Fatal("sink was not notified")
	}
}

func TestFailingSinkDoesNotBlockAppendOrOtherSinks(t *testing.T) {
	chain := New()
	ctx := context.Background()

	goodObserved := make(chan Action, 1)
	chain.RegisterSink(SinkFunc(func(_ context.Context, a Action) error {
		return errors.New("sink unavailable")
	}))
	chain.RegisterSink(SinkFunc(func(_ context.Context, a Action) error {
		goodObserved <- a
		return nil
	}))

	_, err := chain.Append(ctx, Action{PlanID: "p1", ActionType: ActionPlanStarted})
	require.NoError(t, err)

	select {
	case <-goodObserved:
	case <-time.After(time.Second):
		t.Fatal("good sink was not notified despite a failing sink")
	}
}

