package arbiter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mandubian/ccos-sub020/internal/capability"
	"github.com/mandubian/ccos-sub020/internal/causalchain"
	"github.com/mandubian/ccos-sub020/internal/intent"
	"github.com/mandubian/ccos-sub020/internal/marketplace"
	"github.com/mandubian/ccos-sub020/internal/orchestrator"
	"github.com/mandubian/ccos-sub020/internal/security"
)

func newTestRig(t *testing.T) (*Arbiter, *causalchain.Chain) {
	t.Helper()
	reg := capability.New()
	require.NoError(t, reg.Register(capability.Manifest{ID: "ccos.weather.forecast"}, func(ctx context.Context, args map[string]any) (any, error) {
		return "sunny", nil
	}))
	mp := marketplace.New(reg)
	require.NoError(t, mp.RegisterCapabilityManifest(capability.Manifest{ID: "ccos.weather.forecast"}))
	require.NoError(t, mp.RefreshCatalogIndex(context.Background()))

	chain := causalchain.New()
	intents := intent.New()
	orch := orchestrator.New(mp, chain, intents)

	a := New(intents, mp, orch, chain, DefaultConfig(), nil)
	return a, chain
}

func TestNaturalLanguageToIntentPersistsDraftIntent(t *testing.T) {
	a, _ := newTestRig(t)
	i, err := a.NaturalLanguageToIntent(context.Background(), "check the weather forecast")
	require.NoError(t, err)
	require.Equal(t, intent.StatusDraft, i.Status)
	require.NotEmpty(t, i.ID)

	stored, ok := a.intents.GetIntent(i.ID)
	require.True(t, ok)
	require.Equal(t, "check the weather forecast", stored.Request)
}

func TestNaturalLanguageToIntentRejectsEmptyRequest(t *testing.T) {
	a, _ := newTestRig(t)
	_, err := a.NaturalLanguageToIntent(context.Background(), "   ")
	require.Error(t, err)
}

func TestIntentToPlanResolvesBestCapabilityMatch(t *testing.T) {
	a, _ := newTestRig(t)
	i, err := a.NaturalLanguageToIntent(context.Background(), "check the weather forecast")
	require.NoError(t, err)

	plan, err := a.IntentToPlan(context.Background(), i)
	require.NoError(t, err)
	require.Contains(t, plan.Body, "ccos.weather.forecast")
	require.NotEmpty(t, plan.ID)
	require.Equal(t, []string{i.ID}, plan.IntentIDs)
}

func TestExecutePlanRunsThroughOrchestrator(t *testing.T) {
	a, chain := newTestRig(t)
	i, err := a.NaturalLanguageToIntent(context.Background(), "check the weather forecast")
	require.NoError(t, err)
	plan, err := a.IntentToPlan(context.Background(), i)
	require.NoError(t, err)

	rtCtx := security.NewFull()
	result := a.ExecutePlan(context.Background(), plan, &rtCtx)
	require.Equal(t, orchestrator.StatusCompleted, result.Status)

	actions, err := chain.Iter(context.Background(), causalchain.Filter{PlanID: plan.ID})
	require.NoError(t, err)
	require.NotEmpty(t, actions)
}

func TestLearnFromExecutionDemotesHybridBelowThreshold(t *testing.T) {
	reg := capability.New()
	mp := marketplace.New(reg)
	require.NoError(t, mp.RefreshCatalogIndex(context.Background()))
	chain := causalchain.New()
	intents := intent.New()
	orch := orchestrator.New(mp, chain, intents)

	provider := &stubProvider{planBody: "(do nil)"}
	cfg := Config{Kind: EngineHybrid, HybridThreshold: 0.9}
	a := New(intents, mp, orch, chain, cfg, provider)
	require.IsType(t, &HybridEngine{}, a.Engine())

	ctx := context.Background()
	_, err := chain.Append(ctx, causalchain.Action{PlanID: "plan-x", ActionType: causalchain.ActionPlanFailed})
	require.NoError(t, err)
	_, err = chain.Append(ctx, causalchain.Action{PlanID: "plan-x", ActionType: causalchain.ActionPlanFailed})
	require.NoError(t, err)

	threshold, err := a.LearnFromExecution(ctx, "plan-x")
	require.NoError(t, err)
	require.Less(t, threshold.SuccessRate(), 0.9)
	require.IsType(t, TemplateEngine{}, a.Engine())
}

type stubProvider struct {
	planBody string
	err      error
}

func (p *stubProvider) GenerateText(context.Context, string, string) (string, error) { return "", nil }
func (p *stubProvider) GenerateIntent(context.Context, string) (string, error) {
	return `{"name":"n","goal":"g"}`, p.err
}
func (p *stubProvider) GeneratePlan(context.Context, string, []string) (string, error) {
	return p.planBody, p.err
}
func (p *stubProvider) ValidatePlan(context.Context, string, string) (string, error) { return "", nil }
