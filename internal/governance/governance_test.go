package governance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstitutionFirstMatchWins(t *testing.T) {
	c := NewConstitution(
		Rule{ID: "allow-echo", Pattern: "ccos.echo", Action: ActionAllow},
		Rule{ID: "deny-io", Pattern: "ccos.io.*", Action: ActionDeny, Reason: "filesystem access requires review"},
	)
	require.Equal(t, ActionAllow, c.Evaluate("ccos.echo").Action)
	v := c.Evaluate("ccos.io.write-file")
	require.Equal(t, ActionDeny, v.Action)
	require.Equal(t, "deny-io", v.RuleID)
}

func TestConstitutionUnmatchedDefaultsToAllow(t *testing.T) {
	c := NewConstitution()
	require.Equal(t, ActionAllow, c.Evaluate("ccos.unknown").Action)
	require.False(t, c.Evaluate("ccos.unknown").Matched)
}

func TestEvaluatePlanReturnsFirstDenyAsTerminal(t *testing.T) {
	c := NewConstitution(
		Rule{ID: "deny-secrets", Pattern: "ccos.secrets.*", Action: ActionDeny, Reason: "no automated secret writes"},
		Rule{ID: "approve-net", Pattern: "ccos.network.*", Action: ActionRequireApproval},
	)
	denied, approvals := c.EvaluatePlan([]string{"ccos.network.http-fetch", "ccos.secrets.set"})
	require.NotNil(t, denied)
	require.Equal(t, "deny-secrets", denied.RuleID)
	require.Empty(t, approvals)
}

func TestEvaluatePlanCollectsApprovalsWhenNoDeny(t *testing.T) {
	c := NewConstitution(
		Rule{ID: "approve-net", Pattern: "ccos.network.*", Action: ActionRequireApproval},
	)
	denied, approvals := c.EvaluatePlan([]string{"ccos.network.http-fetch"})
	require.Nil(t, denied)
	require.Len(t, approvals, 1)
}

type stubExistence map[string]bool

func (s stubExistence) Has(id string) bool { return s[id] }

func TestKernelRejectsUnknownCapabilityAtPreflight(t *testing.T) {
	k := NewKernel(NewConstitution(), WithCapabilityExistence(stubExistence{"ccos.echo": true}))
	err := k.ApprovePlan(context.Background(), JudgeRequest{ResolvedCapabilities: []string{"ccos.ghost"}})
	require.Error(t, err)
}

func TestKernelRejectsConstitutionDeny(t *testing.T) {
	c := NewConstitution(Rule{ID: "deny-all-io", Pattern: "ccos.io.*", Action: ActionDeny, Reason: "disabled"})
	k := NewKernel(c)
	err := k.ApprovePlan(context.Background(), JudgeRequest{ResolvedCapabilities: []string{"ccos.io.write-file"}})
	require.Error(t, err)
}

type stubLLM struct {
	response string
	err      error
}

func (s stubLLM) GenerateJSON(context.Context, string, string) (string, error) {
	return s.response, s.err
}

func TestSemanticJudgeParsesStrictVerdict(t *testing.T) {
	j := NewSemanticJudge(stubLLM{response: `{"allowed": true, "reasoning": "benign", "risk_score": 0.1}`})
	verdict, err := j.Evaluate(context.Background(), JudgeRequest{Goal: "test"})
	require.NoError(t, err)
	require.True(t, verdict.Allowed)
}

func TestSemanticJudgeParseFailureIsJudgeErrorNotImplicitAllow(t *testing.T) {
	j := NewSemanticJudge(stubLLM{response: "not json"})
	_, err := j.Evaluate(context.Background(), JudgeRequest{Goal: "test"})
	require.Error(t, err)
}

func TestSemanticJudgeProviderErrorPropagates(t *testing.T) {
	j := NewSemanticJudge(stubLLM{err: errors.New("provider unavailable")})
	_, err := j.Evaluate(context.Background(), JudgeRequest{Goal: "test"})
	require.Error(t, err)
}

func TestKernelConsultsJudgeAfterConstitutionPasses(t *testing.T) {
	judge := NewSemanticJudge(stubLLM{response: `{"allowed": false, "reasoning": "too risky", "risk_score": 0.9}`})
	k := NewKernel(NewConstitution(), WithJudge(judge))
	err := k.ApprovePlan(context.Background(), JudgeRequest{ResolvedCapabilities: []string{"ccos.echo"}})
	require.Error(t, err)
}
