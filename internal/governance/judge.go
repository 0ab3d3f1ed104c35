package governance

import (
	"context"
	"encoding/json"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// JudgeVerdict is the strict JSON shape an LLM provider must return for a
// semantic judge call, per spec §4.8.
type JudgeVerdict struct {
	Allowed   bool    `json:"allowed"`
	Reasoning string  `json:"reasoning"`
	RiskScore float64 `json:"risk_score"`
}

// JudgeRequest carries everything the semantic judge needs to render a
// verdict: the intent's stated goal, the plan body (RTFS source or a
// rendered summary of it), and the capability ids it resolves to.
type JudgeRequest struct {
	Goal                 string
	PlanBody             string
	ResolvedCapabilities []string
}

// LLMProvider is the narrow interface the semantic judge depends on. It is
// intentionally provider-agnostic: no concrete vendor SDK is wired here
// (see spec Non-goals); a caller supplies whichever backend it wants.
type LLMProvider interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SemanticJudge submits a plan to an LLMProvider and expects a strict JSON
// verdict. A malformed response is a judge error, never an implicit allow
// (spec §4.8) — the caller must treat a judge error the same as a Deny.
type SemanticJudge struct {
	provider LLMProvider
}

// NewSemanticJudge constructs a SemanticJudge over provider.
func NewSemanticJudge(provider LLMProvider) *SemanticJudge {
	return &SemanticJudge{provider: provider}
}

const judgeSystemPrompt = `You are the CCOS governance semantic judge. Given a goal, a plan body, and ` +
	`its resolved capability ids, respond with strict JSON of the form ` +
	`{"allowed": bool, "reasoning": string, "risk_score": float between 0 and 1}. ` +
	`Respond with JSON only, no surrounding prose.`

// Evaluate renders a JudgeVerdict for req. A provider error or a
// non-conformant JSON response both return a KindGovernance error.
func (j *SemanticJudge) Evaluate(ctx context.Context, req JudgeRequest) (JudgeVerdict, error) {
	userPrompt, err := json.Marshal(req)
	if err != nil {
		return JudgeVerdict{}, ccoserr.NewWithCause(ccoserr.KindInternal, "marshal judge request failed", err)
	}
	raw, err := j.provider.GenerateJSON(ctx, judgeSystemPrompt, string(userPrompt))
	if err != nil {
		return JudgeVerdict{}, ccoserr.NewWithCause(ccoserr.KindGovernance, "semantic judge provider call failed", err)
	}
	var verdict JudgeVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return JudgeVerdict{}, ccoserr.NewWithCause(ccoserr.KindGovernance, "semantic judge returned malformed verdict", err)
	}
	if verdict.RiskScore < 0 || verdict.RiskScore > 1 {
		return JudgeVerdict{}, ccoserr.Newf(ccoserr.KindGovernance, "semantic judge risk_score %f out of [0,1]", verdict.RiskScore)
	}
	return verdict, nil
}
