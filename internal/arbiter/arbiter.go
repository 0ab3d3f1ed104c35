// Package arbiter implements the delegating Arbiter of spec §4.9: the
// natural_language_to_intent -> intent_to_plan -> execute_plan pipeline,
// plus the learn_from_execution feedback loop that tunes delegation from
// causal-chain history.
package arbiter

import (
	"context"
	"strings"

	"github.com/mandubian/ccos-sub020/internal/causalchain"
	"github.com/mandubian/ccos-sub020/internal/ccoserr"
	"github.com/mandubian/ccos-sub020/internal/intent"
	"github.com/mandubian/ccos-sub020/internal/marketplace"
	"github.com/mandubian/ccos-sub020/internal/orchestrator"
	"github.com/mandubian/ccos-sub020/internal/security"
	"github.com/mandubian/ccos-sub020/internal/telemetry"
)

// Arbiter composes the intent graph, the marketplace (for capability
// discovery during plan synthesis), the orchestrator (for execute_plan),
// and a delegation engine into the four pipeline operations named by spec
// §4.9.
type Arbiter struct {
	intents      *intent.Graph
	marketplace  *marketplace.Marketplace
	orchestrator *orchestrator.Orchestrator
	chain        *causalchain.Chain

	config   Config
	template TemplateEngine
	engine   Engine

	logger telemetry.Logger
}

// Option configures an Arbiter at construction time.
type Option func(*Arbiter)

// WithLogger sets the structured logger used for prompt/diagnostic output.
func WithLogger(l telemetry.Logger) Option { return func(a *Arbiter) { a.logger = l } }

// New constructs an Arbiter over intents/mp/orch/chain, selecting the
// delegation engine named by cfg.Kind. provider may be nil for the
// template and dummy kinds, which never call an LLMProvider.
func New(intents *intent.Graph, mp *marketplace.Marketplace, orch *orchestrator.Orchestrator, chain *causalchain.Chain, cfg Config, provider LLMProvider, opts ...Option) *Arbiter {
	logger, _, _ := telemetry.NewNoop()
	a := &Arbiter{
		intents:      intents,
		marketplace:  mp,
		orchestrator: orch,
		chain:        chain,
		config:       cfg,
		logger:       logger,
	}
	a.engine = buildEngine(cfg.Kind, provider)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func buildEngine(kind EngineKind, provider LLMProvider) Engine {
	switch kind {
	case EngineFullLLM:
		if provider != nil {
			return FullLLMEngine{Provider: provider}
		}
	case EngineHybrid:
		if provider != nil {
			return NewHybridEngine(provider)
		}
	case EngineDummy:
		return DummyEngine{}
	}
	return TemplateEngine{}
}

// logPrompt records a redacted copy of a prompt about to be sent to an
// LLMProvider, per spec §4.9's prompt hygiene requirement: prompts are
// never logged verbatim, only after ccoserr.RedactText has scrubbed
// secret-shaped substrings.
func (a *Arbiter) logPrompt(ctx context.Context, op, prompt string) {
	if a.logger == nil {
		return
	}
	a.logger.Debug(ctx, "arbiter prompt", "operation", op, "prompt", ccoserr.RedactText(prompt))
}

// NaturalLanguageToIntent implements natural_language_to_intent: it runs
// the configured engine over request and persists the resulting intent
// into the intent graph as Draft.
func (a *Arbiter) NaturalLanguageToIntent(ctx context.Context, request string) (intent.Intent, error) {
	if strings.TrimSpace(request) == "" {
		return intent.Intent{}, ccoserr.New(ccoserr.KindParse, "arbiter: empty natural language request")
	}
	a.logPrompt(ctx, "natural_language_to_intent", request)

	i, err := a.engine.IntentFromRequest(ctx, request)
	if err != nil {
		return intent.Intent{}, err
	}
	i.Request = request
	stored, err := a.intents.StoreIntent(i)
	if err != nil {
		return intent.Intent{}, err
	}
	return stored, nil
}

// IntentToPlan implements intent_to_plan: it asks the configured engine to
// synthesize an RTFS plan body for i.Goal, resolving against the
// capability ids the marketplace currently knows about, and returns an
// unexecuted Plan tied to i.
func (a *Arbiter) IntentToPlan(ctx context.Context, i intent.Intent) (orchestrator.Plan, error) {
	a.logPrompt(ctx, "intent_to_plan", i.Goal)

	available := a.marketplace.SearchIndex()
	body, err := a.engine.PlanFromIntent(ctx, i.Goal, available)
	if err != nil {
		return orchestrator.Plan{}, err
	}
	plan := orchestrator.Plan{
		Body:      body,
		Language:  "rtfs20",
		IntentIDs: []string{i.ID},
	}
	plan.AllocateID()
	return plan, nil
}

// ExecutePlan implements execute_plan by delegating straight to the
// orchestrator, which owns governance preflight, causal-chain recording,
// and intent status transitions. The arbiter adds nothing over the
// orchestrator's own ExecutePlan beyond being the pipeline's stated entry
// point (spec §4.9 lists execute_plan as one of the arbiter's four
// operations, even though the heavy lifting lives in the orchestrator,
// mirroring how the Data flow diagram in §2 routes Arbiter -> Orchestrator).
func (a *Arbiter) ExecutePlan(ctx context.Context, plan orchestrator.Plan, rtCtx *security.Context) orchestrator.ExecutionResult {
	return a.orchestrator.ExecutePlan(ctx, plan, rtCtx)
}

// LearnFromExecution implements learn_from_execution: it recomputes the
// delegation AdaptiveThreshold from the causal chain's history for plan id
// and, for a hybrid engine whose observed success rate has dropped below
// Config.HybridThreshold, demotes all subsequent calls to the plain
// template engine; a later recovery of the rate does not restore the hybrid
// engine. Template, full-LLM, and dummy engines have no threshold to tune
// and are left as configured.
func (a *Arbiter) LearnFromExecution(ctx context.Context, planID string) (AdaptiveThreshold, error) {
	threshold, err := ObserveChainFeedback(ctx, a.chain, causalchain.Filter{PlanID: planID})
	if err != nil {
		return AdaptiveThreshold{}, err
	}
	if a.config.Kind == EngineHybrid && threshold.SuccessRate() < a.config.HybridThreshold {
		if a.logger != nil {
			a.logger.Warn(ctx, "arbiter: hybrid engine success rate below threshold, falling back to template",
				"plan_id", planID, "success_rate", threshold.SuccessRate(), "threshold", a.config.HybridThreshold)
		}
		a.engine = a.template
	}
	return threshold, nil
}

// Engine returns the arbiter's currently active delegation engine, mostly
// useful for tests that want to assert a fallback took effect.
func (a *Arbiter) Engine() Engine { return a.engine }
