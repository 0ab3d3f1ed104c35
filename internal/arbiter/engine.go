package arbiter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
	"github.com/mandubian/ccos-sub020/internal/intent"
)

// EngineKind names one of the four delegation engines a Config may select,
// per spec §4.9: "Delegation configuration selects between template,
// hybrid, full-LLM, and dummy engines."
type EngineKind string

const (
	EngineTemplate EngineKind = "template"
	EngineHybrid   EngineKind = "hybrid"
	EngineFullLLM  EngineKind = "full_llm"
	EngineDummy    EngineKind = "dummy"
)

// Engine turns a natural-language request into an intent, and an intent's
// goal into an RTFS plan body. Every delegation kind implements this same
// narrow surface so the Arbiter can swap engines without branching on kind
// at the call site.
type Engine interface {
	IntentFromRequest(ctx context.Context, request string) (intent.Intent, error)
	PlanFromIntent(ctx context.Context, goal string, availableCapabilities []string) (string, error)
}

// DummyEngine produces a fixed, deterministic intent/plan pair regardless
// of input. It exists for tests and for dry-run wiring before any real
// engine is configured, matching the "dummy" delegation kind named by the
// spec.
type DummyEngine struct{}

func (DummyEngine) IntentFromRequest(_ context.Context, request string) (intent.Intent, error) {
	return intent.Intent{Name: "dummy-intent", Goal: request}, nil
}

func (DummyEngine) PlanFromIntent(_ context.Context, _ string, _ []string) (string, error) {
	return "(do nil)", nil
}

// TemplateEngine synthesizes intents and plans from canned templates and
// keyword matching against the capability ids offered to it, with no LLM
// call at all. It is the default, always-available engine: HybridEngine
// falls back to it when its LLM call fails; FullLLMEngine and DummyEngine
// do not.
type TemplateEngine struct{}

// IntentFromRequest builds an intent whose goal is the request verbatim and
// whose name is derived from its first few words, since a template has no
// way to summarize free text more cleverly than that.
func (TemplateEngine) IntentFromRequest(_ context.Context, request string) (intent.Intent, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return intent.Intent{}, ccoserr.New(ccoserr.KindParse, "arbiter: empty request")
	}
	return intent.Intent{Name: summarize(request), Goal: request}, nil
}

func summarize(request string) string {
	words := strings.Fields(request)
	if len(words) > 5 {
		words = words[:5]
	}
	return strings.Join(words, " ")
}

// PlanFromIntent picks the best keyword match among availableCapabilities
// for goal and emits a one-call plan body invoking it. With no match it
// emits the no-op plan body (do nil), which calls no capability.
func (TemplateEngine) PlanFromIntent(_ context.Context, goal string, availableCapabilities []string) (string, error) {
	capID := bestKeywordMatch(goal, availableCapabilities)
	if capID == "" {
		return "(do nil)", nil
	}
	return fmt.Sprintf(`(do (call :%s {:goal %q}))`, capID, goal), nil
}

// bestKeywordMatch scores each candidate by the number of goal words that
// appear as a dotted segment of its id, returning the highest scorer (ties
// broken by shortest id, then lexical order, for determinism).
func bestKeywordMatch(goal string, candidates []string) string {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(goal)) {
		words[strings.Trim(w, ".,!?:;")] = true
	}

	type scored struct {
		id    string
		score int
	}
	var best []scored
	for _, id := range candidates {
		score := 0
		for _, seg := range strings.FieldsFunc(strings.ToLower(id), func(r rune) bool { return r == '.' || r == '_' || r == '-' }) {
			if words[seg] {
				score++
			}
		}
		if score > 0 {
			best = append(best, scored{id: id, score: score})
		}
	}
	if len(best) == 0 {
		return ""
	}
	sort.Slice(best, func(i, j int) bool {
		if best[i].score != best[j].score {
			return best[i].score > best[j].score
		}
		if len(best[i].id) != len(best[j].id) {
			return len(best[i].id) < len(best[j].id)
		}
		return best[i].id < best[j].id
	})
	return best[0].id
}

// FullLLMEngine delegates every call straight to an LLMProvider, with no
// template fallback. A provider error is a hard error, not silently
// swallowed, since full-LLM is the kind an operator picks when they want
// the LLM's judgment to be authoritative.
type FullLLMEngine struct {
	Provider LLMProvider
}

func (e FullLLMEngine) IntentFromRequest(ctx context.Context, request string) (intent.Intent, error) {
	raw, err := e.Provider.GenerateIntent(ctx, request)
	if err != nil {
		return intent.Intent{}, ccoserr.NewWithCause(ccoserr.KindProvider, "arbiter: full-llm intent generation failed", err)
	}
	gi, err := parseGeneratedIntent(raw)
	if err != nil {
		return intent.Intent{}, err
	}
	return intent.Intent{Name: gi.Name, Goal: gi.Goal, Constraints: gi.Constraints, Preferences: gi.Preferences}, nil
}

func (e FullLLMEngine) PlanFromIntent(ctx context.Context, goal string, availableCapabilities []string) (string, error) {
	body, err := e.Provider.GeneratePlan(ctx, goal, availableCapabilities)
	if err != nil {
		return "", ccoserr.NewWithCause(ccoserr.KindProvider, "arbiter: full-llm plan generation failed", err)
	}
	return body, nil
}

// HybridEngine tries the LLM first and falls back to TemplateEngine on any
// provider error, so a transient LLM outage degrades synthesis quality
// instead of blocking the pipeline outright.
type HybridEngine struct {
	Provider LLMProvider
	fallback TemplateEngine
}

// NewHybridEngine constructs a HybridEngine over provider.
func NewHybridEngine(provider LLMProvider) *HybridEngine {
	return &HybridEngine{Provider: provider}
}

func (e *HybridEngine) IntentFromRequest(ctx context.Context, request string) (intent.Intent, error) {
	raw, err := e.Provider.GenerateIntent(ctx, request)
	if err != nil {
		return e.fallback.IntentFromRequest(ctx, request)
	}
	gi, err := parseGeneratedIntent(raw)
	if err != nil {
		return e.fallback.IntentFromRequest(ctx, request)
	}
	return intent.Intent{Name: gi.Name, Goal: gi.Goal, Constraints: gi.Constraints, Preferences: gi.Preferences}, nil
}

func (e *HybridEngine) PlanFromIntent(ctx context.Context, goal string, availableCapabilities []string) (string, error) {
	body, err := e.Provider.GeneratePlan(ctx, goal, availableCapabilities)
	if err != nil || strings.TrimSpace(body) == "" {
		return e.fallback.PlanFromIntent(ctx, goal, availableCapabilities)
	}
	return body, nil
}
