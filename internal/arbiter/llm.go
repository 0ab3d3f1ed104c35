package arbiter

import (
	"context"
	"encoding/json"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// LLMProvider is the narrow, vendor-agnostic interface the arbiter's
// full-LLM and hybrid engines depend on. No concrete vendor SDK is wired
// here (wire formats for specific providers are out of scope per spec §1
// Non-goals); a caller supplies whichever backend it wants at construction
// time, mirroring how governance.LLMProvider stays provider-agnostic.
type LLMProvider interface {
	// GenerateText renders free-form completion text for prompt.
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// GenerateIntent renders a StorableIntent as strict JSON from a natural
	// language request.
	GenerateIntent(ctx context.Context, request string) (string, error)
	// GeneratePlan renders an RTFS plan body as a string for the given
	// intent goal and the capability ids available to resolve it.
	GeneratePlan(ctx context.Context, goal string, availableCapabilities []string) (string, error)
	// ValidatePlan asks the provider to sanity-check a generated plan body
	// against the goal it's meant to satisfy, returning a free-form verdict.
	ValidatePlan(ctx context.Context, goal, planBody string) (string, error)
}

// generatedIntent is the strict JSON shape a GenerateIntent call must
// return.
type generatedIntent struct {
	Name        string         `json:"name"`
	Goal        string         `json:"goal"`
	Constraints map[string]any `json:"constraints"`
	Preferences map[string]any `json:"preferences"`
}

func parseGeneratedIntent(raw string) (generatedIntent, error) {
	var gi generatedIntent
	if err := json.Unmarshal([]byte(raw), &gi); err != nil {
		return generatedIntent{}, ccoserr.NewWithCause(ccoserr.KindParse, "arbiter: malformed intent JSON from provider", err)
	}
	if gi.Goal == "" {
		return generatedIntent{}, ccoserr.New(ccoserr.KindParse, "arbiter: generated intent has no goal")
	}
	return gi, nil
}
