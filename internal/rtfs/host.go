package rtfs

import (
	"context"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// HostInterface is the evaluator's sole side-effect boundary, per spec
// §4.6. Implementations are either PureHost (every capability call fails)
// or the CCOS host (routes to the marketplace and emits causal-chain
// actions); the evaluator itself never imports the marketplace or causal
// chain packages.
type HostInterface interface {
	ExecuteCapability(ctx context.Context, capabilityID string, args Value) (Value, error)
	NotifyStepStarted(ctx context.Context, stepName string, params Value)
	NotifyStepCompleted(ctx context.Context, stepName string, result Value)
	NotifyStepFailed(ctx context.Context, stepName string, err error)
	SetExecutionContext(ctx context.Context, key string, value Value)
	GetContextValue(ctx context.Context, key string) (Value, bool)
	SetStepExposureOverride(ctx context.Context, stepName string, expose bool)
}

// PureHost fails any capability call and is a no-op for every
// notification/context hook; it backs pure evaluation contexts (spec §4.6
// Non-goals: scripts that declare no capability calls run end to end with
// no host wiring at all).
type PureHost struct{}

// NewPureHost constructs a PureHost.
func NewPureHost() *PureHost { return &PureHost{} }

func (PureHost) ExecuteCapability(_ context.Context, capabilityID string, _ Value) (Value, error) {
	return Nil, ccoserr.Newf(ccoserr.KindSecurity, "capability %q invoked under a pure host", capabilityID).
		WithFields(map[string]any{"operation": "pure_host_call", "capability": capabilityID})
}

func (PureHost) NotifyStepStarted(context.Context, string, Value)   {}
func (PureHost) NotifyStepCompleted(context.Context, string, Value) {}
func (PureHost) NotifyStepFailed(context.Context, string, error)    {}
func (PureHost) SetExecutionContext(context.Context, string, Value) {}
func (PureHost) GetContextValue(context.Context, string) (Value, bool) {
	return Nil, false
}
func (PureHost) SetStepExposureOverride(context.Context, string, bool) {}
