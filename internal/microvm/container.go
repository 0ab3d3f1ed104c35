package microvm

import (
	"context"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// GvisorProvider and FirecrackerProvider stand in for the two container/VM
// isolation backends named in spec §4.5. Neither runtime is vendorable into
// this exercise's build; both report IsAvailable() == false so callers fall
// back to MockProvider or ProcessProvider, and both fail fast with a
// provider error if ExecuteProgram is forced anyway.
type (
	GvisorProvider      struct{}
	FirecrackerProvider struct{}
)

// NewGvisorProvider constructs a GvisorProvider.
func NewGvisorProvider() *GvisorProvider { return &GvisorProvider{} }

// NewFirecrackerProvider constructs a FirecrackerProvider.
func NewFirecrackerProvider() *FirecrackerProvider { return &FirecrackerProvider{} }

func (p *GvisorProvider) Name() string        { return "gvisor" }
func (p *GvisorProvider) IsAvailable() bool   { return false }
func (p *GvisorProvider) Initialize(context.Context) error { return nil }
func (p *GvisorProvider) Cleanup(context.Context) error    { return nil }
func (p *GvisorProvider) ExecuteProgram(context.Context, ExecutionContext) (ExecutionResult, error) {
	return ExecutionResult{}, ccoserr.New(ccoserr.KindProvider, "gvisor provider unavailable in this build")
}

func (p *FirecrackerProvider) Name() string        { return "firecracker" }
func (p *FirecrackerProvider) IsAvailable() bool   { return false }
func (p *FirecrackerProvider) Initialize(context.Context) error { return nil }
func (p *FirecrackerProvider) Cleanup(context.Context) error    { return nil }
func (p *FirecrackerProvider) ExecuteProgram(context.Context, ExecutionContext) (ExecutionResult, error) {
	return ExecutionResult{}, ccoserr.New(ccoserr.KindProvider, "firecracker provider unavailable in this build")
}
