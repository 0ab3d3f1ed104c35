package microvm

import (
	"context"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// WasmProvider executes wasm-variant programs. This build carries no wasm
// runtime dependency; IsAvailable reports false so the registry falls back
// to another provider, matching the feature-probe contract of spec §4.5.
type WasmProvider struct{}

// NewWasmProvider constructs a WasmProvider.
func NewWasmProvider() *WasmProvider { return &WasmProvider{} }

func (p *WasmProvider) Name() string        { return "wasm" }
func (p *WasmProvider) IsAvailable() bool   { return false }
func (p *WasmProvider) Initialize(context.Context) error { return nil }
func (p *WasmProvider) Cleanup(context.Context) error    { return nil }

func (p *WasmProvider) ExecuteProgram(context.Context, ExecutionContext) (ExecutionResult, error) {
	return ExecutionResult{}, ccoserr.New(ccoserr.KindResource, "wasm provider unavailable in this build")
}
