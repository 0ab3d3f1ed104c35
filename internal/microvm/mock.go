package microvm

import (
	"context"
	"net/url"
	"time"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// MockProvider executes native programs directly in-process, applying the
// same network/filesystem/timeout policy checks a real sandbox would. It is
// always available and is the default provider for tests and for
// capabilities with no declared isolation requirement.
type MockProvider struct{}

// NewMockProvider constructs a MockProvider.
func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string        { return "mock" }
func (p *MockProvider) IsAvailable() bool   { return true }
func (p *MockProvider) Initialize(context.Context) error { return nil }
func (p *MockProvider) Cleanup(context.Context) error    { return nil }

func (p *MockProvider) ExecuteProgram(ctx context.Context, execCtx ExecutionContext) (ExecutionResult, error) {
	if execCtx.Program.Variant != ProgramNative || execCtx.Program.NativeFunc == nil {
		return ExecutionResult{}, ccoserr.New(ccoserr.KindResource, "mock provider only executes native programs")
	}

	if path, ok := argPath(execCtx.Args); ok {
		op := FileOpRead
		if isWriteCapability(execCtx.CapabilityID) {
			op = FileOpWrite
		}
		if err := CheckFilesystem(execCtx.Filesystem, op, path); err != nil {
			return ExecutionResult{}, err
		}
	}
	if host, ok := argHost(execCtx.Args); ok {
		if err := CheckNetwork(execCtx.Network, host); err != nil {
			return ExecutionResult{}, err
		}
	}

	start := time.Now()
	runCtx := ctx
	cancel := func() {}
	if execCtx.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, execCtx.Timeout)
	}
	defer cancel()

	resultCh := make(chan struct {
		val any
		err error
	}, 1)
	go func() {
		val, err := execCtx.Program.NativeFunc(runCtx)
		resultCh <- struct {
			val any
			err error
		}{val, err}
	}()

	select {
	case r := <-resultCh:
		return ExecutionResult{Value: r.val, DurationMS: time.Since(start).Milliseconds()}, r.err
	case <-runCtx.Done():
		return ExecutionResult{DurationMS: time.Since(start).Milliseconds()},
			ccoserr.Newf(ccoserr.KindResource, "capability %q timed out", execCtx.CapabilityID).
				WithFields(map[string]any{"operation": "timeout", "capability": execCtx.CapabilityID})
	}
}

// argPath extracts a filesystem path from a capability's normalized
// arguments, following the "path" key convention used by the ccos.io.*
// built-ins.
func argPath(args map[string]any) (string, bool) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", false
	}
	return path, true
}

// argHost extracts an outbound network host from a capability's normalized
// arguments, following the "host"/"url" key conventions used by the
// ccos.network.* built-ins.
func argHost(args map[string]any) (string, bool) {
	if host, ok := args["host"].(string); ok && host != "" {
		return host, true
	}
	raw, ok := args["url"].(string)
	if !ok || raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	return u.Hostname(), true
}
