package microvm

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// ProcessProvider runs exec-variant programs as OS subprocesses. Filesystem
// policy is enforced against the command's resolved arguments that look like
// paths (a conservative heuristic: any argument containing a path separator
// is checked). ProcessProvider does not check network policy: a subprocess
// runs whatever network access the host OS grants it. Host-level network
// checks against CheckNetwork are made by MockProvider, for native programs.
type ProcessProvider struct{}

// NewProcessProvider constructs a ProcessProvider.
func NewProcessProvider() *ProcessProvider { return &ProcessProvider{} }

func (p *ProcessProvider) Name() string        { return "process" }
func (p *ProcessProvider) IsAvailable() bool   { return true }
func (p *ProcessProvider) Initialize(context.Context) error { return nil }
func (p *ProcessProvider) Cleanup(context.Context) error    { return nil }

func (p *ProcessProvider) ExecuteProgram(ctx context.Context, execCtx ExecutionContext) (ExecutionResult, error) {
	if execCtx.Program.Variant != ProgramExec {
		return ExecutionResult{}, ccoserr.Newf(ccoserr.KindResource, "process provider cannot run %q programs", execCtx.Program.Variant)
	}

	op := FileOpRead
	if isWriteCapability(execCtx.CapabilityID) {
		op = FileOpWrite
	}
	for _, arg := range execCtx.Program.Args {
		if strings.ContainsRune(arg, filepath.Separator) {
			if err := CheckFilesystem(execCtx.Filesystem, op, arg); err != nil {
				return ExecutionResult{}, err
			}
		}
	}

	runCtx := ctx
	cancel := func() {}
	if execCtx.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, execCtx.Timeout)
	}
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, execCtx.Program.Command, execCtx.Program.Args...)
	for k, v := range execCtx.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	duration := time.Since(start).Milliseconds()

	if runCtx.Err() == context.DeadlineExceeded {
		return ExecutionResult{DurationMS: duration},
			ccoserr.Newf(ccoserr.KindResource, "capability %q timed out", execCtx.CapabilityID).
				WithFields(map[string]any{"operation": "timeout", "capability": execCtx.CapabilityID})
	}
	if err != nil {
		return ExecutionResult{DurationMS: duration}, ccoserr.NewWithCause(ccoserr.KindProvider, "process execution failed", err)
	}
	return ExecutionResult{Value: stdout.String(), DurationMS: duration}, nil
}

func isWriteCapability(capabilityID string) bool {
	return strings.Contains(capabilityID, "write") || strings.Contains(capabilityID, "delete")
}
