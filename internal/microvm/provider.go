// Package microvm implements the pluggable sandbox abstraction of spec §4.5:
// a Provider trait over {Mock, Process, gVisor, Firecracker, Wasm} with
// authoritative network/filesystem/timeout policy enforcement.
package microvm

import (
	"context"
	"time"
)

// NetworkPolicyKind enumerates the MicroVM network enforcement modes.
type NetworkPolicyKind string

const (
	NetworkDenied    NetworkPolicyKind = "Denied"
	NetworkAllowList NetworkPolicyKind = "AllowList"
	NetworkDenyList  NetworkPolicyKind = "DenyList"
	NetworkFull      NetworkPolicyKind = "Full"
)

// NetworkPolicy pairs a kind with the host list used by AllowList/DenyList.
type NetworkPolicy struct {
	Kind  NetworkPolicyKind
	Hosts []string
}

// FilesystemPolicyKind enumerates the MicroVM filesystem enforcement modes.
type FilesystemPolicyKind string

const (
	FilesystemNone      FilesystemPolicyKind = "None"
	FilesystemReadOnly  FilesystemPolicyKind = "ReadOnly"
	FilesystemReadWrite FilesystemPolicyKind = "ReadWrite"
	FilesystemFull      FilesystemPolicyKind = "Full"
)

// FilesystemPolicy pairs a kind with the allowed path prefixes used by
// ReadOnly/ReadWrite.
type FilesystemPolicy struct {
	Kind  FilesystemPolicyKind
	Paths []string
}

// ProgramVariant identifies what kind of payload ExecutionContext.Program
// carries (a native capability dispatch, a subprocess command, a wasm
// module, ...). Providers that do not support a variant must fail fast.
type ProgramVariant string

const (
	ProgramNative ProgramVariant = "native"
	ProgramExec   ProgramVariant = "exec"
	ProgramWasm   ProgramVariant = "wasm"
)

// Program describes the payload a provider must execute.
type Program struct {
	Variant ProgramVariant
	// Command and Args describe an exec-variant program.
	Command string
	Args    []string
	// WasmModule holds a wasm-variant program's bytecode.
	WasmModule []byte
	// NativeFunc is invoked directly (in-process or within the provider's
	// isolation boundary) for the native variant.
	NativeFunc func(ctx context.Context) (any, error)
}

// ExecutionContext carries everything a provider needs to run one capability
// call under policy, per spec §4.5.
type ExecutionContext struct {
	Program       Program
	CapabilityID  string
	Permissions   []string
	Args          map[string]any
	Network       NetworkPolicy
	Filesystem    FilesystemPolicy
	CPULimit      float64
	MemoryLimitMB int
	Timeout       time.Duration
	Env           map[string]string
}

// ExecutionResult is the outcome of a provider's ExecuteProgram call.
type ExecutionResult struct {
	Value      any
	DurationMS int64
	Metadata   map[string]any
}

// Provider abstracts a pluggable sandbox. Initialize/Cleanup must be
// idempotent; IsAvailable is a cheap feature probe callers use to skip
// providers unsupported on the current host.
type Provider interface {
	Name() string
	IsAvailable() bool
	Initialize(ctx context.Context) error
	Cleanup(ctx context.Context) error
	ExecuteProgram(ctx context.Context, execCtx ExecutionContext) (ExecutionResult, error)
}
