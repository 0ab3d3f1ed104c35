package capability

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
	"github.com/mandubian/ccos-sub020/internal/microvm"
	"github.com/mandubian/ccos-sub020/internal/security"
)

// secondsToDuration converts a manifest's float-seconds timeout into a
// time.Duration; zero or negative means no timeout.
func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// idPattern is the capability id grammar of record (spec §6): dotted
// lowercase segments.
var idPattern = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// ValidID reports whether id conforms to the capability id grammar.
func ValidID(id string) bool {
	return id != "" && idPattern.MatchString(id)
}

// NativeFunc implements a built-in capability's behavior. It receives the
// normalized, schema-validated argument map.
type NativeFunc func(ctx context.Context, args map[string]any) (any, error)

// Entry is a registered capability: its manifest plus the native
// implementation backing the Native provider variant.
type Entry struct {
	Manifest Manifest
	Func     NativeFunc
}

// Registry is the process-wide static table of built-in capabilities. It is
// safe for concurrent use; registration typically happens once at boot.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	providers *microvm.Factory
}

// New constructs an empty Registry with the standard microvm provider
// factory.
func New() *Registry {
	return &Registry{
		entries:   map[string]*Entry{},
		providers: microvm.NewFactory(),
	}
}

// Register adds a native capability to the table. Registering a duplicate
// id replaces the prior entry (later registration wins), matching a
// process-wide static table semantics.
func (r *Registry) Register(manifest Manifest, fn NativeFunc) error {
	if !ValidID(manifest.ID) {
		return ccoserr.Newf(ccoserr.KindParse, "invalid capability id %q", manifest.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[manifest.ID] = &Entry{Manifest: manifest, Func: fn}
	return nil
}

// GetCapability returns the registered entry for id, if any.
func (r *Registry) GetCapability(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Has reports whether id is a known capability, for preflight scanning.
func (r *Registry) Has(id string) bool {
	_, ok := r.GetCapability(id)
	return ok
}

// ExecuteCapabilityWithMicroVM normalizes args per the entry's input schema,
// validates them, enforces the runtime context allow-list, and dispatches
// either to the selected MicroVM provider or directly in-process when the
// manifest declares no isolation policy.
func (r *Registry) ExecuteCapabilityWithMicroVM(ctx context.Context, id string, args any, rtCtx *security.Context) (any, error) {
	entry, ok := r.GetCapability(id)
	if !ok {
		return nil, ccoserr.Newf(ccoserr.KindNotFound, "unknown capability %q", id)
	}

	if rtCtx != nil && !rtCtx.AllowsCapability(id) {
		return nil, ccoserr.Newf(ccoserr.KindSecurity, "capability %q denied by runtime context", id).
			WithFields(map[string]any{"operation": "capability_allowlist", "capability": id})
	}

	normalized, err := NormalizeArgsToMap(args, entry.Manifest.InputSchema)
	if err != nil {
		return nil, err
	}
	if err := Validate(normalized, entry.Manifest.InputSchema); err != nil {
		return nil, err
	}

	if rtCtx != nil {
		if ok, denied := rtCtx.EnsureEffectsAllowed(entry.Manifest.Effects); !ok {
			return nil, ccoserr.Newf(ccoserr.KindSecurity, "effect %q denied for capability %q", denied, id).
				WithFields(map[string]any{"operation": "effect_policy", "capability": id, "context": denied})
		}
	}

	provider, err := r.providers.Select(entry.Manifest.Policy.Provider)
	if err != nil {
		return nil, err
	}

	execCtx := microvm.ExecutionContext{
		CapabilityID:  id,
		Permissions:   entry.Manifest.Permissions,
		Args:          normalized,
		Network:       microvm.NetworkPolicy{Kind: microvm.NetworkPolicyKind(entry.Manifest.Policy.Network.Kind), Hosts: entry.Manifest.Policy.Network.Hosts},
		Filesystem:    microvm.FilesystemPolicy{Kind: microvm.FilesystemPolicyKind(entry.Manifest.Policy.Filesystem.Kind), Paths: entry.Manifest.Policy.Filesystem.Paths},
		CPULimit:      entry.Manifest.Policy.CPULimit,
		MemoryLimitMB: entry.Manifest.Policy.MemoryLimitMB,
		Timeout:       secondsToDuration(entry.Manifest.Policy.Timeout),
		Program: microvm.Program{
			Variant: microvm.ProgramNative,
			NativeFunc: func(innerCtx context.Context) (any, error) {
				return entry.Func(innerCtx, normalized)
			},
		},
	}

	result, err := provider.ExecuteProgram(ctx, execCtx)
	if err != nil {
		return nil, err
	}
	if entry.Manifest.OutputSchema != nil {
		if out, ok := result.Value.(map[string]any); ok {
			if err := Validate(out, entry.Manifest.OutputSchema); err != nil {
				return nil, err
			}
		}
	}
	return result.Value, nil
}
