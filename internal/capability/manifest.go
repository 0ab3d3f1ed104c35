// Package capability implements the Capability Registry: the process-wide
// static table of built-in capabilities with their declared arity and
// schema, per spec §3/§4.3.
package capability

// ProviderVariant enumerates how a capability is ultimately dispatched.
type ProviderVariant string

const (
	ProviderNative ProviderVariant = "Native"
	ProviderHTTP   ProviderVariant = "Http"
	ProviderMCP    ProviderVariant = "MCP"
	ProviderStream ProviderVariant = "Stream"
	ProviderRemote ProviderVariant = "Remote"
)

// IsolationPolicy describes the MicroVM isolation required to run a
// capability, independent of its provider variant.
type IsolationPolicy struct {
	Provider string // "mock", "process", "wasm", "gvisor", "firecracker", "" (in-process)
	Network  NetworkPolicy
	Filesystem FilesystemPolicy
	CPULimit   float64
	MemoryLimitMB int
	Timeout    float64 // seconds
}

// NetworkPolicyKind enumerates the MicroVM network enforcement modes.
type NetworkPolicyKind string

const (
	NetworkDenied    NetworkPolicyKind = "Denied"
	NetworkAllowList NetworkPolicyKind = "AllowList"
	NetworkDenyList  NetworkPolicyKind = "DenyList"
	NetworkFull      NetworkPolicyKind = "Full"
)

// NetworkPolicy pairs a kind with its host list (used by AllowList/DenyList).
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

// FilesystemPolicy pairs a kind with its allowed path prefixes (used by
// ReadOnly/ReadWrite).
type FilesystemPolicy struct {
	Kind  FilesystemPolicyKind
	Paths []string
}

// Manifest describes a capability's identity, contract, and policy, per
// spec §3. id is unique per version.
type Manifest struct {
	ID          string
	Version     string
	Description string
	Provider    ProviderVariant

	InputSchema  *Schema
	OutputSchema *Schema

	EffectType  string
	Effects     []string
	Permissions []string

	Attestation string
	Provenance  string

	Domains    []string
	Categories []string

	Policy IsolationPolicy
}
