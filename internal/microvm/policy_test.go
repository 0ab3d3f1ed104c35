package microvm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadOnlyPolicyAllowsReadRejectsWrite(t *testing.T) {
	policy := FilesystemPolicy{Kind: FilesystemReadOnly, Paths: []string{"/tmp"}}
	require.NoError(t, CheckFilesystem(policy, FileOpRead, "/tmp/x"))
	require.Error(t, CheckFilesystem(policy, FileOpWrite, "/tmp/x"))
}

func TestReadOnlyPolicyRejectsOutsidePath(t *testing.T) {
	policy := FilesystemPolicy{Kind: FilesystemReadOnly, Paths: []string{"/tmp"}}
	require.Error(t, CheckFilesystem(policy, FileOpRead, "/etc/passwd"))
}

func TestNetworkDeniedRejectsEveryHostIncludingAllowListEntries(t *testing.T) {
	denied := NetworkPolicy{Kind: NetworkDenied}
	require.Error(t, CheckNetwork(denied, "api.example.com"))

	allowList := NetworkPolicy{Kind: NetworkAllowList, Hosts: []string{"api.example.com"}}
	require.NoError(t, CheckNetwork(allowList, "api.example.com"))
	require.Error(t, CheckNetwork(denied, "api.example.com")) // Denied still rejects it
}

func TestNetworkAllowListSuffixMatch(t *testing.T) {
	policy := NetworkPolicy{Kind: NetworkAllowList, Hosts: []string{"example.com"}}
	require.NoError(t, CheckNetwork(policy, "sub.example.com"))
	require.Error(t, CheckNetwork(policy, "example.org"))
}

func TestNetworkDenyListComplement(t *testing.T) {
	policy := NetworkPolicy{Kind: NetworkDenyList, Hosts: []string{"blocked.com"}}
	require.Error(t, CheckNetwork(policy, "blocked.com"))
	require.NoError(t, CheckNetwork(policy, "allowed.com"))
}

func TestMockProviderEnforcesTimeout(t *testing.T) {
	p := NewMockProvider()
	_, err := p.ExecuteProgram(context.Background(), ExecutionContext{
		CapabilityID: "ccos.test.sleep",
		Timeout:      10 * time.Millisecond,
		Program: Program{
			Variant: ProgramNative,
			NativeFunc: func(ctx context.Context) (any, error) {
				select {
				case <-time.After(time.Second):
					return "done", nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
	})
	require.Error(t, err)
}

func TestMockProviderEnforcesFilesystemPolicyOnWrite(t *testing.T) {
	p := NewMockProvider()
	_, err := p.ExecuteProgram(context.Background(), ExecutionContext{
		CapabilityID: "ccos.io.write-file",
		Args:         map[string]any{"path": "/tmp/t.txt", "content": "x"},
		Filesystem:   FilesystemPolicy{Kind: FilesystemReadOnly, Paths: []string{"/tmp"}},
		Program: Program{
			Variant: ProgramNative,
			NativeFunc: func(ctx context.Context) (any, error) {
				t.Fatal("native func must not run when filesystem policy denies the write")
				return nil, nil
			},
		},
	})
	require.Error(t, err)
}

func TestMockProviderEnforcesNetworkPolicyDenied(t *testing.T) {
	p := NewMockProvider()
	_, err := p.ExecuteProgram(context.Background(), ExecutionContext{
		CapabilityID: "ccos.network.http-fetch",
		Args:         map[string]any{"url": "https://api.example.com/x"},
		Network:      NetworkPolicy{Kind: NetworkDenied},
		Program: Program{
			Variant: ProgramNative,
			NativeFunc: func(ctx context.Context) (any, error) {
				t.Fatal("native func must not run when network policy denies the host")
				return nil, nil
			},
		},
	})
	require.Error(t, err)
}

func TestMockProviderAllowsFilesystemAccessWithinPolicy(t *testing.T) {
	p := NewMockProvider()
	out, err := p.ExecuteProgram(context.Background(), ExecutionContext{
		CapabilityID: "ccos.io.read-file",
		Args:         map[string]any{"path": "/tmp/t.txt"},
		Filesystem:   FilesystemPolicy{Kind: FilesystemReadOnly, Paths: []string{"/tmp"}},
		Program: Program{
			Variant: ProgramNative,
			NativeFunc: func(ctx context.Context) (any, error) {
				return "ok", nil
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out.Value)
}

func TestFactoryFallsBackToMockForUnavailableProvider(t *testing.T) {
	f := NewFactory()
	p, err := f.Select("wasm")
	require.NoError(t, err)
	require.Equal(t, "mock", p.Name())
}
