package capability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterBuiltinsRegistersExpectedIDs(t *testing.T) {
	r := New()
	require.NoError(t, RegisterBuiltins(r, nil, nil, nil))

	for _, id := range []string{
		"ccos.echo",
		"ccos.math.add",
		"ccos.io.read-file",
		"ccos.io.write-file",
		"ccos.io.delete-file",
		"ccos.io.file-exists",
		"ccos.network.http-fetch",
		"ccos.user.ask",
		"ccos.memory.store",
		"ccos.memory.get",
		"ccos.secrets.set",
		"ccos.approval.request_human_action",
		"ccos.approval.complete",
	} {
		require.True(t, r.Has(id), "expected builtin %q to be registered", id)
	}
}

func TestMathAddComputesSum(t *testing.T) {
	r := New()
	require.NoError(t, RegisterBuiltins(r, nil, nil, nil))

	out, err := r.ExecuteCapabilityWithMicroVM(context.Background(), "ccos.math.add", map[string]any{"a": 2.0, "b": 3.0}, nil)
	require.NoError(t, err)
	require.Equal(t, 5.0, out)
}

func TestIOWriteReadDeleteRoundTrip(t *testing.T) {
	r := New()
	require.NoError(t, RegisterBuiltins(r, nil, nil, nil))
	path := filepath.Join(t.TempDir(), "note.txt")

	_, err := r.ExecuteCapabilityWithMicroVM(context.Background(), "ccos.io.write-file",
		map[string]any{"path": path, "content": "hello"}, nil)
	require.NoError(t, err)

	out, err := r.ExecuteCapabilityWithMicroVM(context.Background(), "ccos.io.read-file",
		map[string]any{"path": path}, nil)
	require.NoError(t, err)
	require.Equal(t, "hello", out)

	_, err = r.ExecuteCapabilityWithMicroVM(context.Background(), "ccos.io.delete-file",
		map[string]any{"path": path}, nil)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestFileExistsReportsFalseForMissingPath(t *testing.T) {
	r := New()
	require.NoError(t, RegisterBuiltins(r, nil, nil, nil))

	out, err := r.ExecuteCapabilityWithMicroVM(context.Background(), "ccos.io.file-exists",
		map[string]any{"path": filepath.Join(t.TempDir(), "missing")}, nil)
	require.NoError(t, err)
	require.Equal(t, false, out)
}

func TestMemoryStoreFailsWithoutWiredBackend(t *testing.T) {
	r := New()
	require.NoError(t, RegisterBuiltins(r, nil, nil, nil))

	_, err := r.ExecuteCapabilityWithMicroVM(context.Background(), "ccos.memory.store",
		map[string]any{"key": "k", "value": "v"}, nil)
	require.Error(t, err)
}
