package capability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mandubian/ccos-sub020/internal/security"
)

func echoManifest() Manifest {
	return Manifest{
		ID:      "ccos.echo",
		Version: "1.0.0",
		InputSchema: &Schema{
			Keys: []string{"message"},
			Doc: []byte(`{
				"type": "object",
				"properties": {"message": {"type": "string"}},
				"required": ["message"]
			}`),
		},
		Effects: []string{},
	}
}

func TestRegisterRejectsInvalidID(t *testing.T) {
	r := New()
	err := r.Register(Manifest{ID: "Not Valid!"}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
}

func TestExecuteCapabilityNormalizesPositionalArgs(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoManifest(), func(ctx context.Context, args map[string]any) (any, error) {
		return args["message"], nil
	}))

	out, err := r.ExecuteCapabilityWithMicroVM(context.Background(), "ccos.echo", []any{"hello"}, nil)
	require.NoError(t, err)
	require.Equal(t, "hello", out)
}

func TestExecuteCapabilityRejectsSchemaViolation(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoManifest(), func(ctx context.Context, args map[string]any) (any, error) {
		return args["message"], nil
	}))

	_, err := r.ExecuteCapabilityWithMicroVM(context.Background(), "ccos.echo", map[string]any{}, nil)
	require.Error(t, err)
}

func TestExecuteCapabilityDeniedByRuntimeContextAllowlist(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoManifest(), func(ctx context.Context, args map[string]any) (any, error) {
		return args["message"], nil
	}))

	rtCtx := security.NewControlled([]string{"ccos.other"}, nil)
	_, err := r.ExecuteCapabilityWithMicroVM(context.Background(), "ccos.echo", map[string]any{"message": "hi"}, &rtCtx)
	require.Error(t, err)
}

func TestExecuteCapabilityDeniedByEffectPolicy(t *testing.T) {
	r := New()
	manifest := echoManifest()
	manifest.Effects = []string{"network"}
	require.NoError(t, r.Register(manifest, func(ctx context.Context, args map[string]any) (any, error) {
		return args["message"], nil
	}))

	rtCtx := security.NewControlled([]string{"ccos.echo"}, []string{})
	_, err := r.ExecuteCapabilityWithMicroVM(context.Background(), "ccos.echo", map[string]any{"message": "hi"}, &rtCtx)
	require.Error(t, err)
}

func TestExecuteCapabilityUnknownIDFails(t *testing.T) {
	r := New()
	_, err := r.ExecuteCapabilityWithMicroVM(context.Background(), "ccos.nope", nil, nil)
	require.Error(t, err)
}

func TestHasReflectsRegistration(t *testing.T) {
	r := New()
	require.False(t, r.Has("ccos.echo"))
	require.NoError(t, r.Register(echoManifest(), func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	}))
	require.True(t, r.Has("ccos.echo"))
}
