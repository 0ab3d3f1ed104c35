package capability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeArgsToMapPassesMapThrough(t *testing.T) {
	out, err := NormalizeArgsToMap(map[string]any{"a": 1}, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1}, out)
}

func TestNormalizeArgsToMapBindsPositionalList(t *testing.T) {
	out, err := NormalizeArgsToMap([]any{"a", "b"}, &Schema{Keys: []string{"x", "y"}})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"x": "a", "y": "b"}, out)
}

func TestNormalizeArgsToMapRejectsArityOverflow(t *testing.T) {
	_, err := NormalizeArgsToMap([]any{"a", "b"}, &Schema{Keys: []string{"x"}})
	require.Error(t, err)
}

// TestNormalizeArgsToMapBindsBareScalar covers the single-positional-arg
// shape rtfs's (call :cap x) form produces: a lone value, not wrapped in a
// list, when only one argument was passed.
func TestNormalizeArgsToMapBindsBareScalar(t *testing.T) {
	out, err := NormalizeArgsToMap("hello", &Schema{Keys: []string{"value"}})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"value": "hello"}, out)
}

func TestNormalizeArgsToMapRejectsBareScalarWithNoSchema(t *testing.T) {
	_, err := NormalizeArgsToMap("hello", nil)
	require.Error(t, err)
}
