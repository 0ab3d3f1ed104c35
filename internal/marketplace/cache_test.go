package marketplace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mandubian/ccos-sub020/internal/capability"
)

func TestMemoryCacheExpiresEntries(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []capability.Manifest{{ID: "ccos.echo"}}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 0, c.Len())
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	manifests := []capability.Manifest{{ID: "ccos.echo"}}
	require.NoError(t, c.Set(ctx, "k", manifests, time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, manifests, got)

	require.NoError(t, c.Delete(ctx, "k"))
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, got)
}
