package workingmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mandubian/ccos-sub020/internal/causalchain"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", "v1"))
	require.NoError(t, s.Put(ctx, "k", "v2"))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v)
}

func TestGetMissingKeyReturnsNotFoundFalse(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueryFiltersByAllTags(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, Entry{Key: "a", Tags: []string{"x", "y"}}))
	require.NoError(t, s.Append(ctx, Entry{Key: "b", Tags: []string{"x"}}))

	results, err := s.Query(ctx, QueryParams{Tags: []string{"x", "y"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "a", results[0].Key)
}

func TestQueryRespectsLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, Entry{Key: "e"}))
	}
	results, err := s.Query(ctx, QueryParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestIngestFromChainIsIdempotent(t *testing.T) {
	ctx := context.Background()
	chain := causalchain.New()
	_, err := chain.Append(ctx, causalchain.Action{
		PlanID:       "plan-1",
		ActionType:   causalchain.ActionCapabilityCall,
		FunctionName: "ccos.echo",
		Result:       "hi",
	})
	require.NoError(t, err)
	_, err = chain.Append(ctx, causalchain.Action{
		PlanID:     "plan-1",
		ActionType: causalchain.ActionPlanStepStarted, // not derivable
	})
	require.NoError(t, err)

	store := NewMemoryStore()
	n, err := IngestFromChain(ctx, store, chain, causalchain.Filter{PlanID: "plan-1"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Re-ingesting the same range must not duplicate entries.
	n2, err := IngestFromChain(ctx, store, chain, causalchain.Filter{PlanID: "plan-1"})
	require.NoError(t, err)
	require.Equal(t, 0, n2)

	results, err := store.Query(ctx, QueryParams{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}
