package intent

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	calls []struct{ old, new, reason, planID string }
}

func (s *recordingSink) AppendStatusChange(_ context.Context, _, old, new, reason, planID string) error {
	s.calls = append(s.calls, struct{ old, new, reason, planID string }{old, new, reason, planID})
	return nil
}

func TestSetStatusFollowsLattice(t *testing.T) {
	g := New()
	i, err := g.StoreIntent(Intent{Name: "goal"})
	require.NoError(t, err)

	require.NoError(t, g.SetStatus(context.Background(), i.ID, StatusActive, "start", "p1"))
	require.NoError(t, g.SetStatus(context.Background(), i.ID, StatusCompleted, "done", "p1"))
	require.Error(t, g.SetStatus(context.Background(), i.ID, StatusActive, "reopen", "p1"))
}

func TestArchivedIntentIsImmutable(t *testing.T) {
	g := New()
	i, _ := g.StoreIntent(Intent{Name: "goal"})
	require.NoError(t, g.SetStatus(context.Background(), i.ID, StatusArchived, "done", ""))
	require.Error(t, g.SetStatus(context.Background(), i.ID, StatusActive, "reopen", ""))
}

func TestSetStatusEmitsEventToSink(t *testing.T) {
	sink := &recordingSink{}
	g := New(WithEventSink(sink))
	i, _ := g.StoreIntent(Intent{Name: "goal"})

	require.NoError(t, g.SetStatus(context.Background(), i.ID, StatusActive, "start", "p1"))
	require.NoError(t, g.SetStatus(context.Background(), i.ID, StatusCompleted, "done", "p1"))

	require.Len(t, sink.calls, 2)
	require.Equal(t, "Draft", sink.calls[0].old)
	require.Equal(t, "Active", sink.calls[0].new)
	require.Equal(t, "Completed", sink.calls[1].new)
}

func TestStoreEdgeRejectsSubgoalCycle(t *testing.T) {
	g := New()
	a, _ := g.StoreIntent(Intent{Name: "a"})
	b, _ := g.StoreIntent(Intent{Name: "b"})
	c, _ := g.StoreIntent(Intent{Name: "c"})

	require.NoError(t, g.StoreEdge(Edge{From: a.ID, To: b.ID, Kind: EdgeIsSubgoalOf}))
	require.NoError(t, g.StoreEdge(Edge{From: b.ID, To: c.ID, Kind: EdgeIsSubgoalOf}))
	require.Error(t, g.StoreEdge(Edge{From: c.ID, To: a.ID, Kind: EdgeIsSubgoalOf}))
}

func TestStoreEdgeRejectsUnknownEndpoint(t *testing.T) {
	g := New()
	a, _ := g.StoreIntent(Intent{Name: "a"})
	require.Error(t, g.StoreEdge(Edge{From: a.ID, To: "missing", Kind: EdgeRelatedTo}))
}

func TestStoreEdgeAllowsNonAcyclicSelfRelation(t *testing.T) {
	g := New()
	a, _ := g.StoreIntent(Intent{Name: "a"})
	b, _ := g.StoreIntent(Intent{Name: "b"})
	require.NoError(t, g.StoreEdge(Edge{From: a.ID, To: b.ID, Kind: EdgeConflictsWith}))
	require.NoError(t, g.StoreEdge(Edge{From: b.ID, To: a.ID, Kind: EdgeConflictsWith}))
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	g := New()
	a, _ := g.StoreIntent(Intent{Name: "a"})
	b, _ := g.StoreIntent(Intent{Name: "b"})
	require.NoError(t, g.StoreEdge(Edge{From: a.ID, To: b.ID, Kind: EdgeDependsOn}))

	var buf bytes.Buffer
	require.NoError(t, g.Backup(&buf))

	restored := New()
	require.NoError(t, restored.Restore(bytes.NewReader(buf.Bytes())))

	require.Equal(t, g.ListIntents(Filter{}), restored.ListIntents(Filter{}))
	require.Equal(t, g.ListEdges(), restored.ListEdges())

	// The restored graph must still enforce cycle checks on its rebuilt adjacency.
	require.Error(t, restored.StoreEdge(Edge{From: b.ID, To: a.ID, Kind: EdgeDependsOn}))
}
