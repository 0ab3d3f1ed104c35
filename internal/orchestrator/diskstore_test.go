package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDiskCheckpointStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskCheckpointStore(dir, nil)
	require.NoError(t, err)
	defer store.Close()

	cp := Checkpoint{ID: "cp-1", PlanID: "plan-1", Bindings: map[string]any{"x": 1.0}}
	require.NoError(t, store.Put(cp))

	got, ok := store.Get("cp-1")
	require.True(t, ok)
	require.Equal(t, "plan-1", got.PlanID)
}

func TestDiskCheckpointStoreEvictsOnExternalDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskCheckpointStore(dir, nil)
	require.NoError(t, err)
	defer store.Close()

	cp := Checkpoint{ID: "cp-2", PlanID: "plan-2"}
	require.NoError(t, store.Put(cp))
	_, ok := store.Get("cp-2")
	require.True(t, ok)

	require.NoError(t, os.Remove(filepath.Join(dir, "cp-2.json")))

	require.Eventually(t, func() bool {
		_, ok := store.Get("cp-2")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
