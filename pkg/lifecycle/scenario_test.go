package lifecycle

import (
	"context"
	"testing"

	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStoreLifecycleEndToEnd walks one store through a full life: create,
// push, promote, idempotent re-push, refuse-delete-while-enabled, delete,
// and recreate with its version history protected by the graveyard.
func TestStoreLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.CreateStore(ctx, testClusterA, "orders", "team", `"long"`, `"string"`)
	require.NoError(t, err)

	v, err := e.IncrementVersionIdempotent(ctx, testClusterA, "orders", "p-1", 4, 3, true, true)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Number)
	assert.Equal(t, types.VersionStatusStarted, v.Status)

	// Simulate the push completing: the ingestion side drives the version
	// to ONLINE, then the push driver promotes it to current.
	_, err = e.mutateStore(testClusterA, "orders", func(s *types.Store) (*types.Store, error) {
		s.VersionByNumber(1).Status = types.VersionStatusOnline
		return s, nil
	})
	require.NoError(t, err)
	one := 1
	_, err = e.UpdateStore(ctx, testClusterA, "orders", UpdateStoreOptions{CurrentVersion: &one})
	require.NoError(t, err)

	// Re-running the same push job returns the same version untouched.
	again, err := e.IncrementVersionIdempotent(ctx, testClusterA, "orders", "p-1", 4, 3, true, true)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Number)
	assert.Equal(t, types.VersionStatusOnline, again.Status)

	// Deletion refuses while the store still serves traffic.
	err = e.DeleteStore(ctx, testClusterA, "orders", IgnoreVersion)
	require.Error(t, err)
	assert.True(t, verrors.Is(err, verrors.Conflict))

	off := false
	_, err = e.UpdateStore(ctx, testClusterA, "orders", UpdateStoreOptions{EnableReads: &off, EnableWrites: &off})
	require.NoError(t, err)
	require.NoError(t, e.DeleteStore(ctx, testClusterA, "orders", IgnoreVersion))

	largest, err := e.metadata.GetLargestUsedVersionFromGraveyard("orders")
	require.NoError(t, err)
	assert.Equal(t, 1, largest)

	// A recreate starts above the buried version number, so the next push
	// can never reuse v1.
	recreated, err := e.CreateStore(ctx, testClusterA, "orders", "team", `"long"`, `"string"`)
	require.NoError(t, err)
	assert.Equal(t, 1, recreated.LargestUsedVersionNumber)

	v2, err := e.IncrementVersionIdempotent(ctx, testClusterA, "orders", "p-2", 4, 3, false, false)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number)

	stores, err := e.ListStores(testClusterA)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "orders", stores[0].Name)
}
