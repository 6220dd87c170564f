package lifecycle

import (
	"context"
	"testing"

	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("refuses to delete while reads or writes are enabled", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)

		err = e.DeleteStore(ctx, testClusterA, "widgets", IgnoreVersion)
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.Conflict))

		reads := false
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{EnableReads: &reads})
		require.NoError(t, err)
		err = e.DeleteStore(ctx, testClusterA, "widgets", IgnoreVersion)
		require.Error(t, err, "writes are still enabled")
		assert.True(t, verrors.Is(err, verrors.Conflict))

		writes := false
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{EnableWrites: &writes})
		require.NoError(t, err)
		require.NoError(t, e.DeleteStore(ctx, testClusterA, "widgets", IgnoreVersion))
	})

	t.Run("tears down versions, topics, and the config row", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)
		_, err = e.AddVersion(ctx, testClusterA, "widgets", "job-1", UnsetVersionNumber, 1, 1, true, false)
		require.NoError(t, err)
		reads, writes := false, false
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{EnableReads: &reads, EnableWrites: &writes})
		require.NoError(t, err)

		require.NoError(t, e.DeleteStore(ctx, testClusterA, "widgets", IgnoreVersion))

		_, _, err = e.metadata.GetStore(testClusterA, "widgets")
		assert.True(t, verrors.Is(err, verrors.NotFound))

		_, err = e.metadata.GetStoreConfig("widgets")
		assert.True(t, verrors.Is(err, verrors.NotFound))

		assert.False(t, e.coord.HasResource(testClusterA, "widgets_v1"))

		largest, err := e.metadata.GetLargestUsedVersionFromGraveyard("widgets")
		require.NoError(t, err)
		assert.Equal(t, 1, largest)
	})

	t.Run("rejects a regressive override", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)
		_, err = e.AddVersion(ctx, testClusterA, "widgets", "job-1", UnsetVersionNumber, 1, 1, false, false)
		require.NoError(t, err)
		reads, writes := false, false
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{EnableReads: &reads, EnableWrites: &writes})
		require.NoError(t, err)

		err = e.DeleteStore(ctx, testClusterA, "widgets", 0)
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.Conflict))
	})

	t.Run("leaves the discovery config alone during migration", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.metadata.AddStore(testClusterA, &types.Store{Name: "widgets", CurrentVersion: types.NonExistingVersion}))
		require.NoError(t, e.metadata.PutStoreConfig(&types.StoreConfig{StoreName: "widgets", Cluster: testClusterB, MigrationSrc: testClusterA, MigrationDest: testClusterB}))

		require.NoError(t, e.DeleteStore(ctx, testClusterA, "widgets", IgnoreVersion))

		cfg, err := e.metadata.GetStoreConfig("widgets")
		require.NoError(t, err)
		assert.Equal(t, testClusterB, cfg.Cluster)
	})
}
