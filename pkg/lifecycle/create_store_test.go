package lifecycle

import (
	"context"
	"testing"

	"github.com/cuemby/venice/pkg/verrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a fresh store", func(t *testing.T) {
		e := newTestEngine(t)
		store, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)
		assert.Equal(t, "widgets", store.Name)
		assert.Equal(t, "team-a", store.Owner)
		assert.True(t, store.EnableReads)
		assert.True(t, store.EnableWrites)
		assert.Equal(t, int64(-1), store.StorageQuotaBytes)

		cfg, err := e.metadata.GetStoreConfig("widgets")
		require.NoError(t, err)
		assert.Equal(t, testClusterA, cfg.Cluster)
		assert.False(t, cfg.Deleting)
	})

	t.Run("rejects a reserved name", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "venice_system_store_push_status", "team-a", "\"string\"", "\"string\"")
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.Conflict))
	})

	t.Run("rejects a collision with an active config", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)

		_, err = e.CreateStore(ctx, testClusterA, "widgets", "team-b", "\"string\"", "\"string\"")
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.AlreadyExists))
	})

	t.Run("preserves the graveyard's largest used version across recreate", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)
		_, err = e.AddVersion(ctx, testClusterA, "widgets", "job-1", UnsetVersionNumber, 3, 1, false, false)
		require.NoError(t, err)
		reads, writes := false, false
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{EnableReads: &reads, EnableWrites: &writes})
		require.NoError(t, err)

		require.NoError(t, e.DeleteStore(ctx, testClusterA, "widgets", IgnoreVersion))

		store, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)
		assert.Equal(t, 1, store.LargestUsedVersionNumber)
	})
}

func TestCheckResourceCleanupBeforeStoreCreation(t *testing.T) {
	ctx := context.Background()

	t.Run("clean slate passes", func(t *testing.T) {
		e := newTestEngine(t)
		assert.NoError(t, e.CheckResourceCleanupBeforeStoreCreation(ctx, testClusterA, "widgets", true))
	})

	t.Run("active store config blocks creation", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)

		err = e.CheckResourceCleanupBeforeStoreCreation(ctx, testClusterA, "widgets", true)
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.Conflict))
	})

	t.Run("lingering coordinator resource blocks creation when requested", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.coord.AddResource(ctx, testClusterA, "widgets_v1", 1, 1, stateModelOnlineOffline, rebalancerDelayedAutoRebalance, 1))

		err := e.CheckResourceCleanupBeforeStoreCreation(ctx, testClusterA, "widgets", true)
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.Conflict))

		assert.NoError(t, e.CheckResourceCleanupBeforeStoreCreation(ctx, testClusterA, "widgets", false))
	})
}
