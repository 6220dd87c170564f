package lifecycle

import (
	"context"
	"testing"

	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("applies independent fields", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)

		owner := "team-b"
		reads := false
		store, err := e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{Owner: &owner, EnableReads: &reads})
		require.NoError(t, err)
		assert.Equal(t, "team-b", store.Owner)
		assert.False(t, store.EnableReads)
	})

	t.Run("rejects a partition count change once versions exist", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)
		_, err = e.AddVersion(ctx, testClusterA, "widgets", "job-1", UnsetVersionNumber, 4, 1, false, false)
		require.NoError(t, err)

		pc := 8
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{PartitionCount: &pc})
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.Conflict))

		store, _, getErr := e.metadata.GetStore(testClusterA, "widgets")
		require.NoError(t, getErr)
		assert.Equal(t, 4, store.PartitionCount)
	})

	t.Run("rejects a partition count change on a hybrid store", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)
		pc := 4
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{
			PartitionCount: &pc,
			HybridConfig:   &types.HybridConfig{RewindSeconds: 3600, OffsetLagThreshold: 100},
		})
		require.NoError(t, err)

		// The store has no versions yet; hybrid alone pins the count.
		bigger := 16
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{PartitionCount: &bigger})
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.Conflict))

		store, _, getErr := e.metadata.GetStore(testClusterA, "widgets")
		require.NoError(t, getErr)
		assert.Equal(t, 4, store.PartitionCount)

		// Restating the pinned value is not a change and passes.
		same := 4
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{PartitionCount: &same})
		require.NoError(t, err)
	})

	t.Run("rejects hybrid combined with incremental push", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)
		incremental := true
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{IncrementalPushEnabled: &incremental})
		require.NoError(t, err)

		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{
			HybridConfig: &types.HybridConfig{RewindSeconds: 3600, OffsetLagThreshold: 100},
		})
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.Conflict))
	})

	t.Run("rejects disabling hybrid ingestion", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)
		pc := 4
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{
			PartitionCount: &pc,
			HybridConfig:   &types.HybridConfig{RewindSeconds: 3600, OffsetLagThreshold: 100},
		})
		require.NoError(t, err)

		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{DisableHybrid: true})
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.Conflict))

		store, _, getErr := e.metadata.GetStore(testClusterA, "widgets")
		require.NoError(t, getErr)
		assert.True(t, store.IsHybrid())
	})

	t.Run("creates the real-time topic when hybrid is enabled", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)

		pc := 4
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{
			PartitionCount: &pc,
			HybridConfig:   &types.HybridConfig{RewindSeconds: 3600, OffsetLagThreshold: 100},
		})
		require.NoError(t, err)

		exists, err := e.deps.Topics.ContainsTopic(ctx, "widgets_rt")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("real-time topic ensurance refuses unsuitable stores", func(t *testing.T) {
		e := newTestEngine(t)
		store, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)

		err = e.RealTimeTopicEnsurance(ctx, testClusterA, store)
		require.Error(t, err, "non-hybrid store")
		assert.True(t, verrors.Is(err, verrors.Conflict))

		store.HybridConfig = &types.HybridConfig{RewindSeconds: 3600, OffsetLagThreshold: 100}
		err = e.RealTimeTopicEnsurance(ctx, testClusterA, store)
		require.Error(t, err, "partition count still unset")
		assert.True(t, verrors.Is(err, verrors.Conflict))
	})

	t.Run("restores the pre-image when a later field in the same call fails", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
		require.NoError(t, err)

		owner := "team-b"
		badQuota := int64(-5)
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{Owner: &owner, StorageQuotaBytes: &badQuota})
		require.Error(t, err)

		store, _, getErr := e.metadata.GetStore(testClusterA, "widgets")
		require.NoError(t, getErr)
		assert.Equal(t, "team-a", store.Owner)
	})
}
