package lifecycle

import (
	"context"
	"testing"

	"github.com/cuemby/venice/pkg/topics"
	"github.com/cuemby/venice/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteOneStoreVersion(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
	require.NoError(t, err)
	_, err = e.AddVersion(ctx, testClusterA, "widgets", "job-1", UnsetVersionNumber, 3, 1, true, false)
	require.NoError(t, err)
	require.True(t, e.coord.HasResource(testClusterA, "widgets_v1"))

	require.NoError(t, e.DeleteOneStoreVersion(ctx, testClusterA, "widgets", 1))

	store, _, err := e.metadata.GetStore(testClusterA, "widgets")
	require.NoError(t, err)
	assert.Nil(t, store.VersionByNumber(1))
	assert.False(t, e.coord.HasResource(testClusterA, "widgets_v1"))
	assert.Contains(t, e.coord.Messages(), testClusterA+"/widgets_v1:"+controlMessageKill)

	retention, err := e.deps.Topics.GetRetention(ctx, "widgets_v1")
	require.NoError(t, err)
	assert.Equal(t, e.settings.DeprecatedTopicRetentionMs, retention)

	// Deleting an already-deleted version is a no-op, not an error.
	require.NoError(t, e.DeleteOneStoreVersion(ctx, testClusterA, "widgets", 1))
}

func TestRetrieveVersionsToDelete(t *testing.T) {
	store := &types.Store{
		Name:           "widgets",
		CurrentVersion: 5,
		Versions: []*types.Version{
			{Number: 1, Status: types.VersionStatusOnline},
			{Number: 2, Status: types.VersionStatusOnline},
			{Number: 3, Status: types.VersionStatusOnline},
			{Number: 4, Status: types.VersionStatusOnline},
			{Number: 5, Status: types.VersionStatusOnline},  // current, never a candidate
			{Number: 6, Status: types.VersionStatusStarted}, // above current, in-flight, never a candidate
		},
	}

	toDelete := RetrieveVersionsToDelete(store, 2)
	assert.Equal(t, []int{1, 2}, toDelete)
}

func TestRetrieveVersionsToDelete_NothingBelowRetentionFloor(t *testing.T) {
	store := &types.Store{
		Name:           "widgets",
		CurrentVersion: 3,
		Versions: []*types.Version{
			{Number: 1, Status: types.VersionStatusOnline},
			{Number: 2, Status: types.VersionStatusOnline},
			{Number: 3, Status: types.VersionStatusOnline},
		},
	}

	assert.Empty(t, RetrieveVersionsToDelete(store, 2))
}

func TestRetireOldStoreVersions(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	e.settings.MinNumberOfStoreVersionsToPreserve = 1

	_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		v, err := e.AddVersion(ctx, testClusterA, "widgets", "", UnsetVersionNumber, 1, 1, false, false)
		require.NoError(t, err)
		// Simulate the push-completion path marking the version ONLINE
		// before it is promoted to current; that transition belongs to
		// the push-status write-back side-channel, not this package.
		_, err = e.mutateStore(testClusterA, "widgets", func(s *types.Store) (*types.Store, error) {
			s.VersionByNumber(v.Number).Status = types.VersionStatusOnline
			return s, nil
		})
		require.NoError(t, err)
		_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{CurrentVersion: &v.Number})
		require.NoError(t, err)
	}

	// A version topic left behind by an earlier partial deletion: the
	// retire pass must sweep it even though no Version row references it.
	require.NoError(t, e.deps.Topics.CreateTopic(ctx, "widgets_v9", topics.TopicConfig{
		PartitionCount: 1, ReplicationFactor: 1, RetentionMs: 90 * 24 * 60 * 60 * 1000,
	}))

	require.NoError(t, e.RetireOldStoreVersions(ctx, testClusterA, "widgets"))

	orphanRetention, err := e.deps.Topics.GetRetention(ctx, "widgets_v9")
	require.NoError(t, err)
	assert.Equal(t, e.settings.DeprecatedTopicRetentionMs, orphanRetention)

	store, _, err := e.metadata.GetStore(testClusterA, "widgets")
	require.NoError(t, err)
	// Current (3) always survives, and with MinNumberOfStoreVersionsToPreserve
	// set to 1 the single most recent retired candidate (2) also survives;
	// only the oldest (1) is actually retired.
	require.Len(t, store.Versions, 2)
	assert.Nil(t, store.VersionByNumber(1))
	assert.NotNil(t, store.VersionByNumber(2))
	assert.NotNil(t, store.VersionByNumber(3))
}
