package lifecycle

import (
	"context"
	"testing"

	"github.com/cuemby/venice/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateStore(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
	require.NoError(t, err)
	_, err = e.AddVersion(ctx, testClusterA, "widgets", "job-1", UnsetVersionNumber, 4, 1, false, false)
	require.NoError(t, err)
	_, err = e.mutateStore(testClusterA, "widgets", func(s *types.Store) (*types.Store, error) {
		s.VersionByNumber(1).Status = types.VersionStatusOnline
		return s, nil
	})
	require.NoError(t, err)
	_, err = e.UpdateStore(ctx, testClusterA, "widgets", UpdateStoreOptions{CurrentVersion: intPtr(1)})
	require.NoError(t, err)

	require.NoError(t, e.MigrateStore(ctx, testClusterA, testClusterB, "widgets"))

	destStore, _, err := e.metadata.GetStore(testClusterB, "widgets")
	require.NoError(t, err)
	assert.True(t, destStore.Migrating)
	assert.Equal(t, types.NonExistingVersion, destStore.CurrentVersion)
	assert.Equal(t, 0, destStore.LargestUsedVersionNumber, "destination restarts its push cycle from v1")
	assert.Equal(t, "team-a", destStore.Owner)

	srcStore, _, err := e.metadata.GetStore(testClusterA, "widgets")
	require.NoError(t, err)
	assert.True(t, srcStore.Migrating)

	cfg, err := e.metadata.GetStoreConfig("widgets")
	require.NoError(t, err)
	assert.Equal(t, testClusterA, cfg.Cluster)
	assert.Equal(t, testClusterA, cfg.MigrationSrc)
	assert.Equal(t, testClusterB, cfg.MigrationDest)

	keySchema, err := e.metadata.GetKeySchema("widgets")
	require.NoError(t, err)
	assert.Equal(t, "\"string\"", keySchema.Schema)
}

func TestGetStoreSnapshot(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	_, err := e.CreateStore(ctx, testClusterA, "widgets", "team-a", "\"string\"", "\"string\"")
	require.NoError(t, err)

	snapshot, err := e.GetStoreSnapshot(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, "widgets", snapshot.Store.Name)
	assert.Equal(t, testClusterA, snapshot.RetrievedFrom)
	require.NotNil(t, snapshot.KeySchema)
}

func intPtr(v int) *int { return &v }
