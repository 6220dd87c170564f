package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/venice/pkg/events"
	"github.com/cuemby/venice/pkg/storage"
	"github.com/cuemby/venice/pkg/types"
)

// fixedLeader answers IsLeader with a constant per-cluster map, so loop
// behavior can be exercised without a raft group.
type fixedLeader map[string]bool

func (f fixedLeader) IsLeader(cluster string) bool { return f[cluster] }

func seedMigration(t *testing.T, metadata storage.MetadataStore, destOnline int) {
	t.Helper()
	require.NoError(t, metadata.AddStore("cluster-a", &types.Store{
		Name:           "m",
		CurrentVersion: 1,
		Versions:       []*types.Version{{StoreName: "m", Number: 1, Status: types.VersionStatusOnline}},
	}))
	dest := &types.Store{Name: "m", CurrentVersion: types.NonExistingVersion, Migrating: true}
	if destOnline > 0 {
		dest.CurrentVersion = destOnline
		dest.Versions = []*types.Version{{StoreName: "m", Number: destOnline, Status: types.VersionStatusOnline}}
	}
	require.NoError(t, metadata.AddStore("cluster-b", dest))
	require.NoError(t, metadata.PutStoreConfig(&types.StoreConfig{
		StoreName:     "m",
		Cluster:       "cluster-a",
		MigrationSrc:  "cluster-a",
		MigrationDest: "cluster-b",
	}))
}

func TestMigrationMonitorCutsOverWhenDestinationCatchesUp(t *testing.T) {
	metadata := storage.NewInMemoryMetadataStore()
	seedMigration(t, metadata, 1)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	m := NewMigrationMonitor(metadata, fixedLeader{"cluster-b": true}, broker, time.Second)
	m.tick()

	cfg, err := metadata.GetStoreConfig("m")
	require.NoError(t, err)
	assert.Equal(t, "cluster-b", cfg.Cluster, "discovery should point at the destination")
	assert.Equal(t, "cluster-a", cfg.MigrationSrc, "migration markers remain until the source is retired")

	select {
	case ev := <-sub.C:
		assert.Equal(t, events.EventMigrationFinished, ev.Type)
		assert.Equal(t, "m", ev.Metadata["store"])
	case <-time.After(time.Second):
		t.Fatal("expected a migration.finished event")
	}
}

func TestMigrationMonitorWaitsForDestination(t *testing.T) {
	t.Run("destination has no online version yet", func(t *testing.T) {
		metadata := storage.NewInMemoryMetadataStore()
		seedMigration(t, metadata, 0)

		m := NewMigrationMonitor(metadata, fixedLeader{"cluster-b": true}, nil, time.Second)
		m.tick()

		cfg, err := metadata.GetStoreConfig("m")
		require.NoError(t, err)
		assert.Equal(t, "cluster-a", cfg.Cluster)
	})

	t.Run("not leader for the destination", func(t *testing.T) {
		metadata := storage.NewInMemoryMetadataStore()
		seedMigration(t, metadata, 1)

		m := NewMigrationMonitor(metadata, fixedLeader{}, nil, time.Second)
		m.tick()

		cfg, err := metadata.GetStoreConfig("m")
		require.NoError(t, err)
		assert.Equal(t, "cluster-a", cfg.Cluster)
	})
}

func TestMigrationMonitorTickSurvivesErrors(t *testing.T) {
	metadata := storage.NewInMemoryMetadataStore()
	// A migrating config with no store rows at all: converge() hits
	// NotFound on the destination side and must treat it as nothing-to-do.
	require.NoError(t, metadata.PutStoreConfig(&types.StoreConfig{
		StoreName:     "ghost",
		Cluster:       "cluster-a",
		MigrationSrc:  "cluster-a",
		MigrationDest: "cluster-b",
	}))
	seedMigration(t, metadata, 1)

	m := NewMigrationMonitor(metadata, fixedLeader{"cluster-b": true}, nil, time.Second)
	m.tick()

	cfg, err := metadata.GetStoreConfig("m")
	require.NoError(t, err)
	assert.Equal(t, "cluster-b", cfg.Cluster, "a broken migration must not stall the healthy one")
}

func TestMigrationMonitorStartStop(t *testing.T) {
	metadata := storage.NewInMemoryMetadataStore()
	m := NewMigrationMonitor(metadata, fixedLeader{}, nil, 10*time.Millisecond)
	m.Start()
	time.Sleep(50 * time.Millisecond)
	m.Stop() // blocks until the loop drained its tick
}

func TestBackupVersionCleanup(t *testing.T) {
	metadata := storage.NewInMemoryMetadataStore()
	require.NoError(t, metadata.AddStore("cluster-a", &types.Store{Name: "widgets"}))
	require.NoError(t, metadata.AddStore("cluster-a", &types.Store{Name: "gadgets"}))

	var retired []string
	retire := func(ctx context.Context, cluster, storeName string) error {
		retired = append(retired, cluster+"/"+storeName)
		return nil
	}

	c := NewBackupVersionCleanup("cluster-a", metadata, fixedLeader{"cluster-a": true}, retire, time.Minute)
	c.tick()
	assert.ElementsMatch(t, []string{"cluster-a/widgets", "cluster-a/gadgets"}, retired)

	t.Run("skips the sweep on a non-leader", func(t *testing.T) {
		retired = nil
		c := NewBackupVersionCleanup("cluster-a", metadata, fixedLeader{}, retire, time.Minute)
		c.tick()
		assert.Empty(t, retired)
	})
}
