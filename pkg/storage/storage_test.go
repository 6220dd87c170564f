package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
)

// each test runs against both implementations: the CAS and schema
// contracts must hold identically for the bbolt store and the in-memory
// fake that stands in for it in lifecycle tests.
func forEachStore(t *testing.T, fn func(t *testing.T, s MetadataStore)) {
	t.Run("bolt", func(t *testing.T) {
		s, err := NewBoltMetadataStore(t.TempDir())
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewInMemoryMetadataStore())
	})
}

func TestStoreCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, s MetadataStore) {
		_, _, err := s.GetStore("cluster-a", "widgets")
		assert.True(t, verrors.Is(err, verrors.NotFound))

		require.NoError(t, s.AddStore("cluster-a", &types.Store{Name: "widgets", Owner: "team-a"}))
		err = s.AddStore("cluster-a", &types.Store{Name: "widgets"})
		assert.True(t, verrors.Is(err, verrors.AlreadyExists))

		store, version, err := s.GetStore("cluster-a", "widgets")
		require.NoError(t, err)
		assert.Equal(t, "team-a", store.Owner)
		assert.Equal(t, int64(1), version)

		stores, err := s.ListStores("cluster-a")
		require.NoError(t, err)
		require.Len(t, stores, 1)

		require.NoError(t, s.DeleteStore("cluster-a", "widgets"))
		_, _, err = s.GetStore("cluster-a", "widgets")
		assert.True(t, verrors.Is(err, verrors.NotFound))
	})
}

func TestUpdateStoreCAS(t *testing.T) {
	forEachStore(t, func(t *testing.T, s MetadataStore) {
		require.NoError(t, s.AddStore("cluster-a", &types.Store{Name: "widgets"}))

		updated, newVersion, err := s.UpdateStore("cluster-a", "widgets", 1, func(st *types.Store) (*types.Store, error) {
			st.Owner = "team-b"
			return st, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "team-b", updated.Owner)
		assert.Equal(t, int64(2), newVersion)

		// A writer holding the stale token loses the race.
		_, _, err = s.UpdateStore("cluster-a", "widgets", 1, func(st *types.Store) (*types.Store, error) {
			st.Owner = "team-c"
			return st, nil
		})
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.Conflict))

		store, _, err := s.GetStore("cluster-a", "widgets")
		require.NoError(t, err)
		assert.Equal(t, "team-b", store.Owner)
	})
}

func TestGraveyardNeverRegresses(t *testing.T) {
	forEachStore(t, func(t *testing.T, s MetadataStore) {
		largest, err := s.GetLargestUsedVersionFromGraveyard("widgets")
		require.NoError(t, err)
		assert.Equal(t, 0, largest, "an unknown store name starts at zero")

		require.NoError(t, s.PutGraveyard(&types.GraveyardEntry{StoreName: "widgets", LargestUsedVersionNumber: 7}))
		require.NoError(t, s.PutGraveyard(&types.GraveyardEntry{StoreName: "widgets", LargestUsedVersionNumber: 3}))

		largest, err = s.GetLargestUsedVersionFromGraveyard("widgets")
		require.NoError(t, err)
		assert.Equal(t, 7, largest, "a lower re-burial must not shrink the recorded number")
	})
}

func TestKeySchema(t *testing.T) {
	forEachStore(t, func(t *testing.T, s MetadataStore) {
		entry, err := s.AddKeySchema("widgets", `"long"`)
		require.NoError(t, err)
		assert.Equal(t, types.KeySchemaID, entry.ID)

		// Re-registering keeps the original.
		again, err := s.AddKeySchema("widgets", `"string"`)
		require.NoError(t, err)
		assert.Equal(t, `"long"`, again.Schema)

		got, err := s.GetKeySchema("widgets")
		require.NoError(t, err)
		assert.Equal(t, `"long"`, got.Schema)
	})
}

func TestAddValueSchema(t *testing.T) {
	forEachStore(t, func(t *testing.T, s MetadataStore) {
		first, err := s.AddValueSchema("widgets", `"string"`)
		require.NoError(t, err)
		assert.Equal(t, 1, first.ID)

		// Identical schema text is idempotent.
		same, err := s.AddValueSchema("widgets", `"string"`)
		require.NoError(t, err)
		assert.Equal(t, 1, same.ID)

		// A primitive narrowing is incompatible.
		_, err = s.AddValueSchema("widgets", `"int"`)
		require.Error(t, err)
		assert.True(t, verrors.Is(err, verrors.Conflict))

		// A record schema widening the primitive gets the next ID.
		record := `{"type":"record","name":"Widget","fields":[{"name":"id","type":"string","default":""}]}`
		second, err := s.AddValueSchema("widgets", record)
		require.NoError(t, err)
		assert.Equal(t, 2, second.ID)

		schemas, err := s.ListValueSchemas("widgets")
		require.NoError(t, err)
		require.Len(t, schemas, 2)
		assert.Equal(t, 1, schemas[0].ID)
		assert.Equal(t, 2, schemas[1].ID)
	})
}

func TestRecordSchemaCompatibility(t *testing.T) {
	base := `{"type":"record","name":"W","fields":[{"name":"id","type":"string"},{"name":"note","type":"string","default":""}]}`

	t.Run("dropping a defaulted field is compatible", func(t *testing.T) {
		next := `{"type":"record","name":"W","fields":[{"name":"id","type":"string"}]}`
		ok, err := isSchemaCompatible(base, next)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("dropping a field without a default is incompatible", func(t *testing.T) {
		next := `{"type":"record","name":"W","fields":[{"name":"note","type":"string","default":""}]}`
		ok, err := isSchemaCompatible(base, next)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("changing a surviving field's type is incompatible", func(t *testing.T) {
		next := `{"type":"record","name":"W","fields":[{"name":"id","type":"int"},{"name":"note","type":"string","default":""}]}`
		ok, err := isSchemaCompatible(base, next)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("adding a field is compatible", func(t *testing.T) {
		next := `{"type":"record","name":"W","fields":[{"name":"id","type":"string"},{"name":"note","type":"string","default":""},{"name":"extra","type":"string","default":""}]}`
		ok, err := isSchemaCompatible(base, next)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestStoreConfig(t *testing.T) {
	forEachStore(t, func(t *testing.T, s MetadataStore) {
		_, err := s.GetStoreConfig("widgets")
		assert.True(t, verrors.Is(err, verrors.NotFound))

		require.NoError(t, s.PutStoreConfig(&types.StoreConfig{StoreName: "widgets", Cluster: "cluster-a"}))
		require.NoError(t, s.PutStoreConfig(&types.StoreConfig{StoreName: "gadgets", Cluster: "cluster-b", MigrationSrc: "cluster-b", MigrationDest: "cluster-c"}))

		cfg, err := s.GetStoreConfig("widgets")
		require.NoError(t, err)
		assert.Equal(t, "cluster-a", cfg.Cluster)

		configs, err := s.ListStoreConfigs()
		require.NoError(t, err)
		require.Len(t, configs, 2)

		require.NoError(t, s.DeleteStoreConfig("widgets"))
		_, err = s.GetStoreConfig("widgets")
		assert.True(t, verrors.Is(err, verrors.NotFound))
	})
}

func TestNextExecutionID(t *testing.T) {
	forEachStore(t, func(t *testing.T, s MetadataStore) {
		first, err := s.NextExecutionID("cluster-a")
		require.NoError(t, err)
		second, err := s.NextExecutionID("cluster-a")
		require.NoError(t, err)
		other, err := s.NextExecutionID("cluster-b")
		require.NoError(t, err)

		assert.Equal(t, int64(1), first)
		assert.Equal(t, int64(2), second)
		assert.Equal(t, int64(1), other, "counters are per cluster")
	})
}
