package storage

import (
	"github.com/cuemby/venice/pkg/types"
)

// MetadataStore defines the interface for Venice's persisted cluster
// metadata: stores, discovery configuration, the version graveyard, and
// schema history. Implementations must honor compare-and-set semantics on
// UpdateStore so concurrent lifecycle operations never silently clobber
// each other's writes.
type MetadataStore interface {
	// GetStore returns a store along with its current CAS version token.
	GetStore(cluster, name string) (*types.Store, int64, error)
	ListStores(cluster string) ([]*types.Store, error)

	// AddStore creates a brand new store at CAS version 1. Returns
	// verrors.AlreadyExists if the name is already in use in this cluster.
	AddStore(cluster string, store *types.Store) error

	// UpdateStore applies mutate to the current value of the store and
	// commits only if expectedVersion still matches the stored version.
	// Returns verrors.Conflict (CAS mismatch) or verrors.NotFound.
	// Returns the new value and its new CAS version on success.
	UpdateStore(cluster, name string, expectedVersion int64, mutate func(*types.Store) (*types.Store, error)) (*types.Store, int64, error)

	DeleteStore(cluster, name string) error

	GetStoreConfig(storeName string) (*types.StoreConfig, error)
	PutStoreConfig(cfg *types.StoreConfig) error
	DeleteStoreConfig(storeName string) error
	ListStoreConfigs() ([]*types.StoreConfig, error)

	GetLargestUsedVersionFromGraveyard(storeName string) (int, error)
	PutGraveyard(entry *types.GraveyardEntry) error

	// AddKeySchema registers the (singular) key schema for a store.
	// Once one is registered, later calls return it unchanged, whatever
	// schema they pass.
	AddKeySchema(storeName, schema string) (*types.KeySchemaEntry, error)
	GetKeySchema(storeName string) (*types.KeySchemaEntry, error)

	// AddValueSchema registers a new value schema version, enforcing the
	// compatibility rule described in pkg/lifecycle. An identical schema
	// to an existing entry returns that entry's ID idempotently.
	AddValueSchema(storeName, schema string) (*types.ValueSchemaEntry, error)
	ListValueSchemas(storeName string) ([]*types.ValueSchemaEntry, error)

	// NextExecutionID hands out a monotonically increasing, per-cluster
	// integer, starting at 1.
	NextExecutionID(cluster string) (int64, error)

	Close() error
}
