/*
Package storage provides BoltDB-backed persistence for Venice's cluster
metadata: stores, discovery configuration, the version graveyard, and
schema history.

The storage package implements the MetadataStore interface using BoltDB as
the underlying database, providing ACID transactions plus compare-and-set
semantics on top of BoltDB's plain key/value model. All data is serialized
as JSON inside a version-stamped envelope and stored in separate buckets
for efficient querying and isolation.

# Architecture

The controller uses BoltDB (bbolt) for embedded, transactional storage with
zero external dependencies, layering its own CAS contract above it:

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          BoltMetadataStore                   │          │
	│  │  - File: <dataDir>/venice-metadata.db        │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure                │          │
	│  │  ┌────────────────────────────────────┐     │          │
	│  │  │ stores          ("{cluster}\0{name}")│     │          │
	│  │  │ store_configs   (Store name)         │     │          │
	│  │  │ graveyard       (Store name)         │     │          │
	│  │  │ key_schemas     (Store name)         │     │          │
	│  │  │ value_schemas   ("{name}\0{id:010d}")│     │          │
	│  │  │ execution_ids   (Cluster name)       │     │          │
	│  │  └────────────────────────────────────┘     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │        Envelope + CAS                        │          │
	│  │  - {value: json, version: int64}            │          │
	│  │  - UpdateStore compares version before commit│         │
	│  │  - Mismatch -> verrors.Conflict              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │        Transaction Management                │          │
	│  │  - Read: db.View() - Concurrent reads       │          │
	│  │  - Write: db.Update() - Serialized writes   │          │
	│  │  - Rollback: Automatic on error             │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

BoltMetadataStore:
  - Implements MetadataStore using BoltDB
  - Single database file per controller process
  - Automatic bucket creation on initialization
  - Thread-safe via BoltDB's transaction model

InMemoryMetadataStore:
  - Same CAS contract, backed by maps + sync.RWMutex
  - Used by pkg/lifecycle unit tests, no disk I/O

Buckets:
  - stores: one entry per (cluster, store name)
  - store_configs: discovery record per store name
  - graveyard: largest-used-version bookkeeping per store name
  - key_schemas: one entry per store name
  - value_schemas: ordered entries per store name, keyed by zero-padded ID
  - execution_ids: monotonic per-cluster counter

Transaction Model:
  - Read transactions: db.View() - Concurrent, consistent snapshots
  - Write transactions: db.Update() - Serialized, atomic commits
  - Isolation: Snapshot isolation (MVCC)
  - Durability: fsync on commit ensures crash recovery

# Compare-And-Set

UpdateStore is the only mutation path for an existing Store. Callers read a
Store and its CAS version via GetStore, apply local logic, then call
UpdateStore with that version:

	store, version, err := ms.GetStore(cluster, name)
	...
	updated, newVersion, err := ms.UpdateStore(cluster, name, version, func(s *types.Store) (*types.Store, error) {
		s.EnableWrites = true
		return s, nil
	})
	if verrors.Is(err, verrors.Conflict) {
		// another writer won the race; re-read and retry
	}

A version mismatch never partially applies the mutation — the whole
transaction aborts and the caller decides whether to retry.

# Usage

Opening a metadata store:

	ms, err := storage.NewBoltMetadataStore("/var/lib/venice-controller")
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("opening metadata store")
	}
	defer ms.Close()

Creating a store:

	store := &types.Store{
		Name:           "my-store",
		PartitionCount: 12,
		CurrentVersion: types.NonExistingVersion,
	}
	err := ms.AddStore("cluster-1", store)

Registering schemas:

	_, err := ms.AddKeySchema("my-store", `"string"`)
	entry, err := ms.AddValueSchema("my-store", `{"type":"record","fields":[...]}`)

Discovery:

	err := ms.PutStoreConfig(&types.StoreConfig{StoreName: "my-store", Cluster: "cluster-1"})
	cfg, err := ms.GetStoreConfig("my-store")

Graveyard:

	largest, err := ms.GetLargestUsedVersionFromGraveyard("my-store")
	err = ms.PutGraveyard(&types.GraveyardEntry{StoreName: "my-store", LargestUsedVersionNumber: 7})

# Integration Points

This package integrates with:

  - pkg/lifecycle: every lifecycle operation reads/writes through MetadataStore
  - pkg/monitor: scans ListStoreConfigs for in-flight migrations
  - pkg/types: all entity definitions

# Design Patterns

Envelope Pattern:
  - Every persisted value is wrapped {value, version}
  - Enables optimistic concurrency without a separate lock table

Idempotent Registration:
  - AddValueSchema returns the existing entry when the new schema is
    textually identical, rather than erroring
  - AddKeySchema returns the already registered key schema on any later
    call, whatever schema text that call passes

Error Wrapping:
  - Every error crosses the boundary as a *verrors.Error with a Kind
  - NotFound / AlreadyExists / Conflict / MetadataUnavailable

Filter Pattern:
  - ListStores/ListValueSchemas scan with a key prefix, deserialize in
    memory; acceptable at the scale this package is used at

# Performance Characteristics

Read Operations:
  - Get by key: O(log n) via B+tree, typically < 1ms
  - List with prefix scan: O(n) over matching keys

Write Operations:
  - Insert/Update: O(log n) for key, ~1-5ms with fsync
  - UpdateStore: one extra read + compare before the write, same order

Database File Size:
  - Empty: 32KB (header + initial pages)
  - Linear growth with store count, version count, and schema history

# Troubleshooting

Database Locked:
  - Symptom: NewBoltMetadataStore does not return
  - Cause: another process holds the exclusive file lock; bolt.Open is
    called without a timeout, so it waits for the lock
  - Solution: ensure only one controller process opens the file

Frequent Conflict Errors:
  - Symptom: UpdateStore returns verrors.Conflict repeatedly
  - Cause: two lifecycle operations racing on the same store
  - Check: per-store lock acquisition order in pkg/lifecycle
  - Solution: re-read and retry with the fresh CAS version

# Data Integrity

Transaction Guarantees:
  - Atomicity: all-or-nothing commits
  - Consistency: CAS version check gates every UpdateStore commit
  - Isolation: snapshot reads, serialized writes
  - Durability: fsync ensures crash recovery

Backup and Restore:
  - Database is a single file (easy to copy)
  - Backup: copy file while closed, or snapshot via db.View()

# Security

File Permissions:
  - Database file: 0600 (owner read/write only)
  - Prevents unprivileged access to cluster metadata

# See Also

  - pkg/lifecycle for the mutators built on top of this package
  - pkg/types for all entity definitions
  - BoltDB documentation: https://github.com/etcd-io/bbolt
*/
package storage
