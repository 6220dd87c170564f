/*
Package types defines the core data structures used throughout the Venice
cluster controller.

This package contains the fundamental types that represent Venice's domain
model: stores, versions, discovery configuration, schema history, and the
graveyard that preserves version numbering across delete/recreate cycles.
These types are used by the metadata store, the lifecycle engine, and the
background monitors for state management and persistence.

# Architecture

The types package is the foundation of the controller's data model. It
defines:

  - Store topology (versions, hybrid configuration, quotas)
  - Version lifecycle state
  - Discovery records (which cluster currently owns a store)
  - Schema history (key schema, value schema evolution)
  - Graveyard bookkeeping for version-number monotonicity
  - Cross-cluster snapshots used during migration

All types are designed to be:
  - Serializable (JSON, for BoltDB persistence)
  - Self-documenting (clear field names and comments)
  - Validated by the owning package (pkg/storage enforces CAS, pkg/lifecycle
    enforces transition rules)

# Core Types

The main types in this package are:

Store:
  - Store: top-level unit of data ownership
  - HybridConfig: real-time ingestion configuration
  - CompressionStrategy: no_op, gzip, zstd, zstd_with_dict

Version:
  - Version: one push generation of a store's data
  - VersionStatus: NotCreated, Started, Pushed, Online, Error

Discovery:
  - StoreConfig: cluster ownership and migration bookkeeping
  - GraveyardEntry: largest version number ever used by a store name

Schema:
  - KeySchemaEntry: a store's single key schema
  - ValueSchemaEntry: one version of a store's value schema

Cross-cluster:
  - StoreSnapshot: read-only view of a foreign cluster's store state

# Usage

Creating a Store:

	store := &types.Store{
		Name:           "my-store",
		Owner:          "team-foo",
		CreatedAt:      time.Now(),
		PartitionCount: 12,
		CurrentVersion: types.NonExistingVersion,
		EnableWrites:   true,
		CompressionStrategy: types.CompressionZstd,
	}

Adding a Version:

	version := &types.Version{
		StoreName:         store.Name,
		Number:            store.LargestUsedVersionNumber + 1,
		Status:            types.VersionStatusStarted,
		PartitionCount:    store.PartitionCount,
		ReplicationFactor: 3,
		CreatedAt:         time.Now(),
	}
	store.Versions = append(store.Versions, version)

Deriving resource and topic names:

	resourceName := version.ResourceName()     // "my-store_v5"
	versionTopic := version.VersionTopicName()  // "my-store_v5"
	rtTopic := types.RealTimeTopic(store.Name)  // "my-store_rt"

Tracking discovery:

	cfg := &types.StoreConfig{
		StoreName: store.Name,
		Cluster:   "cluster-1",
	}

# State Machine

Versions follow a strict, mostly-linear state machine:

	NotCreated → Started → Pushed → Online
	               ↓
	             Error

Valid state transitions:
  - NotCreated → Started (addVersion creates the version)
  - Started → Pushed (push job completes successfully)
  - Pushed → Online (version promoted to current)
  - Started → Error (push job fails)
  - Online and Error are terminal for the Version object; further
    deletion removes it from the Store rather than transitioning it again.

At most one Started version with Number > Store.CurrentVersion may exist
for a store at any time.

# Design Patterns

Enumeration Pattern:

	All enums use typed string constants for safety and clarity:
	  type VersionStatus string
	  const (
	      VersionStatusStarted VersionStatus = "started"
	      VersionStatusOnline  VersionStatus = "online"
	  )

Sentinel Pattern:

	types.NonExistingVersion (0) marks a Store with no online version.
	A nil *HybridConfig marks a store that is not hybrid.

Optional Fields:

	Optional configurations use pointers:
	  - *HybridConfig: nil = not a hybrid store

# Integration Points

This package integrates with:

  - pkg/storage: Persists all types to BoltDB with CAS semantics
  - pkg/lifecycle: Enforces version and store state transitions
  - pkg/coordinator: Consumes Version.ResourceName() for partition maps
  - pkg/topics: Consumes Version.VersionTopicName()/RealTimeTopic()
  - pkg/monitor: Reads StoreConfig.MigrationSrc/MigrationDest
  - pkg/controllerclient: Produces/consumes StoreSnapshot

# Validation

Key validation rules (enforced by pkg/lifecycle, not this package):

Stores:
  - Name must be unique within a cluster
  - PartitionCount is immutable once any version exists
  - HybridConfig != nil forbids IncrementalPushEnabled and RouterCacheEnabled
  - Deletion refused while EnableReads or EnableWrites is true

Versions:
  - At most one Started version above CurrentVersion at a time
  - LargestUsedVersionNumber is monotonic non-decreasing, including across
    delete/recreate cycles (persisted through the graveyard)

StoreConfig:
  - Exactly one row per existing store name

# Thread Safety

Types in this package carry no internal synchronization. Mutation must be
synchronized by the caller:
  - pkg/storage guards persisted state with its CAS contract
  - pkg/lifecycle holds per-cluster and per-store locks around mutation

# See Also

  - pkg/storage for persistence layer
  - pkg/lifecycle for state transition rules
  - pkg/verrors for the error taxonomy raised when invariants are violated
*/
package types
