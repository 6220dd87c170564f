/*
Package lifecycle implements the Store Lifecycle Engine: the single
mutator of Venice cluster metadata, and the component that sequences every
store- and version-affecting operation through mastership, the two-tier
locking model, and the Metadata Store / Resource Coordinator / Topic
Manager leaf adapters.

# Architecture

Mutating Engine methods check mastership for the target cluster, acquire
the cluster's metadata lock (ListStores takes it in read mode), take the
finer per-store lock around writes to one store's row, and write the
Metadata Store under compare-and-set. The order of metadata writes and
Resource Coordinator / Topic Manager calls depends on the operation: the
deletion paths drop the coordinator resource and deprecate topics before
they remove the version or store row, so a failure part way leaves a row
that a later call finds and converges. GetStoreSnapshot and
CheckResourceCleanupBeforeStoreCreation are reads that neither check
mastership nor take a lock.

	┌─────────────────────── STORE LIFECYCLE ENGINE ────────────────────────┐
	│                                                                         │
	│   requireLeader(cluster) ──── mastership.Controller.RequireLeader     │
	│            │                                                           │
	│            ▼                                                          │
	│   clusterLockRegistry.get(cluster).Lock()   (metadata operation lock) │
	│            │                                                           │
	│            ▼                                                          │
	│   storeLockRegistry.get(cluster, name).Lock()  (store repository lock)│
	│            │                                                           │
	│            ▼                                                          │
	│   mutateStore: GetStore -> mutate -> UpdateStore(CAS)                 │
	│            │                                                           │
	│            ▼                                                          │
	│   Coordinator.{AddResource,DropResource,SendMessageToParticipants,…}  │
	│   Topics.{CreateTopic,UpdateRetention,…}                               │
	│                                                                         │
	└─────────────────────────────────────────────────────────────────────┘

# Operations

createStore and checkResourceCleanupBeforeStoreCreation (create_store.go)
provision a new store, tolerating and cleaning up a legacy row left by an
earlier half-failed deletion.

addVersion, incrementVersionIdempotent, getStartedVersion, and
handleVersionCreationFailure (version.go) start and track pushes.
incrementVersionIdempotent is the only entry point that guarantees
at-most-one Version per push job ID.

deleteOneStoreVersion and retireOldStoreVersions (delete_version.go) retire
individual versions and converge a store onto its retention policy;
retrieveVersionsToDelete is exposed as a pure function so it can be tested
independently of any adapter.

deleteStore (delete_store.go) tears down every version, deprecates the
store's topics, and moves it into the graveyard, preserving its largest
used version number across a future recreate.

updateStore and realTimeTopicEnsurance (update_store.go) apply the
multi-field store update, restoring the store's pre-image on the first
rejected field.

migrateStore and getStoreSnapshot (migrate.go) drive the parent/child
cross-cluster migration handshake; the background convergence and
discovery cutover live in pkg/monitor, which polls the state this package
writes rather than being called by it.

# Locking

Two lock registries back every operation: clusterLockRegistry hands out
one *sync.RWMutex per cluster (the "metadata operation lock" of the
design), and storeLockRegistry hands out one *sync.Mutex per
(cluster, store) pair (the "store repository lock"). Both lazily create
and cache their entries, so a cluster or store seen for the first time
never blocks on a registry-wide lock beyond the map insert itself.

Store values returned by the Metadata Store are never mutated in place by
this package if they might still be aliased by a concurrent reader,
see helpers.go's withoutVersion/withAppendedVersion/cloneStore.
*/
package lifecycle
