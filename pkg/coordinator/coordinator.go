// Package coordinator adapts the Venice cluster controller to an external
// resource coordinator: the component owning per-store-version Resources,
// their partition maps, and replica state machines.
package coordinator

import (
	"context"
	"time"
)

// ReplicaState is the state of one replica of one partition of a Resource,
// mirroring the coordinator's OnlineOffline state model.
type ReplicaState string

const (
	ReplicaOffline   ReplicaState = "OFFLINE"
	ReplicaBootstrap ReplicaState = "BOOTSTRAP"
	ReplicaOnline    ReplicaState = "ONLINE"
	ReplicaError     ReplicaState = "ERROR"
)

// ClusterConfig configures a managed cluster at ensure-time: topology
// awareness, auto-join of new participants, and delayed rebalancing after
// a participant drops.
type ClusterConfig struct {
	TopologyAware      bool
	AutoJoinAllowed    bool
	DelayedRebalanceMs int64
	MinActiveReplicas  int
}

// ExternalView is the coordinator's live view of a Resource: partition ->
// replica (instance) -> state.
type ExternalView map[string]map[string]ReplicaState

// Coordinator is the contract the Store Lifecycle Engine uses to manage
// per-version Resources on a managed cluster. Every method takes the
// managed cluster name as its first argument because a single controller
// process multiplexes many clusters, each with its own coordinator-side
// cluster namespace.
type Coordinator interface {
	// EnsureCluster idempotently creates the coordinator-side cluster
	// namespace with the given cluster-level configuration.
	EnsureCluster(ctx context.Context, cluster string, cfg ClusterConfig) error

	// AddResource creates a new Resource (one per store version) with the
	// given partition count, replication factor, state model, and
	// rebalancer. Returns verrors.AlreadyExists if the resource exists.
	AddResource(ctx context.Context, cluster, resourceName string, partitionCount, replicationFactor int, stateModelName, rebalancer string, minActiveReplicas int) error

	// DropResource idempotently removes a Resource and its partition map.
	DropResource(ctx context.Context, cluster, resourceName string) error

	// EnablePartition toggles whether a participant serves a partition.
	EnablePartition(ctx context.Context, cluster, participant, resource, partitionName string, enabled bool) error

	// ReadExternalView returns the coordinator's live replica-state view
	// of a Resource.
	ReadExternalView(ctx context.Context, cluster, resource string) (ExternalView, error)

	// LiveInstances returns the set of participant instance IDs currently
	// registered and alive in the cluster.
	LiveInstances(ctx context.Context, cluster string) ([]string, error)

	// WaitForAssignment blocks until at least replicationFactor replicas
	// of every partition of resource reach ReplicaOnline or
	// ReplicaBootstrap, or until timeout elapses.
	WaitForAssignment(ctx context.Context, cluster, resource string, replicationFactor int, timeout time.Duration) error

	// SendMessageToParticipants is a fire-and-forget broadcast (e.g. a
	// kill message) to every participant serving resource, retried up to
	// retries times without blocking on any acknowledgement.
	SendMessageToParticipants(ctx context.Context, cluster, resource, message string, retries int) error

	// HasResourcesWithPrefix reports whether any Resource whose name
	// starts with prefix still exists in cluster. The Store Lifecycle
	// Engine uses this to detect lingering per-version Resources left
	// behind by an incomplete deletion before a store name is reused.
	HasResourcesWithPrefix(ctx context.Context, cluster, prefix string) (bool, error)
}
