package lifecycle

import (
	"github.com/cuemby/venice/pkg/controllerclient"
	"github.com/cuemby/venice/pkg/coordinator"
	"github.com/cuemby/venice/pkg/events"
	"github.com/cuemby/venice/pkg/log"
	"github.com/cuemby/venice/pkg/mastership"
	"github.com/cuemby/venice/pkg/storage"
	"github.com/cuemby/venice/pkg/topics"
	"github.com/cuemby/venice/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Dependencies wires the Store Lifecycle Engine to the leaf components it
// mutates through. The engine touches cluster state only via these
// capabilities; it holds no backend client of its own.
type Dependencies struct {
	Metadata    storage.MetadataStore
	Coordinator coordinator.Coordinator
	Topics      topics.Manager
	Mastership  *mastership.Controller

	// Events, when non-nil, receives a lifecycle event after each
	// successful store creation or deletion, version creation or deletion,
	// and migration start; UpdateStore publishes none. Delivery is best-effort and
	// never blocks or fails the mutation itself.
	Events *events.Broker

	// Dial resolves a controllerclient.Client for a peer controller
	// process known to be authoritative for cluster. Only migrateStore
	// uses it, to pull a store's snapshot from its source cluster when
	// that cluster isn't managed by this process. A nil Dial is only
	// safe if every migrateStore call targets a cluster this same
	// process also manages.
	Dial func(cluster string) (controllerclient.Client, error)
}

// Settings holds the controller-level tunables: cluster defaults applied
// when a store or version doesn't override them.
type Settings struct {
	OfflinePushWaitMs                  int64
	MinActiveReplicas                  int
	DelayedRebalanceMs                 int64
	MinNumberOfStoreVersionsToPreserve int
	DeprecatedTopicRetentionMs         int64
	DeprecatedTopicMaxRetentionMs      int64
	DefaultReplicationFactor           int
}

// DefaultSettings mirrors pkg/config.Defaults() for callers constructing
// an Engine outside of cmd/venice-controller (e.g. tests).
func DefaultSettings() Settings {
	return Settings{
		OfflinePushWaitMs:                  5 * 60 * 1000,
		MinActiveReplicas:                  1,
		DelayedRebalanceMs:                 5 * 60 * 1000,
		MinNumberOfStoreVersionsToPreserve: 2,
		DeprecatedTopicRetentionMs:         topics.DeprecatedTopicRetentionMs,
		DeprecatedTopicMaxRetentionMs:      topics.DeprecatedTopicMaxRetentionMs,
		DefaultReplicationFactor:           3,
	}
}

// Engine is the single mutator of Venice cluster metadata. Its mutating
// methods first check mastership for the target cluster, then serialize
// on the per-cluster metadata lock (and, for store-row writes, the finer
// per-store lock) before writing the Metadata Store or calling the
// Resource Coordinator or Topic Manager. GetStoreSnapshot and
// CheckResourceCleanupBeforeStoreCreation are reads that do neither.
type Engine struct {
	deps     Dependencies
	settings Settings
	clusters *clusterLockRegistry
	stores   *storeLockRegistry
	logger   zerolog.Logger
}

// New constructs an Engine. deps.Mastership must already be started for
// any cluster the caller intends to operate on.
func New(deps Dependencies, settings Settings) *Engine {
	return &Engine{
		deps:     deps,
		settings: settings,
		clusters: newClusterLockRegistry(),
		stores:   newStoreLockRegistry(),
		logger:   log.WithComponent("lifecycle"),
	}
}

func (e *Engine) requireLeader(cluster string) error {
	return e.deps.Mastership.RequireLeader(cluster)
}

// ListStores returns a snapshot of every store in cluster. As a read-only
// operation it takes the metadata lock in read mode, so listings never
// interleave with a mutation but do run concurrently with each other.
func (e *Engine) ListStores(cluster string) ([]*types.Store, error) {
	if err := e.requireLeader(cluster); err != nil {
		return nil, err
	}
	clusterLock := e.clusters.get(cluster)
	clusterLock.RLock()
	defer clusterLock.RUnlock()
	return e.deps.Metadata.ListStores(cluster)
}

func (e *Engine) publish(eventType events.EventType, message string, metadata map[string]string) {
	if e.deps.Events == nil {
		return
	}
	e.deps.Events.Publish(&events.Event{
		ID:       uuid.NewString(),
		Type:     eventType,
		Message:  message,
		Metadata: metadata,
	})
}
