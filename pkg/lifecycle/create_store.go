package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/venice/pkg/events"
	"github.com/cuemby/venice/pkg/metrics"
	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
)

// CreateStore provisions a brand new store. If a legacy
// store lingers in the repo under a StoreConfig flagged deleting (or,
// tolerated here, with no config row at all), it is deleted in place
// before the fresh store is inserted so a caller retrying a half-failed
// creation converges rather than erroring forever.
func (e *Engine) CreateStore(ctx context.Context, cluster, name, owner, keySchema, valueSchema string) (*types.Store, error) {
	const op = "lifecycle.createStore"
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.LifecycleOperationDuration, "createStore")

	if err := e.requireLeader(cluster); err != nil {
		return nil, err
	}
	if isReservedStoreName(name) {
		return nil, verrors.Tagged(verrors.Conflict, op, "ReservedName", fmt.Errorf("store name %q is reserved", name))
	}

	clusterLock := e.clusters.get(cluster)
	clusterLock.Lock()
	defer clusterLock.Unlock()

	cfg, cfgErr := e.deps.Metadata.GetStoreConfig(name)
	hasConfig := cfgErr == nil
	if cfgErr != nil && !verrors.Is(cfgErr, verrors.NotFound) {
		return nil, cfgErr
	}
	if hasConfig && !cfg.Deleting {
		metrics.LifecycleOperationsTotal.WithLabelValues("createStore", "already_exists").Inc()
		return nil, verrors.New(verrors.AlreadyExists, op, fmt.Errorf("store %s already has an active config in cluster %s", name, cfg.Cluster))
	}

	_, _, getErr := e.deps.Metadata.GetStore(cluster, name)
	legacy := getErr == nil
	if getErr != nil && !verrors.Is(getErr, verrors.NotFound) {
		return nil, getErr
	}

	if legacy {
		e.logger.Info().Str("store", name).Str("cluster", cluster).Msg("legacy store found during createStore, deleting before recreate")
		// deleteStoreLocked refuses a store with reads or writes still
		// enabled; a legacy store blocking a recreate is force-disabled
		// here rather than making the caller disable it out-of-band
		// first, since createStore's whole point is to converge to a
		// usable store under one call.
		legacyLock := e.stores.get(cluster, name)
		legacyLock.Lock()
		_, err := e.mutateStore(cluster, name, func(s *types.Store) (*types.Store, error) {
			s.EnableReads = false
			s.EnableWrites = false
			return s, nil
		})
		legacyLock.Unlock()
		if err != nil {
			return nil, fmt.Errorf("%s: disabling legacy store %s before cleanup: %w", op, name, err)
		}
		if err := e.deleteStoreLocked(ctx, cluster, name, IgnoreVersion); err != nil {
			return nil, fmt.Errorf("%s: legacy cleanup of %s failed: %w", op, name, err)
		}
	}

	// The per-store lock is held for the rest of the call only from here,
	// after any legacy cleanup (the force-disable above holds it just for
	// its own write): the legacy path delegates to deleteStoreLocked, which acquires
	// this same lock itself for its own per-version and final-removal
	// steps, and sync.Mutex is not reentrant.
	storeLock := e.stores.get(cluster, name)
	storeLock.Lock()
	defer storeLock.Unlock()

	largestUsed, err := e.deps.Metadata.GetLargestUsedVersionFromGraveyard(name)
	if err != nil {
		return nil, err
	}

	store := &types.Store{
		Name:                     name,
		Owner:                    owner,
		CreatedAt:                time.Now(),
		CurrentVersion:           types.NonExistingVersion,
		LargestUsedVersionNumber: largestUsed,
		EnableReads:              true,
		EnableWrites:             true,
		StorageQuotaBytes:        -1,
		CompressionStrategy:      types.CompressionGzip,
	}
	if err := e.deps.Metadata.AddStore(cluster, store); err != nil {
		return nil, err
	}
	if err := e.deps.Metadata.PutStoreConfig(&types.StoreConfig{StoreName: name, Cluster: cluster}); err != nil {
		return nil, fmt.Errorf("%s: store %s persisted but discovery config failed, retry createStore to converge: %w", op, name, err)
	}
	if _, err := e.deps.Metadata.AddKeySchema(name, keySchema); err != nil {
		return nil, fmt.Errorf("%s: key schema registration failed for %s, retry createStore to converge: %w", op, name, err)
	}
	if _, err := e.deps.Metadata.AddValueSchema(name, valueSchema); err != nil {
		return nil, fmt.Errorf("%s: value schema registration failed for %s, retry createStore to converge: %w", op, name, err)
	}

	metrics.LifecycleOperationsTotal.WithLabelValues("createStore", "success").Inc()
	e.publish(events.EventStoreCreated, "store created", map[string]string{"store": name, "cluster": cluster, "owner": owner})
	e.logger.Info().Str("store", name).Str("cluster", cluster).Str("owner", owner).Int("largest_used_version", largestUsed).Msg("store created")
	return store, nil
}

// CheckResourceCleanupBeforeStoreCreation scans for a lingering
// StoreConfig, live Store row, real-time topic (including the system-store
// RT namespace), and coordinator Resources that would collide with a fresh
// createStore(cluster, storeName). Version topics are deliberately
// ignored: they may lag behind an otherwise-clean store and are not
// treated as evidence the store still exists.
func (e *Engine) CheckResourceCleanupBeforeStoreCreation(ctx context.Context, cluster, storeName string, includeCoordinator bool) error {
	const op = "lifecycle.checkResourceCleanupBeforeStoreCreation"

	if _, err := e.deps.Metadata.GetStoreConfig(storeName); err == nil {
		return verrors.Tagged(verrors.Conflict, op, "StoreConfigExists", fmt.Errorf("store config for %s still exists", storeName))
	} else if !verrors.Is(err, verrors.NotFound) {
		return err
	}

	if _, _, err := e.deps.Metadata.GetStore(cluster, storeName); err == nil {
		return verrors.Tagged(verrors.Conflict, op, "StoreExists", fmt.Errorf("store %s still exists in cluster %s", storeName, cluster))
	} else if !verrors.Is(err, verrors.NotFound) {
		return err
	}

	rtExists, err := e.deps.Topics.ContainsTopic(ctx, types.RealTimeTopic(storeName))
	if err != nil {
		return verrors.New(verrors.TopicManagerUnavailable, op, err)
	}
	if rtExists {
		return verrors.Tagged(verrors.Conflict, op, "RealTimeTopicExists", fmt.Errorf("real-time topic for %s still exists", storeName))
	}

	systemRT, err := e.deps.Topics.ContainsTopic(ctx, types.SystemStoreTopicPrefix+storeName+"_rt")
	if err != nil {
		return verrors.New(verrors.TopicManagerUnavailable, op, err)
	}
	if systemRT {
		return verrors.Tagged(verrors.Conflict, op, "SystemStoreRealTimeTopicExists", fmt.Errorf("system-store real-time topic for %s still exists", storeName))
	}

	if includeCoordinator {
		hasResources, err := e.deps.Coordinator.HasResourcesWithPrefix(ctx, cluster, storeName+"_v")
		if err != nil {
			return verrors.New(verrors.CoordinatorUnavailable, op, err)
		}
		if hasResources {
			return verrors.Tagged(verrors.Conflict, op, "CoordinatorResourcesExist", fmt.Errorf("coordinator resources for %s still exist in cluster %s", storeName, cluster))
		}
	}

	return nil
}
