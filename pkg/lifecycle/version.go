package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cuemby/venice/pkg/coordinator"
	"github.com/cuemby/venice/pkg/events"
	"github.com/cuemby/venice/pkg/metrics"
	"github.com/cuemby/venice/pkg/topics"
	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
)

// AddVersion starts a new push for store. The metadata write lock for
// cluster is held across the whole call, including the topic-creation,
// resource-creation, and wait-for-assignment steps, so the version appears
// atomically to other admins; only the finer per-store lock is released
// once the Version row itself is committed.
func (e *Engine) AddVersion(ctx context.Context, cluster, storeName, pushJobID string, numberHint, partitionCount, replicationFactor int, startMonitor, sendSOP bool) (*types.Version, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.LifecycleOperationDuration, "addVersion")

	if err := e.requireLeader(cluster); err != nil {
		return nil, err
	}

	clusterLock := e.clusters.get(cluster)
	clusterLock.Lock()
	defer clusterLock.Unlock()

	v, err := e.addVersionLocked(ctx, cluster, storeName, pushJobID, numberHint, partitionCount, replicationFactor, startMonitor, sendSOP)
	if err != nil {
		metrics.LifecycleOperationsTotal.WithLabelValues("addVersion", "error").Inc()
		return nil, err
	}
	metrics.LifecycleOperationsTotal.WithLabelValues("addVersion", "success").Inc()
	return v, nil
}

// addVersionLocked assumes the caller already holds cluster's metadata
// write lock.
func (e *Engine) addVersionLocked(ctx context.Context, cluster, storeName, pushJobID string, numberHint, partitionCount, replicationFactor int, startMonitor, sendSOP bool) (*types.Version, error) {
	const op = "lifecycle.addVersion"

	storeLock := e.stores.get(cluster, storeName)
	storeLock.Lock()

	store, _, err := e.deps.Metadata.GetStore(cluster, storeName)
	if err != nil {
		storeLock.Unlock()
		return nil, err
	}

	if numberHint != UnsetVersionNumber && store.VersionByNumber(numberHint) != nil {
		storeLock.Unlock()
		return nil, verrors.Tagged(verrors.Conflict, op, "VersionNumberCollision", fmt.Errorf("store %s already has a version %d", storeName, numberHint))
	}

	number := numberHint
	if number == UnsetVersionNumber {
		number = store.LargestUsedVersionNumber + 1
	}

	version := &types.Version{
		StoreName:         storeName,
		Number:            number,
		PushJobID:         pushJobID,
		Status:            types.VersionStatusStarted,
		PartitionCount:    partitionCount,
		ReplicationFactor: replicationFactor,
		CreatedAt:         time.Now(),
	}

	_, err = e.mutateStore(cluster, storeName, func(s *types.Store) (*types.Store, error) {
		s.Versions = withAppendedVersion(s.Versions, version)
		if s.PartitionCount == 0 {
			s.PartitionCount = partitionCount
		}
		if number > s.LargestUsedVersionNumber {
			s.LargestUsedVersionNumber = number
		}
		return s, nil
	})
	storeLock.Unlock()
	if err != nil {
		return nil, err
	}

	resourceName := version.ResourceName()
	topicCfg := topics.TopicConfig{
		PartitionCount:    partitionCount,
		ReplicationFactor: replicationFactor,
		RetentionMs:       defaultVersionTopicRetentionMs,
		CleanupPolicy:     "delete",
	}
	if err := e.deps.Topics.CreateTopic(ctx, version.VersionTopicName(), topicCfg); err != nil {
		return nil, e.handleVersionCreationFailure(ctx, cluster, storeName, number, verrors.New(verrors.TopicManagerUnavailable, op, err))
	}

	if sendSOP {
		if err := e.deps.Coordinator.SendMessageToParticipants(ctx, cluster, resourceName, controlMessageStartOfPush, defaultMessageRetries); err != nil {
			return nil, e.handleVersionCreationFailure(ctx, cluster, storeName, number, verrors.New(verrors.CoordinatorUnavailable, op, err))
		}
	}

	if startMonitor {
		clusterCfg := coordinator.ClusterConfig{
			TopologyAware:      true,
			AutoJoinAllowed:    true,
			DelayedRebalanceMs: e.settings.DelayedRebalanceMs,
			MinActiveReplicas:  e.settings.MinActiveReplicas,
		}
		if err := e.deps.Coordinator.EnsureCluster(ctx, cluster, clusterCfg); err != nil {
			return nil, e.handleVersionCreationFailure(ctx, cluster, storeName, number, verrors.New(verrors.CoordinatorUnavailable, op, err))
		}
		if err := e.deps.Coordinator.AddResource(ctx, cluster, resourceName, partitionCount, replicationFactor,
			stateModelOnlineOffline, rebalancerDelayedAutoRebalance, e.settings.MinActiveReplicas); err != nil {
			return nil, e.handleVersionCreationFailure(ctx, cluster, storeName, number, verrors.New(verrors.CoordinatorUnavailable, op, err))
		}
		waitTimeout := time.Duration(e.settings.OfflinePushWaitMs) * time.Millisecond
		if err := e.deps.Coordinator.WaitForAssignment(ctx, cluster, resourceName, replicationFactor, waitTimeout); err != nil {
			return nil, e.handleVersionCreationFailure(ctx, cluster, storeName, number, verrors.New(verrors.CoordinatorUnavailable, op, err))
		}
	}

	e.publish(events.EventVersionCreated, "version started", map[string]string{
		"store": storeName, "cluster": cluster, "version": strconv.Itoa(number), "push_job_id": pushJobID,
	})
	e.logger.Info().Str("store", storeName).Int("version", number).Str("push_job_id", pushJobID).Msg("version started")
	return version, nil
}

// IncrementVersionIdempotent is the only entry point that guarantees
// at-most-one Version per pushJobID: a retried push job gets its original
// version back instead of a second one.
func (e *Engine) IncrementVersionIdempotent(ctx context.Context, cluster, storeName, pushJobID string, partitionCount, replicationFactor int, startMonitor, sendSOP bool) (*types.Version, error) {
	if err := e.requireLeader(cluster); err != nil {
		return nil, err
	}

	store, _, err := e.deps.Metadata.GetStore(cluster, storeName)
	if err != nil {
		return nil, err
	}
	for _, v := range store.Versions {
		if v.PushJobID == pushJobID {
			cp := *v
			return &cp, nil
		}
	}

	clusterLock := e.clusters.get(cluster)
	clusterLock.Lock()
	defer clusterLock.Unlock()

	// Re-check under the cluster lock: another goroutine may have
	// completed the same pushJobID between the unlocked read above and
	// acquiring the lock.
	store, _, err = e.deps.Metadata.GetStore(cluster, storeName)
	if err != nil {
		return nil, err
	}
	for _, v := range store.Versions {
		if v.PushJobID == pushJobID {
			cp := *v
			return &cp, nil
		}
	}

	return e.addVersionLocked(ctx, cluster, storeName, pushJobID, UnsetVersionNumber, partitionCount, replicationFactor, startMonitor, sendSOP)
}

// GetStartedVersion returns the unique Version above store's
// CurrentVersion that is in STARTED status. It is a pure read over an
// already-fetched Store snapshot and takes no locks.
func GetStartedVersion(store *types.Store) (*types.Version, error) {
	const op = "lifecycle.getStartedVersion"

	var started *types.Version
	for _, v := range store.Versions {
		if v.Number <= store.CurrentVersion {
			continue
		}
		if v.Status == types.VersionStatusError {
			return nil, verrors.Tagged(verrors.Conflict, op, "ErroredVersion",
				fmt.Errorf("store %s has version %d in ERROR above current version %d", store.Name, v.Number, store.CurrentVersion))
		}
		if v.Status == types.VersionStatusStarted {
			if started != nil {
				return nil, verrors.Tagged(verrors.Conflict, op, "MultipleStarted",
					fmt.Errorf("store %s has multiple STARTED versions above current version %d", store.Name, store.CurrentVersion))
			}
			started = v
		}
	}
	return started, nil
}

// handleVersionCreationFailure marks number ERROR, cleans it up via
// deleteOneStoreVersionLocked, and returns a wrapped Fatal error
// describing cause. Callers of addVersionLocked already hold cluster's
// metadata write lock, which deleteOneStoreVersionLocked assumes.
func (e *Engine) handleVersionCreationFailure(ctx context.Context, cluster, storeName string, number int, cause error) error {
	storeLock := e.stores.get(cluster, storeName)
	storeLock.Lock()
	_, err := e.mutateStore(cluster, storeName, func(s *types.Store) (*types.Store, error) {
		if v := s.VersionByNumber(number); v != nil {
			v.Status = types.VersionStatusError
		}
		return s, nil
	})
	storeLock.Unlock()
	if err != nil {
		e.logger.Warn().Err(err).Str("store", storeName).Int("version", number).Msg("failed to mark version ERROR during failure handling")
	}

	if err := e.deleteOneStoreVersionLocked(ctx, cluster, storeName, number); err != nil {
		e.logger.Warn().Err(err).Str("store", storeName).Int("version", number).Msg("cleanup after version-creation failure also failed, leaving for retireOldStoreVersions to converge")
	}

	return verrors.New(verrors.Fatal, "lifecycle.addVersion", fmt.Errorf("version creation failed for %s v%d: %w", storeName, number, cause))
}
