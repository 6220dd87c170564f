package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/cuemby/venice/pkg/events"
	"github.com/cuemby/venice/pkg/metrics"
	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
)

// DeleteOneStoreVersion retires a single version: kills its participants,
// drops its coordinator resource, and deprecates (never hard-deletes) its
// version topic.
func (e *Engine) DeleteOneStoreVersion(ctx context.Context, cluster, storeName string, number int) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.LifecycleOperationDuration, "deleteOneStoreVersion")

	if err := e.requireLeader(cluster); err != nil {
		return err
	}

	clusterLock := e.clusters.get(cluster)
	clusterLock.Lock()
	defer clusterLock.Unlock()

	if err := e.deleteOneStoreVersionLocked(ctx, cluster, storeName, number); err != nil {
		metrics.LifecycleOperationsTotal.WithLabelValues("deleteOneStoreVersion", "error").Inc()
		return err
	}
	metrics.LifecycleOperationsTotal.WithLabelValues("deleteOneStoreVersion", "success").Inc()
	return nil
}

// deleteOneStoreVersionLocked assumes the caller already holds cluster's
// metadata write lock. It is idempotent: a version already absent from
// the store is treated as already deleted rather than an error, so
// handleVersionCreationFailure and deleteStoreLocked can call it freely
// during cleanup/retry paths.
func (e *Engine) deleteOneStoreVersionLocked(ctx context.Context, cluster, storeName string, number int) error {
	storeLock := e.stores.get(cluster, storeName)
	storeLock.Lock()
	defer storeLock.Unlock()

	store, _, err := e.deps.Metadata.GetStore(cluster, storeName)
	if err != nil {
		return err
	}
	version := store.VersionByNumber(number)
	if version == nil {
		return nil
	}

	resourceName := version.ResourceName()
	if err := e.deps.Coordinator.SendMessageToParticipants(ctx, cluster, resourceName, controlMessageKill, defaultMessageRetries); err != nil {
		e.logger.Warn().Err(err).Str("store", storeName).Int("version", number).Msg("kill broadcast failed, continuing teardown")
	}
	if err := e.deps.Coordinator.DropResource(ctx, cluster, resourceName); err != nil {
		return err
	}

	// Version-topic truncation is skipped while the store is migrating:
	// the destination controller may still be replaying this version's
	// topic, and truncation resumes once deleteStoreLocked or a later
	// retireOldStoreVersions runs after migrating is cleared.
	if !store.Migrating {
		topic := version.VersionTopicName()
		if exists, err := e.deps.Topics.ContainsTopic(ctx, topic); err != nil {
			return verrors.New(verrors.TopicManagerUnavailable, "lifecycle.deleteOneStoreVersion", err)
		} else if exists {
			if err := e.deps.Topics.UpdateRetention(ctx, topic, e.settings.DeprecatedTopicRetentionMs); err != nil {
				return verrors.New(verrors.TopicManagerUnavailable, "lifecycle.deleteOneStoreVersion", err)
			}
		}
	}

	_, err = e.mutateStore(cluster, storeName, func(s *types.Store) (*types.Store, error) {
		remaining, _ := withoutVersion(s.Versions, number)
		s.Versions = remaining
		if s.CurrentVersion == number {
			s.CurrentVersion = types.NonExistingVersion
		}
		return s, nil
	})
	if err != nil {
		return err
	}

	e.publish(events.EventVersionDeleted, "version deleted", map[string]string{
		"store": storeName, "cluster": cluster, "version": strconv.Itoa(number),
	})
	e.logger.Info().Str("store", storeName).Int("version", number).Msg("version deleted")
	return nil
}

// RetireOldStoreVersions deletes every version RetrieveVersionsToDelete
// selects, oldest first, stopping early if one deletion fails so a
// transient coordinator/topic-manager outage doesn't cascade into an
// error per remaining version. It finishes by sweeping the broker for
// version topics this store no longer tracks.
func (e *Engine) RetireOldStoreVersions(ctx context.Context, cluster, storeName string) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.LifecycleOperationDuration, "retireOldStoreVersions")

	if err := e.requireLeader(cluster); err != nil {
		return err
	}

	clusterLock := e.clusters.get(cluster)
	clusterLock.Lock()
	store, _, err := e.deps.Metadata.GetStore(cluster, storeName)
	clusterLock.Unlock()
	if err != nil {
		return err
	}

	toDelete := RetrieveVersionsToDelete(store, e.settings.MinNumberOfStoreVersionsToPreserve)
	for _, number := range toDelete {
		clusterLock.Lock()
		err := e.deleteOneStoreVersionLocked(ctx, cluster, storeName, number)
		clusterLock.Unlock()
		if err != nil {
			return fmt.Errorf("lifecycle.retireOldStoreVersions: store %s version %d: %w", storeName, number, err)
		}
	}

	clusterLock.Lock()
	defer clusterLock.Unlock()
	return e.truncateOrphanedVersionTopics(ctx, cluster, storeName)
}

// truncateOrphanedVersionTopics sweeps the broker for version topics of
// storeName whose version number is no longer tracked on the Store row
// (left behind by an earlier partial deletion) and deprecates each one
// that is not already truncated. Skipped entirely while the store is
// migrating, for the same reason deleteOneStoreVersionLocked defers its
// own truncation then.
func (e *Engine) truncateOrphanedVersionTopics(ctx context.Context, cluster, storeName string) error {
	const op = "lifecycle.retireOldStoreVersions"

	store, _, err := e.deps.Metadata.GetStore(cluster, storeName)
	if err != nil {
		return err
	}
	if store.Migrating {
		return nil
	}
	live := make(map[int]bool, len(store.Versions))
	for _, v := range store.Versions {
		live[v.Number] = true
	}

	allTopics, err := e.deps.Topics.ListTopics(ctx)
	if err != nil {
		return verrors.New(verrors.TopicManagerUnavailable, op, err)
	}
	for _, t := range allTopics {
		n, ok := parseVersionTopic(t, storeName)
		if !ok || live[n] {
			continue
		}
		truncated, err := e.deps.Topics.IsRetentionBelowThreshold(ctx, t, e.settings.DeprecatedTopicMaxRetentionMs)
		if err != nil {
			return verrors.New(verrors.TopicManagerUnavailable, op, err)
		}
		if truncated {
			continue
		}
		if err := e.deps.Topics.UpdateRetention(ctx, t, e.settings.DeprecatedTopicRetentionMs); err != nil {
			return verrors.New(verrors.TopicManagerUnavailable, op, err)
		}
		e.logger.Info().Str("store", storeName).Str("topic", t).Msg("orphaned version topic deprecated")
	}
	return nil
}

// RetrieveVersionsToDelete is a pure function implementing the version
// retention rule: versions are only ever candidates for deletion once
// they are strictly below CurrentVersion (never the live or a future
// version) and not in STARTED status (an in-flight push is never
// retired out from under itself); among the remaining candidates, the
// minToPreserve most recent (by number) survive.
func RetrieveVersionsToDelete(store *types.Store, minToPreserve int) []int {
	candidates := make([]*types.Version, 0, len(store.Versions))
	for _, v := range store.Versions {
		if v.Number >= store.CurrentVersion {
			continue
		}
		if v.Status == types.VersionStatusStarted {
			continue
		}
		candidates = append(candidates, v)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Number > candidates[j].Number })

	if len(candidates) <= minToPreserve {
		return nil
	}
	toDelete := make([]int, 0, len(candidates)-minToPreserve)
	for _, v := range candidates[minToPreserve:] {
		toDelete = append(toDelete, v.Number)
	}
	sort.Ints(toDelete)
	return toDelete
}
