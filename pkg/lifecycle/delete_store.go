package lifecycle

import (
	"context"
	"fmt"

	"github.com/cuemby/venice/pkg/events"
	"github.com/cuemby/venice/pkg/metrics"
	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
)

// DeleteStore retires every version of a disabled store, deprecates its
// topics, and moves it into the graveyard so its largest used version
// number survives a future recreate.
// largestUsedVersionOverride is compared against the store's own
// LargestUsedVersionNumber as a regression guard; pass IgnoreVersion to
// skip that check (used by createStore's legacy-cleanup path, where the
// caller has no opinion on the prior store's version history).
func (e *Engine) DeleteStore(ctx context.Context, cluster, name string, largestUsedVersionOverride int) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.LifecycleOperationDuration, "deleteStore")

	if err := e.requireLeader(cluster); err != nil {
		return err
	}

	clusterLock := e.clusters.get(cluster)
	clusterLock.Lock()
	defer clusterLock.Unlock()

	if err := e.deleteStoreLocked(ctx, cluster, name, largestUsedVersionOverride); err != nil {
		metrics.LifecycleOperationsTotal.WithLabelValues("deleteStore", "error").Inc()
		return err
	}
	metrics.LifecycleOperationsTotal.WithLabelValues("deleteStore", "success").Inc()
	return nil
}

// deleteStoreLocked assumes the caller already holds cluster's metadata
// write lock. It delegates each version's teardown to
// deleteOneStoreVersionLocked, which takes and releases its own per-store
// lock per call; deleteStoreLocked only takes the store lock itself for
// the final graveyard/row-removal step, so it never double-locks.
func (e *Engine) deleteStoreLocked(ctx context.Context, cluster, name string, largestUsedVersionOverride int) error {
	const op = "lifecycle.deleteStore"

	store, _, err := e.deps.Metadata.GetStore(cluster, name)
	if err != nil {
		if verrors.Is(err, verrors.NotFound) {
			return nil
		}
		return err
	}

	if store.EnableReads || store.EnableWrites {
		return verrors.Tagged(verrors.Conflict, op, "StoreStillEnabled",
			fmt.Errorf("store %s: reads and writes must both be disabled before deletion", name))
	}

	if largestUsedVersionOverride != IgnoreVersion && largestUsedVersionOverride < store.LargestUsedVersionNumber {
		return verrors.Tagged(verrors.Conflict, op, "VersionRegression",
			fmt.Errorf("store %s: refusing to delete with override %d below recorded largest used version %d", name, largestUsedVersionOverride, store.LargestUsedVersionNumber))
	}

	cfg, cfgErr := e.deps.Metadata.GetStoreConfig(name)
	hasConfig := cfgErr == nil
	if cfgErr != nil && !verrors.Is(cfgErr, verrors.NotFound) {
		return cfgErr
	}
	migrating := hasConfig && cfg.Cluster != cluster

	if hasConfig && !migrating {
		cfg.Deleting = true
		if err := e.deps.Metadata.PutStoreConfig(cfg); err != nil {
			return err
		}
	}

	for _, v := range store.Versions {
		if err := e.deleteOneStoreVersionLocked(ctx, cluster, name, v.Number); err != nil {
			return fmt.Errorf("%s: tearing down version %d: %w", op, v.Number, err)
		}
	}

	rtTopic := types.RealTimeTopic(name)
	if exists, err := e.deps.Topics.ContainsTopic(ctx, rtTopic); err != nil {
		return verrors.New(verrors.TopicManagerUnavailable, op, err)
	} else if exists {
		if err := e.deps.Topics.UpdateRetention(ctx, rtTopic, e.settings.DeprecatedTopicRetentionMs); err != nil {
			return verrors.New(verrors.TopicManagerUnavailable, op, err)
		}
	}

	// Version topics for versions no longer tracked on the Store row
	// (e.g. left behind by a prior partial deletion) are swept up here
	// too, since the store is going away entirely.
	allTopics, err := e.deps.Topics.ListTopics(ctx)
	if err != nil {
		return verrors.New(verrors.TopicManagerUnavailable, op, err)
	}
	for _, t := range allTopics {
		if _, ok := parseVersionTopic(t, name); ok {
			if err := e.deps.Topics.UpdateRetention(ctx, t, e.settings.DeprecatedTopicRetentionMs); err != nil {
				return verrors.New(verrors.TopicManagerUnavailable, op, err)
			}
		}
	}

	storeLock := e.stores.get(cluster, name)
	storeLock.Lock()
	defer storeLock.Unlock()

	if err := e.deps.Metadata.PutGraveyard(&types.GraveyardEntry{StoreName: name, LargestUsedVersionNumber: store.LargestUsedVersionNumber}); err != nil {
		return err
	}
	if err := e.deps.Metadata.DeleteStore(cluster, name); err != nil {
		return err
	}
	if hasConfig && !migrating {
		if err := e.deps.Metadata.DeleteStoreConfig(name); err != nil {
			return err
		}
	}

	e.publish(events.EventStoreDeleted, "store deleted", map[string]string{"store": name, "cluster": cluster})
	e.logger.Info().Str("store", name).Str("cluster", cluster).Bool("migrating", migrating).Msg("store deleted")
	return nil
}
