package lifecycle

import (
	"context"
	"fmt"

	"github.com/cuemby/venice/pkg/metrics"
	"github.com/cuemby/venice/pkg/topics"
	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
)

// UpdateStoreOptions carries the optional-field update for UpdateStore.
// A nil field leaves the corresponding Store field untouched; every field
// is independently optional.
type UpdateStoreOptions struct {
	Owner                    *string
	PartitionCount           *int
	EnableReads              *bool
	EnableWrites             *bool
	StorageQuotaBytes        *int64
	ReadQuotaCU              *int64
	CurrentVersion           *int
	LargestUsedVersionNumber *int
	BatchGetLimit            *int
	Migrating                *bool
	NumVersionsToPreserve    *int
	AccessControlled         *bool
	CompressionStrategy      *types.CompressionStrategy
	IncrementalPushEnabled   *bool
	RouterCacheEnabled       *bool
	ChunkingEnabled          *bool
	HybridConfig             *types.HybridConfig // nil leaves the hybrid configuration alone
	DisableHybrid            bool                // rejected with Conflict on a store that is already hybrid
}

// UpdateStore applies a multi-field update to a store under its
// repository lock, restoring the store's pre-image if any individual
// field rejects the update.
func (e *Engine) UpdateStore(ctx context.Context, cluster, name string, opts UpdateStoreOptions) (*types.Store, error) {
	const op = "lifecycle.updateStore"
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.LifecycleOperationDuration, "updateStore")

	if err := e.requireLeader(cluster); err != nil {
		return nil, err
	}

	clusterLock := e.clusters.get(cluster)
	clusterLock.Lock()
	defer clusterLock.Unlock()

	storeLock := e.stores.get(cluster, name)
	storeLock.Lock()
	defer storeLock.Unlock()

	updated, err := e.mutateStore(cluster, name, func(s *types.Store) (*types.Store, error) {
		pre := cloneStore(s)
		if err := applyUpdateStoreOptions(s, opts); err != nil {
			*s = *pre
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		metrics.LifecycleOperationsTotal.WithLabelValues("updateStore", "error").Inc()
		return nil, err
	}

	if opts.HybridConfig != nil {
		if err := e.RealTimeTopicEnsurance(ctx, cluster, updated); err != nil {
			metrics.LifecycleOperationsTotal.WithLabelValues("updateStore", "error").Inc()
			return nil, fmt.Errorf("%s: store %s updated but real-time topic reconciliation failed: %w", op, name, err)
		}
	}

	metrics.LifecycleOperationsTotal.WithLabelValues("updateStore", "success").Inc()
	e.logger.Info().Str("store", name).Str("cluster", cluster).Msg("store updated")
	return updated, nil
}

// applyUpdateStoreOptions mutates s in place, field by field, rejecting
// the whole update (returning a non-nil error) on the first invariant
// violation. Caller is responsible for restoring s's pre-image on error.
func applyUpdateStoreOptions(s *types.Store, opts UpdateStoreOptions) error {
	const op = "lifecycle.updateStore"

	if opts.Owner != nil {
		s.Owner = *opts.Owner
	}

	if opts.PartitionCount != nil {
		if s.IsHybrid() && *opts.PartitionCount != s.PartitionCount {
			return verrors.Tagged(verrors.Conflict, op, "PartitionCountPinnedHybrid",
				fmt.Errorf("store %s is hybrid, partition count is pinned at %d", s.Name, s.PartitionCount))
		}
		if len(s.Versions) > 0 {
			return verrors.Tagged(verrors.Conflict, op, "PartitionCountImmutable",
				fmt.Errorf("store %s already has versions, partition count is fixed", s.Name))
		}
		if *opts.PartitionCount < MinPartitionCount || *opts.PartitionCount > MaxPartitionCount {
			return verrors.Tagged(verrors.Conflict, op, "PartitionCountOutOfRange",
				fmt.Errorf("partition count %d out of range [%d,%d]", *opts.PartitionCount, MinPartitionCount, MaxPartitionCount))
		}
		s.PartitionCount = *opts.PartitionCount
	}

	if opts.EnableReads != nil {
		s.EnableReads = *opts.EnableReads
	}
	if opts.EnableWrites != nil {
		s.EnableWrites = *opts.EnableWrites
	}
	if opts.StorageQuotaBytes != nil {
		if *opts.StorageQuotaBytes < -1 {
			return verrors.Tagged(verrors.Conflict, op, "StorageQuotaInvalid",
				fmt.Errorf("storage quota %d must be >=0 or -1 (unlimited)", *opts.StorageQuotaBytes))
		}
		s.StorageQuotaBytes = *opts.StorageQuotaBytes
	}
	if opts.ReadQuotaCU != nil {
		if *opts.ReadQuotaCU < 0 {
			return verrors.Tagged(verrors.Conflict, op, "ReadQuotaInvalid", fmt.Errorf("read quota %d must be >=0", *opts.ReadQuotaCU))
		}
		s.ReadQuotaCU = *opts.ReadQuotaCU
	}
	if opts.CurrentVersion != nil {
		if s.VersionByNumber(*opts.CurrentVersion) == nil {
			return verrors.Tagged(verrors.Conflict, op, "CurrentVersionNotFound",
				fmt.Errorf("store %s has no version %d", s.Name, *opts.CurrentVersion))
		}
		if !s.EnableWrites && s.CurrentVersion != types.NonExistingVersion {
			return verrors.Tagged(verrors.Conflict, op, "StoreNotWritable",
				fmt.Errorf("store %s is not writable and already has an online version", s.Name))
		}
		s.CurrentVersion = *opts.CurrentVersion
	}
	if opts.LargestUsedVersionNumber != nil {
		if *opts.LargestUsedVersionNumber < s.LargestUsedVersionNumber {
			return verrors.Tagged(verrors.Conflict, op, "VersionRegression",
				fmt.Errorf("largest used version %d is below recorded %d", *opts.LargestUsedVersionNumber, s.LargestUsedVersionNumber))
		}
		s.LargestUsedVersionNumber = *opts.LargestUsedVersionNumber
	}
	if opts.BatchGetLimit != nil {
		s.BatchGetLimit = *opts.BatchGetLimit
	}
	if opts.Migrating != nil {
		s.Migrating = *opts.Migrating
	}
	if opts.NumVersionsToPreserve != nil {
		s.NumVersionsToPreserve = *opts.NumVersionsToPreserve
	}
	if opts.AccessControlled != nil {
		s.AccessControlled = *opts.AccessControlled
	}
	if opts.CompressionStrategy != nil {
		s.CompressionStrategy = *opts.CompressionStrategy
	}
	if opts.ChunkingEnabled != nil {
		s.ChunkingEnabled = *opts.ChunkingEnabled
	}

	// Hybrid ingestion is one-way: participants may already be replaying
	// the real-time topic into live versions, and there is no protocol to
	// unwind that, so a disable on a hybrid store is refused outright.
	if opts.DisableHybrid && s.IsHybrid() {
		return verrors.Tagged(verrors.Conflict, op, "HybridDisableUnsupported",
			fmt.Errorf("store %s: disabling hybrid ingestion is not supported", s.Name))
	}

	wantHybrid := s.IsHybrid() || opts.HybridConfig != nil

	wantIncremental := s.IncrementalPushEnabled
	if opts.IncrementalPushEnabled != nil {
		wantIncremental = *opts.IncrementalPushEnabled
	}
	wantRouterCache := s.RouterCacheEnabled
	if opts.RouterCacheEnabled != nil {
		wantRouterCache = *opts.RouterCacheEnabled
	}
	if wantHybrid && (wantIncremental || wantRouterCache) {
		return verrors.Tagged(verrors.Conflict, op, "HybridIncompatible",
			fmt.Errorf("store %s: hybrid ingestion is incompatible with incremental push and router caching", s.Name))
	}

	if opts.IncrementalPushEnabled != nil {
		s.IncrementalPushEnabled = *opts.IncrementalPushEnabled
	}
	if opts.RouterCacheEnabled != nil {
		s.RouterCacheEnabled = *opts.RouterCacheEnabled
	}
	if opts.HybridConfig != nil {
		hc := *opts.HybridConfig
		s.HybridConfig = &hc
	}

	return nil
}

// RealTimeTopicEnsurance creates store's real-time topic if it does not
// exist yet. Only a hybrid store with a settled partition count may have
// one, so both a non-hybrid store and an unset partition count are
// refused rather than papered over. An existing topic is left in place:
// real-time topics may carry customer-visible offsets other consumers
// still read, so this never deletes or resizes one.
func (e *Engine) RealTimeTopicEnsurance(ctx context.Context, cluster string, store *types.Store) error {
	const op = "lifecycle.realTimeTopicEnsurance"

	if !store.IsHybrid() {
		return verrors.Tagged(verrors.Conflict, op, "NotHybrid",
			fmt.Errorf("store %s is not hybrid, it has no real-time topic to ensure", store.Name))
	}
	if store.PartitionCount == 0 {
		return verrors.Tagged(verrors.Conflict, op, "PartitionCountUnset",
			fmt.Errorf("store %s has no partition count yet, cannot size its real-time topic", store.Name))
	}

	rtTopic := types.RealTimeTopic(store.Name)
	exists, err := e.deps.Topics.ContainsTopic(ctx, rtTopic)
	if err != nil {
		return verrors.New(verrors.TopicManagerUnavailable, op, err)
	}
	if exists {
		return nil
	}

	replicationFactor := e.settings.DefaultReplicationFactor
	if v := store.CurrentVersionRecord(); v != nil && v.ReplicationFactor > 0 {
		replicationFactor = v.ReplicationFactor
	}

	cfg := topics.TopicConfig{
		PartitionCount:    store.PartitionCount,
		ReplicationFactor: replicationFactor,
		RetentionMs:       store.HybridConfig.RewindSeconds * 1000,
		CleanupPolicy:     "compact",
	}
	if err := e.deps.Topics.CreateTopic(ctx, rtTopic, cfg); err != nil {
		return verrors.New(verrors.TopicManagerUnavailable, op, err)
	}
	return nil
}
