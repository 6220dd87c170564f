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

// GetStoreSnapshot implements controllerclient.SnapshotProvider: it serves
// a peer controller's migrateStore request for this process's copy of a
// store. A nil error with a nil snapshot never happens; NotFound is
// returned as a verrors error instead, matching every other read path.
func (e *Engine) GetStoreSnapshot(ctx context.Context, storeName string) (*types.StoreSnapshot, error) {
	cfg, err := e.deps.Metadata.GetStoreConfig(storeName)
	if err != nil {
		return nil, err
	}

	store, _, err := e.deps.Metadata.GetStore(cfg.Cluster, storeName)
	if err != nil {
		return nil, err
	}
	keySchema, err := e.deps.Metadata.GetKeySchema(storeName)
	if err != nil {
		return nil, err
	}
	valueSchemas, err := e.deps.Metadata.ListValueSchemas(storeName)
	if err != nil {
		return nil, err
	}

	return &types.StoreSnapshot{
		Store:         store,
		KeySchema:     keySchema,
		ValueSchemas:  valueSchemas,
		RetrievedFrom: cfg.Cluster,
		RetrievedAt:   time.Now(),
	}, nil
}

// MigrateStore begins a cross-cluster migration by cloning storeName's
// metadata onto destCluster and flipping both sides into migrating state. It does not wait for the destination to catch up
// with an ONLINE version; that convergence, and the eventual discovery
// cutover, is the Store Migration Monitor's job (pkg/monitor).
func (e *Engine) MigrateStore(ctx context.Context, srcCluster, destCluster, storeName string) error {
	const op = "lifecycle.migrateStore"
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.LifecycleOperationDuration, "migrateStore")

	if err := e.requireLeader(destCluster); err != nil {
		return err
	}

	snapshot, err := e.fetchSnapshot(ctx, srcCluster, storeName)
	if err != nil {
		metrics.LifecycleOperationsTotal.WithLabelValues("migrateStore", "error").Inc()
		return fmt.Errorf("%s: reading source snapshot: %w", op, err)
	}

	destClusterLock := e.clusters.get(destCluster)
	destClusterLock.Lock()
	defer destClusterLock.Unlock()

	destStoreLock := e.stores.get(destCluster, storeName)
	destStoreLock.Lock()
	defer destStoreLock.Unlock()

	if _, _, err := e.deps.Metadata.GetStore(destCluster, storeName); err == nil {
		metrics.LifecycleOperationsTotal.WithLabelValues("migrateStore", "error").Inc()
		return verrors.Tagged(verrors.Conflict, op, "DestinationStoreExists",
			fmt.Errorf("store %s already exists in destination cluster %s", storeName, destCluster))
	} else if !verrors.Is(err, verrors.NotFound) {
		return err
	}

	clone := &types.Store{
		Name:           storeName,
		Owner:          snapshot.Store.Owner,
		CreatedAt:      time.Now(),
		PartitionCount: snapshot.Store.PartitionCount,
		CurrentVersion: types.NonExistingVersion,
		// Zeroed rather than recovered from the graveyard: the destination
		// must run a fresh push cycle from v1, and discovery only cuts over
		// once its online version number has caught back up to the source's.
		LargestUsedVersionNumber: 0,
		EnableReads:              snapshot.Store.EnableReads,
		EnableWrites:             snapshot.Store.EnableWrites,
		Migrating:                true,
		IncrementalPushEnabled:   snapshot.Store.IncrementalPushEnabled,
		RouterCacheEnabled:       snapshot.Store.RouterCacheEnabled,
		BatchGetLimit:            snapshot.Store.BatchGetLimit,
		StorageQuotaBytes:        snapshot.Store.StorageQuotaBytes,
		ReadQuotaCU:              snapshot.Store.ReadQuotaCU,
		NumVersionsToPreserve:    snapshot.Store.NumVersionsToPreserve,
		AccessControlled:         snapshot.Store.AccessControlled,
		CompressionStrategy:      snapshot.Store.CompressionStrategy,
		ChunkingEnabled:          snapshot.Store.ChunkingEnabled,
	}
	if snapshot.Store.HybridConfig != nil {
		hc := *snapshot.Store.HybridConfig
		clone.HybridConfig = &hc
	}

	if err := e.deps.Metadata.AddStore(destCluster, clone); err != nil {
		return err
	}
	if snapshot.KeySchema != nil {
		if _, err := e.deps.Metadata.AddKeySchema(storeName, snapshot.KeySchema.Schema); err != nil {
			return fmt.Errorf("%s: key schema copy failed: %w", op, err)
		}
	}
	for _, vs := range snapshot.ValueSchemas {
		if _, err := e.deps.Metadata.AddValueSchema(storeName, vs.Schema); err != nil {
			return fmt.Errorf("%s: value schema %d copy failed: %w", op, vs.ID, err)
		}
	}

	if err := e.deps.Metadata.PutStoreConfig(&types.StoreConfig{
		StoreName:     storeName,
		Cluster:       srcCluster, // discovery remains at src until the monitor cuts over
		MigrationSrc:  srcCluster,
		MigrationDest: destCluster,
	}); err != nil {
		return fmt.Errorf("%s: store cloned but discovery config failed, retry migrateStore to converge: %w", op, err)
	}

	// When src and dest are the same cluster, destStoreLock already covers
	// this row.
	srcStoreLock := e.stores.get(srcCluster, storeName)
	if srcCluster != destCluster {
		srcStoreLock.Lock()
	}
	_, err = e.mutateStore(srcCluster, storeName, func(s *types.Store) (*types.Store, error) {
		s.Migrating = true
		return s, nil
	})
	if srcCluster != destCluster {
		srcStoreLock.Unlock()
	}
	if err != nil {
		return fmt.Errorf("%s: destination cloned but source flip to migrating failed, retry migrateStore to converge: %w", op, err)
	}

	metrics.LifecycleOperationsTotal.WithLabelValues("migrateStore", "success").Inc()
	e.publish(events.EventMigrationStarted, "store migration started", map[string]string{
		"store": storeName, "src_cluster": srcCluster, "dest_cluster": destCluster,
	})
	e.logger.Info().Str("store", storeName).Str("src_cluster", srcCluster).Str("dest_cluster", destCluster).Msg("store migration started")
	return nil
}

// fetchSnapshot reads storeName's metadata from srcCluster, using the
// local Metadata Store directly when this process also manages srcCluster
// (the common case in tests and single-process deployments) and falling
// back to a controllerclient.Client dial otherwise.
func (e *Engine) fetchSnapshot(ctx context.Context, srcCluster, storeName string) (*types.StoreSnapshot, error) {
	if e.deps.Mastership.IsLeader(srcCluster) || e.deps.Dial == nil {
		return e.GetStoreSnapshot(ctx, storeName)
	}

	client, err := e.deps.Dial(srcCluster)
	if err != nil {
		return nil, verrors.New(verrors.CoordinatorUnavailable, "lifecycle.migrateStore", err)
	}
	defer client.Close()

	return client.GetStoreSnapshot(ctx, storeName)
}
