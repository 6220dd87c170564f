// Package monitor runs the cluster controller's two background loops: the
// Store Migration Monitor and the Store Backup Version Cleanup loop. Both
// share the same shape: a ticker, a stop channel, and a per-tick method
// that logs and swallows its own errors so one bad cycle never kills the
// loop.
package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/venice/pkg/events"
	"github.com/cuemby/venice/pkg/log"
	"github.com/cuemby/venice/pkg/metrics"
	"github.com/cuemby/venice/pkg/storage"
	"github.com/cuemby/venice/pkg/types"
	"github.com/cuemby/venice/pkg/verrors"
)

// LeaderChecker reports whether this controller process currently holds
// mastership of a cluster. *mastership.Controller satisfies it; tests
// substitute a fixed-answer fake.
type LeaderChecker interface {
	IsLeader(cluster string) bool
}

// latestOnlineVersion returns the highest version number in
// types.VersionStatusOnline, or 0 if the store has none.
func latestOnlineVersion(store *types.Store) int {
	latest := 0
	for _, v := range store.Versions {
		if v.Status == types.VersionStatusOnline && v.Number > latest {
			latest = v.Number
		}
	}
	return latest
}

// MigrationMonitor is the background convergence half of store migration:
// a single global loop, 10-second cadence, that watches every in-flight
// migration and flips discovery over to the destination cluster once it
// has caught up.
type MigrationMonitor struct {
	metadata   storage.MetadataStore
	mastership LeaderChecker
	events     *events.Broker // may be nil
	interval   time.Duration
	logger     zerolog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMigrationMonitor constructs a monitor polling every interval (default
// 10 seconds). broker may be nil when nobody subscribes to cluster events.
func NewMigrationMonitor(metadata storage.MetadataStore, leader LeaderChecker, broker *events.Broker, interval time.Duration) *MigrationMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &MigrationMonitor{
		metadata:   metadata,
		mastership: leader,
		events:     broker,
		interval:   interval,
		logger:     log.WithComponent("migration-monitor"),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the polling loop in its own goroutine.
func (m *MigrationMonitor) Start() {
	go m.run()
}

// Stop signals the loop to drain its current tick and exit, blocking
// until it has done so.
func (m *MigrationMonitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *MigrationMonitor) run() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.interval).Msg("store migration monitor started")
	for {
		select {
		case <-ticker.C:
			m.tick()
		case <-m.stopCh:
			m.logger.Info().Msg("store migration monitor stopped")
			return
		}
	}
}

// tick scans every StoreConfig for an in-flight migration and cuts
// discovery over to the destination once it has an ONLINE version at
// least as new as the source's. Every error within the tick is logged and
// swallowed: one bad store must never stall the rest of the sweep or the
// next tick.
func (m *MigrationMonitor) tick() {
	defer metrics.MigrationMonitorCyclesTotal.Inc()

	configs, err := m.metadata.ListStoreConfigs()
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to list store configs")
		return
	}

	for _, cfg := range configs {
		if !cfg.IsMigrating() {
			continue
		}
		if err := m.converge(cfg); err != nil {
			m.logger.Warn().Err(err).Str("store", cfg.StoreName).
				Str("src", cfg.MigrationSrc).Str("dest", cfg.MigrationDest).
				Msg("migration convergence check failed, will retry next tick")
		}
	}
}

func (m *MigrationMonitor) converge(cfg *types.StoreConfig) error {
	if !m.mastership.IsLeader(cfg.MigrationDest) {
		return nil
	}

	destStore, _, err := m.metadata.GetStore(cfg.MigrationDest, cfg.StoreName)
	if err != nil {
		if verrors.Is(err, verrors.NotFound) {
			return nil
		}
		return err
	}
	srcStore, _, err := m.metadata.GetStore(cfg.MigrationSrc, cfg.StoreName)
	if err != nil {
		if verrors.Is(err, verrors.NotFound) {
			// Source already gone (deleteStore completed the
			// migration's cleanup); nothing left to converge.
			return nil
		}
		return err
	}

	destOnline := latestOnlineVersion(destStore)
	srcOnline := latestOnlineVersion(srcStore)
	if destOnline == 0 || destOnline < srcOnline {
		return nil
	}

	if cfg.Cluster == cfg.MigrationDest {
		// Already cut over; only the migrating flags remain to be
		// cleared, which is deleteStore's job once an operator
		// explicitly retires the source side.
		return nil
	}

	cfg.Cluster = cfg.MigrationDest
	if err := m.metadata.PutStoreConfig(cfg); err != nil {
		return err
	}
	if m.events != nil {
		m.events.Publish(&events.Event{
			ID:      uuid.NewString(),
			Type:    events.EventMigrationFinished,
			Message: "migration converged, discovery cut over to destination",
			Metadata: map[string]string{
				"store": cfg.StoreName, "src_cluster": cfg.MigrationSrc, "dest_cluster": cfg.MigrationDest,
			},
		})
	}
	m.logger.Info().Str("store", cfg.StoreName).Str("dest", cfg.MigrationDest).
		Int("dest_online_version", destOnline).Msg("migration converged, discovery cut over to destination")
	return nil
}

// RetireOldStoreVersionsFunc matches lifecycle.Engine.RetireOldStoreVersions,
// kept as a function type here so this package never imports pkg/lifecycle
// (which already imports pkg/mastership and pkg/storage; a direct
// dependency back would cycle).
type RetireOldStoreVersionsFunc func(ctx context.Context, cluster, storeName string) error

// BackupVersionCleanup is the scheduled counterpart to on-demand version
// retirement: one loop per managed cluster which, on each tick that finds
// this node leading that cluster, retires
// old versions for every store in that cluster so a partially failed
// deletion eventually converges without operator action.
type BackupVersionCleanup struct {
	cluster    string
	metadata   storage.MetadataStore
	mastership LeaderChecker
	retire     RetireOldStoreVersionsFunc
	interval   time.Duration
	logger     zerolog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBackupVersionCleanup constructs a cleanup loop scoped to a single
// managed cluster (default interval: 5 minutes).
func NewBackupVersionCleanup(cluster string, metadata storage.MetadataStore, leader LeaderChecker, retire RetireOldStoreVersionsFunc, interval time.Duration) *BackupVersionCleanup {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &BackupVersionCleanup{
		cluster:    cluster,
		metadata:   metadata,
		mastership: leader,
		retire:     retire,
		interval:   interval,
		logger:     log.WithCluster(cluster),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the per-cluster cleanup loop.
func (c *BackupVersionCleanup) Start() {
	go c.run()
}

// Stop signals the loop to drain its current tick and exit.
func (c *BackupVersionCleanup) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *BackupVersionCleanup) run() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info().Dur("interval", c.interval).Msg("store backup version cleanup loop started")
	for {
		select {
		case <-ticker.C:
			c.tick()
		case <-c.stopCh:
			c.logger.Info().Msg("store backup version cleanup loop stopped")
			return
		}
	}
}

func (c *BackupVersionCleanup) tick() {
	defer metrics.VersionCleanupCyclesTotal.WithLabelValues(c.cluster).Inc()

	if !c.mastership.IsLeader(c.cluster) {
		return
	}

	stores, err := c.metadata.ListStores(c.cluster)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to list stores for version cleanup")
		return
	}

	ctx := context.Background()
	for _, s := range stores {
		if err := c.retire(ctx, c.cluster, s.Name); err != nil {
			c.logger.Warn().Err(err).Str("store", s.Name).Msg("retireOldStoreVersions failed, will retry next tick")
		}
	}
}
