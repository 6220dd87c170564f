package metrics

import (
	"time"

	"github.com/cuemby/venice/pkg/types"
)

// StoreSource is the subset of the metadata store the collector needs to
// compute gauge values. pkg/storage.MetadataStore satisfies this interface.
type StoreSource interface {
	ListStores(cluster string) ([]*types.Store, error)
}

// MastershipSource reports per-cluster leadership. pkg/mastership.Controller
// satisfies this interface.
type MastershipSource interface {
	IsLeader(cluster string) bool
}

// Collector periodically recomputes gauge metrics from the metadata store
// and the mastership controller, since those values aren't naturally
// updated on every mutation.
type Collector struct {
	store      StoreSource
	mastership MastershipSource
	clusters   []string
	stopCh     chan struct{}
}

// NewCollector creates a new metrics collector for the given clusters.
func NewCollector(store StoreSource, mastership MastershipSource, clusters []string) *Collector {
	return &Collector{
		store:      store,
		mastership: mastership,
		clusters:   clusters,
		stopCh:     make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectStoreMetrics()
	c.collectMastershipMetrics()
}

func (c *Collector) collectStoreMetrics() {
	versionCounts := make(map[types.VersionStatus]int)

	for _, cluster := range c.clusters {
		stores, err := c.store.ListStores(cluster)
		if err != nil {
			continue
		}

		StoresTotal.WithLabelValues(cluster).Set(float64(len(stores)))

		for _, store := range stores {
			for _, v := range store.Versions {
				versionCounts[v.Status]++
			}
		}
	}

	for status, count := range versionCounts {
		VersionsTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectMastershipMetrics() {
	for _, cluster := range c.clusters {
		if c.mastership.IsLeader(cluster) {
			MastershipLeader.WithLabelValues(cluster).Set(1)
		} else {
			MastershipLeader.WithLabelValues(cluster).Set(0)
		}
	}
}
