package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store/version metrics
	StoresTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "venice_controller_stores_total",
			Help: "Total number of stores by cluster",
		},
		[]string{"cluster"},
	)

	VersionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "venice_controller_versions_total",
			Help: "Total number of versions by status",
		},
		[]string{"status"},
	)

	// Mastership metrics
	MastershipLeader = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "venice_controller_mastership_is_leader",
			Help: "Whether this node is master for a cluster (1 = leader, 0 = follower)",
		},
		[]string{"cluster"},
	)

	MastershipJoinDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "venice_controller_mastership_join_duration_seconds",
			Help:    "Time taken to establish leadership for a cluster in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Lifecycle operation metrics
	LifecycleOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "venice_controller_lifecycle_operation_duration_seconds",
			Help:    "Time taken for a lifecycle engine operation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	LifecycleOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venice_controller_lifecycle_operations_total",
			Help: "Total number of lifecycle engine operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Resource coordinator metrics
	CoordinatorCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "venice_controller_coordinator_call_duration_seconds",
			Help:    "Time taken for a resource coordinator call in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	CoordinatorErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venice_controller_coordinator_errors_total",
			Help: "Total number of resource coordinator call failures by method",
		},
		[]string{"method"},
	)

	// Topic manager metrics
	TopicManagerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "venice_controller_topic_manager_call_duration_seconds",
			Help:    "Time taken for a topic manager call in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	TopicManagerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venice_controller_topic_manager_errors_total",
			Help: "Total number of topic manager call failures by method",
		},
		[]string{"method"},
	)

	// Background monitor metrics
	MigrationMonitorCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "venice_controller_migration_monitor_cycles_total",
			Help: "Total number of Store Migration Monitor ticks completed",
		},
	)

	VersionCleanupCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venice_controller_version_cleanup_cycles_total",
			Help: "Total number of Store Backup Version Cleanup ticks completed by cluster",
		},
		[]string{"cluster"},
	)

	// Push-status write-back metrics
	PushStatusWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venice_controller_push_status_writes_total",
			Help: "Total number of push-status write-back attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(StoresTotal)
	prometheus.MustRegister(VersionsTotal)
	prometheus.MustRegister(MastershipLeader)
	prometheus.MustRegister(MastershipJoinDuration)
	prometheus.MustRegister(LifecycleOperationDuration)
	prometheus.MustRegister(LifecycleOperationsTotal)
	prometheus.MustRegister(CoordinatorCallDuration)
	prometheus.MustRegister(CoordinatorErrorsTotal)
	prometheus.MustRegister(TopicManagerCallDuration)
	prometheus.MustRegister(TopicManagerErrorsTotal)
	prometheus.MustRegister(MigrationMonitorCyclesTotal)
	prometheus.MustRegister(VersionCleanupCyclesTotal)
	prometheus.MustRegister(PushStatusWritesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
