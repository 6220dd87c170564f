package config

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "VENICE"

// Config is the environment-agnostic property map the controller reads at
// startup. Every field binds through viper to a flag, an environment
// variable (VENICE_ prefix), and an optional YAML file, in that order of
// precedence (flag wins, then env, then file, then default).
type Config struct {
	ControllerClusterName    string
	ControllerClusterReplica int
	AdminPort                int
	AdminSecurePort          int

	DataDir string

	KafkaBootstrapServers    string
	KafkaBootstrapServersTLS string

	DeprecatedJobTopicRetentionMs    int64
	DeprecatedJobTopicMaxRetentionMs int64

	MinNumberOfUnusedTopicsToPreserve  int
	MinNumberOfStoreVersionsToPreserve int

	NativeReplicationSourceFabric string

	CoordinatorEndpoints []string

	MastershipJoinTimeout time.Duration

	ManagedClusters []string

	// ClusterControllerAddrs maps a cluster name to the admin RPC address
	// of the controller authoritative for it, for clusters this process
	// does not manage itself (cross-cluster migration reads).
	ClusterControllerAddrs map[string]string

	OfflinePushWaitMs        int64
	MinActiveReplicas        int
	DelayedRebalanceMs       int64
	VersionCleanupInterval   time.Duration
	MigrationPollInterval    time.Duration
	DefaultReplicationFactor int
}

// Defaults mirror the property values the controller falls back to when
// neither a flag, env var, nor config file sets them.
func Defaults() Config {
	return Config{
		ControllerClusterReplica:           1,
		AdminPort:                          7075,
		AdminSecurePort:                    7076,
		DataDir:                            "/var/lib/venice-controller",
		DeprecatedJobTopicRetentionMs:      5 * 60 * 1000,
		DeprecatedJobTopicMaxRetentionMs:   24 * 60 * 60 * 1000,
		MinNumberOfUnusedTopicsToPreserve:  3,
		MinNumberOfStoreVersionsToPreserve: 2,
		CoordinatorEndpoints:               []string{"localhost:2379"},
		MastershipJoinTimeout:              5 * time.Minute,
		OfflinePushWaitMs:                  5 * 60 * 1000,
		MinActiveReplicas:                  1,
		DelayedRebalanceMs:                 5 * 60 * 1000,
		VersionCleanupInterval:             10 * time.Minute,
		MigrationPollInterval:              10 * time.Second,
		DefaultReplicationFactor:           3,
	}
}

// BindFlags registers every config key as a persistent flag on cmd, with
// the default values from Defaults(), and maps each flag name onto a
// VENICE_ prefixed environment variable. Flags set explicitly on the
// command line always win over the environment.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	d := Defaults()
	flags := cmd.PersistentFlags()

	flags.String("controller-cluster-name", d.ControllerClusterName, "Name of the meta-cluster this controller process joins")
	flags.Int("controller-cluster-replica", d.ControllerClusterReplica, "Replica number of this controller within the meta-cluster")
	flags.Int("admin-port", d.AdminPort, "Admin RPC listen port")
	flags.Int("admin-secure-port", d.AdminSecurePort, "Plain-HTTP ops listen port (/metrics, /health, /ready, /live); no TLS is served")
	flags.String("data-dir", d.DataDir, "Directory for BoltDB metadata and per-cluster raft state")
	flags.String("kafka-bootstrap-servers", d.KafkaBootstrapServers, "Plaintext Kafka bootstrap addresses")
	flags.String("kafka-bootstrap-servers-tls", d.KafkaBootstrapServersTLS, "TLS Kafka bootstrap addresses")
	flags.Int64("deprecated-job-topic-retention-ms", d.DeprecatedJobTopicRetentionMs, "Retention set on a version topic to mark it deprecated")
	flags.Int64("deprecated-job-topic-max-retention-ms", d.DeprecatedJobTopicMaxRetentionMs, "Retention threshold below which a topic is considered truncated")
	flags.Int("min-unused-topics-to-preserve", d.MinNumberOfUnusedTopicsToPreserve, "Accepted for compatibility; the orphan version-topic sweep does not read it and deprecates every unused version topic")
	flags.Int("min-store-versions-to-preserve", d.MinNumberOfStoreVersionsToPreserve, "Minimum number of store versions retireOldStoreVersions preserves")
	flags.String("native-replication-source-fabric", d.NativeReplicationSourceFabric, "Source fabric for native replication pushes")
	flags.StringSlice("coordinator-endpoints", d.CoordinatorEndpoints, "Resource coordinator (etcd) endpoints")
	flags.Duration("mastership-join-timeout", d.MastershipJoinTimeout, "Timeout for a node to acquire cluster leadership")
	flags.StringSlice("managed-clusters", nil, "Clusters this controller process manages")
	flags.StringToString("cluster-controller-addrs", nil, "cluster=host:port admin RPC addresses of peer controllers")
	flags.Int64("offline-push-wait-ms", d.OfflinePushWaitMs, "Max time to wait for initial partition assignment on a new version")
	flags.Int("min-active-replicas", d.MinActiveReplicas, "Minimum active replicas the rebalancer maintains per partition")
	flags.Int64("delayed-rebalance-ms", d.DelayedRebalanceMs, "Delay before the rebalancer reassigns a dropped participant's partitions")
	flags.Duration("version-cleanup-interval", d.VersionCleanupInterval, "Interval between Store Backup Version Cleanup sweeps")
	flags.Duration("migration-poll-interval", d.MigrationPollInterval, "Interval between Store Migration Monitor polls")
	flags.Int("default-replication-factor", d.DefaultReplicationFactor, "Replication factor used when a store doesn't specify one")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

// Load reads flags, VENICE_ environment variables, and (if set) a YAML
// file at configPath into a Config. Precedence: flag > env > file > default.
func Load(v *viper.Viper, configPath string) (Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	cfg := Defaults()
	cfg.ControllerClusterName = v.GetString("controller-cluster-name")
	cfg.ControllerClusterReplica = v.GetInt("controller-cluster-replica")
	cfg.AdminPort = v.GetInt("admin-port")
	cfg.AdminSecurePort = v.GetInt("admin-secure-port")
	cfg.DataDir = v.GetString("data-dir")
	cfg.KafkaBootstrapServers = v.GetString("kafka-bootstrap-servers")
	cfg.KafkaBootstrapServersTLS = v.GetString("kafka-bootstrap-servers-tls")
	cfg.DeprecatedJobTopicRetentionMs = v.GetInt64("deprecated-job-topic-retention-ms")
	cfg.DeprecatedJobTopicMaxRetentionMs = v.GetInt64("deprecated-job-topic-max-retention-ms")
	cfg.MinNumberOfUnusedTopicsToPreserve = v.GetInt("min-unused-topics-to-preserve")
	cfg.MinNumberOfStoreVersionsToPreserve = v.GetInt("min-store-versions-to-preserve")
	cfg.NativeReplicationSourceFabric = v.GetString("native-replication-source-fabric")
	if endpoints := v.GetStringSlice("coordinator-endpoints"); len(endpoints) > 0 {
		cfg.CoordinatorEndpoints = endpoints
	}
	cfg.MastershipJoinTimeout = v.GetDuration("mastership-join-timeout")
	cfg.ManagedClusters = v.GetStringSlice("managed-clusters")
	cfg.ClusterControllerAddrs = v.GetStringMapString("cluster-controller-addrs")
	cfg.OfflinePushWaitMs = v.GetInt64("offline-push-wait-ms")
	cfg.MinActiveReplicas = v.GetInt("min-active-replicas")
	cfg.DelayedRebalanceMs = v.GetInt64("delayed-rebalance-ms")
	cfg.VersionCleanupInterval = v.GetDuration("version-cleanup-interval")
	cfg.MigrationPollInterval = v.GetDuration("migration-poll-interval")
	cfg.DefaultReplicationFactor = v.GetInt("default-replication-factor")

	return cfg, nil
}
