package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/cuemby/venice/pkg/config"
	"github.com/cuemby/venice/pkg/controllerclient"
	"github.com/cuemby/venice/pkg/coordinator"
	"github.com/cuemby/venice/pkg/events"
	"github.com/cuemby/venice/pkg/lifecycle"
	"github.com/cuemby/venice/pkg/log"
	"github.com/cuemby/venice/pkg/mastership"
	"github.com/cuemby/venice/pkg/metrics"
	"github.com/cuemby/venice/pkg/monitor"
	"github.com/cuemby/venice/pkg/pushstatus"
	"github.com/cuemby/venice/pkg/storage"
	"github.com/cuemby/venice/pkg/topics"
	"github.com/cuemby/venice/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var v = viper.New()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "venice-controller",
	Short: "Venice cluster controller",
	Long: `The Venice cluster controller owns store metadata for its managed
clusters: it sequences every store and version mutation through an elected
leader, provisions the Kafka topics and coordinator resources backing each
push, and reconciles cross-cluster store migrations.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Venice controller version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("node-id", "", "Unique ID of this controller node (defaults to hostname)")
	rootCmd.PersistentFlags().String("raft-bind-addr", "127.0.0.1:7077", "Base address for per-cluster raft transports")
	config.BindFlags(rootCmd, v)

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(v, configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if len(cfg.ManagedClusters) == 0 {
			return fmt.Errorf("at least one --managed-clusters entry is required")
		}

		nodeID, _ := cmd.Flags().GetString("node-id")
		if nodeID == "" {
			nodeID, _ = os.Hostname()
		}
		raftBindAddr, _ := cmd.Flags().GetString("raft-bind-addr")

		return run(cfg, nodeID, raftBindAddr)
	},
}

func run(cfg config.Config, nodeID, raftBindAddr string) error {
	logger := log.WithComponent("controller")
	metrics.SetVersion(Version)

	metadata, err := storage.NewBoltMetadataStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	defer metadata.Close()
	metrics.RegisterComponent("storage", true, "")

	mastershipCtl := mastership.NewController(nodeID, cfg.DataDir, cfg.MastershipJoinTimeout)
	for i, cluster := range cfg.ManagedClusters {
		bindAddr, err := offsetAddr(raftBindAddr, i)
		if err != nil {
			return err
		}
		if err := mastershipCtl.Start(cluster, bindAddr, nil); err != nil {
			return fmt.Errorf("starting mastership for %s: %w", cluster, err)
		}
		defer mastershipCtl.Stop(cluster)
	}
	metrics.RegisterComponent("mastership", true, "")

	coord, err := coordinator.NewEtcdCoordinator(cfg.CoordinatorEndpoints, 10*time.Second, nodeID)
	if err != nil {
		return fmt.Errorf("dialing resource coordinator: %w", err)
	}
	defer coord.Close()

	brokers := strings.Split(cfg.KafkaBootstrapServers, ",")
	topicMgr, err := topics.NewKafkaManager(brokers)
	if err != nil {
		return fmt.Errorf("dialing kafka: %w", err)
	}
	defer topicMgr.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	engine := lifecycle.New(lifecycle.Dependencies{
		Metadata:    metadata,
		Coordinator: coord,
		Topics:      topicMgr,
		Mastership:  mastershipCtl,
		Events:      broker,
		Dial: func(cluster string) (controllerclient.Client, error) {
			addr, ok := cfg.ClusterControllerAddrs[cluster]
			if !ok {
				return nil, fmt.Errorf("no controller address configured for cluster %s", cluster)
			}
			return controllerclient.Dial(addr, 10*time.Second)
		},
	}, lifecycle.Settings{
		OfflinePushWaitMs:                  cfg.OfflinePushWaitMs,
		MinActiveReplicas:                  cfg.MinActiveReplicas,
		DelayedRebalanceMs:                 cfg.DelayedRebalanceMs,
		MinNumberOfStoreVersionsToPreserve: cfg.MinNumberOfStoreVersionsToPreserve,
		DeprecatedTopicRetentionMs:         cfg.DeprecatedJobTopicRetentionMs,
		DeprecatedTopicMaxRetentionMs:      cfg.DeprecatedJobTopicMaxRetentionMs,
		DefaultReplicationFactor:           cfg.DefaultReplicationFactor,
	})

	statusWriter := pushstatus.NewWriter(brokers, types.PushJobStatusTopic)
	defer statusWriter.Close()

	migrationMonitor := monitor.NewMigrationMonitor(metadata, mastershipCtl, broker, cfg.MigrationPollInterval)
	migrationMonitor.Start()
	defer migrationMonitor.Stop()

	for _, cluster := range cfg.ManagedClusters {
		cleanup := monitor.NewBackupVersionCleanup(cluster, metadata, mastershipCtl, engine.RetireOldStoreVersions, cfg.VersionCleanupInterval)
		cleanup.Start()
		defer cleanup.Stop()
	}

	collector := metrics.NewCollector(metadata, mastershipCtl, cfg.ManagedClusters)
	collector.Start()
	defer collector.Stop()

	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.AdminPort))
	if err != nil {
		return fmt.Errorf("listening on admin port: %w", err)
	}
	grpcServer := grpc.NewServer()
	controllerclient.RegisterServer(grpcServer, engine)
	go func() {
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error().Err(err).Msg("admin RPC server exited")
		}
	}()
	defer grpcServer.GracefulStop()
	metrics.RegisterComponent("api", true, "")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.AdminSecurePort), Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("ops HTTP server exited")
		}
	}()
	defer httpServer.Close()

	// Surface lifecycle events in the controller log so operators can
	// follow mutations without a metrics pipeline.
	eventSub := broker.Subscribe()
	defer eventSub.Cancel()
	go func() {
		for ev := range eventSub.C {
			logger.Info().Str("event", string(ev.Type)).Fields(map[string]interface{}{"metadata": ev.Metadata}).Msg(ev.Message)
		}
	}()

	logger.Info().
		Str("node_id", nodeID).
		Strs("managed_clusters", cfg.ManagedClusters).
		Int("admin_port", cfg.AdminPort).
		Msg("venice controller started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")
	return nil
}

// offsetAddr derives the raft bind address for the i-th managed cluster by
// offsetting the configured base port, since each cluster runs its own
// raft transport.
func offsetAddr(base string, i int) (string, error) {
	host, port, err := net.SplitHostPort(base)
	if err != nil {
		return "", fmt.Errorf("parsing raft bind address %q: %w", base, err)
	}
	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return "", fmt.Errorf("parsing raft bind port %q: %w", port, err)
	}
	return net.JoinHostPort(host, fmt.Sprintf("%d", p+i)), nil
}
