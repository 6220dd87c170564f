/*
Package config loads the Venice cluster controller's environment-agnostic
property map through viper: flags, VENICE_-prefixed environment variables,
and an optional YAML file, layered in that order of precedence.

This mirrors the flag/env binding idiom used in the retrieval pack's own
cobra-based CLIs (env vars override unset flags, flags override everything
else), generalized here to also accept a config file for static deployment
properties such as coordinator endpoints and Kafka bootstrap addresses.

# Usage

	v := viper.New()
	config.BindFlags(rootCmd, v)

	cobra.OnInitialize(func() {
		cfg, err := config.Load(v, configFilePath)
		if err != nil {
			log.Logger.Fatal().Err(err).Msg("failed to load configuration")
		}
	})

# Recognized Keys

controller-cluster-name, controller-cluster-replica, admin-port,
admin-secure-port, data-dir, kafka-bootstrap-servers,
kafka-bootstrap-servers-tls, deprecated-job-topic-retention-ms,
deprecated-job-topic-max-retention-ms, min-unused-topics-to-preserve,
min-store-versions-to-preserve, native-replication-source-fabric,
coordinator-endpoints, mastership-join-timeout, managed-clusters,
cluster-controller-addrs, offline-push-wait-ms, min-active-replicas,
delayed-rebalance-ms, version-cleanup-interval, migration-poll-interval,
default-replication-factor.

# Precedence

Flag > environment variable (VENICE_<KEY>, dashes become underscores) >
YAML file > built-in default. A flag left at its zero value is treated as
unset only when the caller never passed it on the command line; viper's
BindPFlag semantics handle this automatically.

# See Also

  - pkg/log for the logging configuration this package feeds into Init
  - cmd/venice-controller for where BindFlags/Load are wired at startup
*/
package config
