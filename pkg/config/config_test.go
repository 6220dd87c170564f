package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoundViper(t *testing.T) (*cobra.Command, *viper.Viper) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	BindFlags(cmd, v)
	return cmd, v
}

func TestLoadDefaults(t *testing.T) {
	_, v := newBoundViper(t)

	cfg, err := Load(v, "")
	require.NoError(t, err)

	d := Defaults()
	assert.Equal(t, d.AdminPort, cfg.AdminPort)
	assert.Equal(t, d.DeprecatedJobTopicRetentionMs, cfg.DeprecatedJobTopicRetentionMs)
	assert.Equal(t, d.DeprecatedJobTopicMaxRetentionMs, cfg.DeprecatedJobTopicMaxRetentionMs)
	assert.Equal(t, d.MinNumberOfStoreVersionsToPreserve, cfg.MinNumberOfStoreVersionsToPreserve)
	assert.Equal(t, d.MastershipJoinTimeout, cfg.MastershipJoinTimeout)
	assert.Equal(t, d.CoordinatorEndpoints, cfg.CoordinatorEndpoints)
	assert.Equal(t, d.MigrationPollInterval, cfg.MigrationPollInterval)
	assert.Equal(t, d.DefaultReplicationFactor, cfg.DefaultReplicationFactor)
	assert.Empty(t, cfg.ManagedClusters)
}

func TestLoadFlagsWinOverDefaults(t *testing.T) {
	cmd, v := newBoundViper(t)
	require.NoError(t, cmd.PersistentFlags().Set("admin-port", "9999"))
	require.NoError(t, cmd.PersistentFlags().Set("managed-clusters", "cluster-a,cluster-b"))
	require.NoError(t, cmd.PersistentFlags().Set("mastership-join-timeout", "30s"))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.AdminPort)
	assert.Equal(t, []string{"cluster-a", "cluster-b"}, cfg.ManagedClusters)
	assert.Equal(t, 30*time.Second, cfg.MastershipJoinTimeout)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("VENICE_KAFKA_BOOTSTRAP_SERVERS", "broker-1:9092,broker-2:9092")

	_, v := newBoundViper(t)
	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "broker-1:9092,broker-2:9092", cfg.KafkaBootstrapServers)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller.yaml")
	require.NoError(t, os.WriteFile(path, []byte("controller-cluster-name: venice-controllers\nadmin-port: 8085\n"), 0644))

	_, v := newBoundViper(t)
	cfg, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, "venice-controllers", cfg.ControllerClusterName)
	assert.Equal(t, 8085, cfg.AdminPort)
}
