package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/venice/pkg/controllerclient"
	"github.com/cuemby/venice/pkg/types"
)

var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "venice-admin",
	Short:   "Operator CLI for the Venice cluster controller",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("controller", "127.0.0.1:7075", "Admin RPC address of a Venice controller")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "RPC timeout")

	storeCmd.AddCommand(storeDescribeCmd)
	storeCmd.AddCommand(storeSchemasCmd)
	rootCmd.AddCommand(storeCmd)
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect stores",
}

func fetchSnapshot(cmd *cobra.Command, storeName string) (*types.StoreSnapshot, error) {
	addr, _ := cmd.Flags().GetString("controller")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	client, err := controllerclient.Dial(addr, timeout)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return client.GetStoreSnapshot(ctx, storeName)
}

var storeDescribeCmd = &cobra.Command{
	Use:   "describe <store>",
	Short: "Print a store's full metadata as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, err := fetchSnapshot(cmd, args[0])
		if err != nil {
			return err
		}

		out := struct {
			Cluster  string         `yaml:"cluster"`
			Store    *types.Store   `yaml:"store"`
			Versions map[int]string `yaml:"versions,omitempty"`
		}{
			Cluster: snapshot.RetrievedFrom,
			Store:   snapshot.Store,
		}
		if len(snapshot.Store.Versions) > 0 {
			out.Versions = make(map[int]string, len(snapshot.Store.Versions))
			for _, v := range snapshot.Store.Versions {
				out.Versions[v.Number] = string(v.Status)
			}
		}

		return yaml.NewEncoder(os.Stdout).Encode(out)
	},
}

var storeSchemasCmd = &cobra.Command{
	Use:   "schemas <store>",
	Short: "Print a store's key schema and value schema history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, err := fetchSnapshot(cmd, args[0])
		if err != nil {
			return err
		}

		out := struct {
			KeySchema    *types.KeySchemaEntry     `yaml:"keySchema,omitempty"`
			ValueSchemas []*types.ValueSchemaEntry `yaml:"valueSchemas,omitempty"`
		}{snapshot.KeySchema, snapshot.ValueSchemas}

		return yaml.NewEncoder(os.Stdout).Encode(out)
	},
}
