package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "assetstore",
	Short: "Image asset store with deferred object cleanup",
	Long: `Stores uploaded images in object storage with metadata in Postgres.
Deleting an image removes its metadata at once and queues the stored object
for a background cleanup worker.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
