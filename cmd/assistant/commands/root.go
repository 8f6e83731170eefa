package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "assistant",
	Short:        "Chunked audio ingestion and reconciliation service",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.assistant/config.yaml)")

	rootCmd.PersistentFlags().String("storage-backend", "", "storage backend: s3 or simulated")
	if err := viper.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("storage-backend")); err != nil {
		fmt.Fprintln(os.Stderr, "failed to bind flag:", err)
		os.Exit(1)
	}
}
