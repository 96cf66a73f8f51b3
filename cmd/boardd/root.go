package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "boardd",
	Short: "Live UK rail departure boards",
	Long: `boardd polls the National Rail live departure board service for each
configured route, writes a text board and renders it as classic and
modern images.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", envOr("CONFIG_PATH", "./config/config.yaml"), "path to the configuration file")
	rootCmd.AddCommand(serveCmd, previewCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
