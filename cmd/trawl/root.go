package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "trawl",
	Short: "Trawl - analytics project CSV exporter",
	Long: `Trawl exports analytics projects to CSV files.

It walks a project's experiments and datasets through the paginated
records API and streams each entity into its own CSV file. Rate limits
and transient API failures are retried with exponential backoff, and a
single entity's failure never aborts the rest of the run.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "trawl.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
