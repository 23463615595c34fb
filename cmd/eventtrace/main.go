// Package main implements the eventtrace CLI, a host simulator that runs one
// handler invocation per call.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the process settings file
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eventtrace",
	Short: "Run telemetry correlation handlers outside the host",
	Long: `eventtrace runs the telemetry correlation pipeline for a business event
the way the host platform would, and prints the resulting output parameters.

Process settings (logging, telemetry) come from a YAML file and
EVENTTRACE_* environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "eventtrace.yaml", "process settings file")
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the eventtrace version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}
