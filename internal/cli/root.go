// Package cli holds the warp command tree: the web server, schema setup
// and password hashing.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "warp",
		Short:         "Desk and seat booking server",
		Long:          "warp serves the seat booking web app and its JSON API. Settings come from WARP_* environment variables or the YAML file named by WARP_CONFIG_FILE.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		newServeCmd(),
		newInitDBCmd(),
		newHashPasswordCmd(),
	)
	return rootCmd
}
