// Package cmd defines the CLI commands for the slidehost executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "slidehost",
	Short: "Deep Zoom tile host with third-party algorithm integration",
	Long: `slidehost serves a large image as a Deep Zoom tile pyramid and hands it to
an external algorithm worker for asynchronous processing.

On startup it loads the image, computes the pyramid geometry, and (unless
disabled) dispatches a run descriptor to the configured worker. The worker
pulls tiles from this host and reports progress back on a callback URL until
the run completes or fails.`,
}

// Execute runs the root command. It is called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none, built-in defaults + SLIDEHOST_ env)")
	rootCmd.AddCommand(newServeCmd())
}
