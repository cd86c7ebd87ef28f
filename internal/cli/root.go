// Package cli provides the command-line interface for ctxcompress.
package cli

import (
	"github.com/raphaelgruber/ctxcompress/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, loaded from the environment before each command
	cfg config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ctxcompress",
	Short: "Compress document corpora per question with a remote service",
	Long: `ctxcompress builds one context from a directory of documents and, for every
question in a JSON Lines file, asks a compression service to extract the
supporting facts. Results are written as JSON Lines as they complete.

Requests are spread round-robin across N service endpoints with at most N
requests in flight at a time.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
