// Package cli is the cobra driving adapter. The serve command wires the
// whole service together; the other commands are thin HTTP clients of a
// running server.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/hivemind/internal/logger"
)

var (
	// configPath is the TOML config file location.
	configPath string
	// verbose enables debug logging.
	verbose bool
	// serverURL is the API address client commands talk to.
	serverURL string
	// workspace is the workspace id client commands act on.
	workspace string
	// actingUser is the user id recorded on triggered work.
	actingUser string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hivemind",
	Short: "Workspace knowledge sync and retrieval service",
	Long: `Hivemind syncs content from connected providers (GitHub, Slack, Notion)
into a canonical searchable store, embeds it for semantic search and
answers questions over it.

Examples:
  # Run the API server, sync workers and scheduler
  hivemind serve

  # Trigger an incremental sync for a workspace
  hivemind sync --workspace ws-1

  # Search the workspace
  hivemind search --workspace ws-1 "deploy runbook"

  # Ask a question over the synced content
  hivemind ask --workspace ws-1 "how do we roll back a deploy?"`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load() // silently ignore a missing .env
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "API server address for client commands")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace id")
	rootCmd.PersistentFlags().StringVarP(&actingUser, "user", "u", "cli", "Acting user id")
}
