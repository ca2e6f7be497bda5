package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the sharedbox application
var rootCmd = &cobra.Command{
	Use:   "sharedbox",
	Short: "Aggregates mail from IMAP, Gmail and Microsoft accounts into one feed",
	Long: `sharedbox merges the inboxes of any number of IMAP, Gmail and
Microsoft accounts into a single date-ordered feed with per-account
pagination, and keeps the accounts' OAuth tokens refreshed.

It can run as:
  - An HTTP API server (serve)
  - A one-shot feed fetch printed to stdout (fetch)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "sharedbox version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newVersionCmd())
}
