package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sharedbox/sharedbox/internal/config"
)

func newFetchCmd() *cobra.Command {
	var (
		configPath string
		debugMode  bool
		cursors    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one page of the aggregated feed and print it as JSON",
		Long: `Fetch the next page of mail from every stored account, merge the
results into one date-ordered feed and print it to stdout as JSON.

Page cursors from a previous run can be passed per account with
--cursor to continue where that run left off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), configPath, debugMode, cursors)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration file. Defaults to ~/.config/sharedbox/config.yaml.")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging.")
	cmd.Flags().StringToStringVar(&cursors, "cursor", nil, "Per-account page cursor, as accountKey=cursor. Repeatable.")

	return cmd
}

func runFetch(ctx context.Context, configPath string, debugMode bool, cursors map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	app, err := buildApplication(ctx, configPath, debugMode, false)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	accounts, err := app.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}

	result, err := app.engine.FetchAll(ctx, accounts, cursors)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
