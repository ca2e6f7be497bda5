// Package cmd implements the command-line interface for sharedbox.
//
// This package provides the following commands:
//   - serve: Start the HTTP API server that aggregates mail across accounts
//   - fetch: Fetch one page of the aggregated feed and print it as JSON
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
