package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scopecrawl/scopecrawl/internal/config"
	"github.com/scopecrawl/scopecrawl/internal/database"
)

// NewRunsCmd creates the runs command.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List crawl runs stored in the database",
		Long: `Runs lists the crawl runs persisted with "crawl --db", newest first.

Examples:
  # List stored runs
  scopecrawl runs

  # Use a database in a non-default directory
  scopecrawl runs --db-dir /data/scopecrawl`,
		RunE: runRunsCmd,
	}

	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runRunsCmd executes the runs command.
func runRunsCmd(cmd *cobra.Command, _ []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open database in %s (run a crawl with --db first): %w", dbDir, err)
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored runs.")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-25s %-8s %-16s %s\n",
		"ID", "STARTED", "PAGES", "REASON", "SEED")
	for _, run := range runs {
		reason := run.Reason
		if reason == "" {
			reason = "(unfinished)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-6d %-25s %-8d %-16s %s\n",
			run.ID,
			run.StartedAt.Local().Format(time.RFC3339),
			run.TotalPages,
			reason,
			run.SeedURL,
		)
	}
	return nil
}
