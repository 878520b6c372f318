// Package main provides the entry point for the scopecrawl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for scopecrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scopecrawl",
		Short: "Scoped web crawler and content classifier for threat-intelligence triage",
		Long: `scopecrawl crawls a site from a seed URL within configurable depth and page
bounds, streams one NDJSON record per fetched page, and optionally classifies
each page with lightweight content heuristics (marketplace, forum, paste site,
login page, language).

.onion seeds are routed through a Tor SOCKS5 proxy. By default an external
proxy at 127.0.0.1:9050 is used; --embedded-tor starts a bundled Tor daemon
instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewTagCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
