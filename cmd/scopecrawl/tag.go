package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/scopecrawl/scopecrawl/internal/log"
	"github.com/scopecrawl/scopecrawl/internal/report"
	"github.com/scopecrawl/scopecrawl/internal/tagger"
)

// NewTagCmd creates the tag command.
func NewTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag <results.ndjson>",
		Short: "Re-classify pages in an existing NDJSON results file",
		Long: `Tag reads an NDJSON results file produced by a previous crawl, runs the
content heuristics over each page's stored text snapshot, and writes the
stream back with updated tags. The original crawl data is never refetched.

This lets heuristics evolve without re-crawling: tag a week-old capture with
today's rules.

Examples:
  # Re-tag in place of stdout
  scopecrawl tag results.ndjson

  # Re-tag to a new file, skipping blocklisted URLs
  scopecrawl tag --blocklist patterns.yaml -o retagged.ndjson results.ndjson`,
		Args: cobra.ExactArgs(1),
		RunE: runTagCmd,
	}

	cmd.Flags().String("blocklist", "",
		"YAML file of URL patterns; matching pages get no tags")
	cmd.Flags().StringP("output", "o", "",
		"Write the re-tagged NDJSON stream to this file instead of stdout")

	return cmd
}

// runTagCmd executes the tag command.
func runTagCmd(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	blocklistFile, err := cmd.Flags().GetString("blocklist")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	logger := log.NewLogger(os.Stderr, getVerboseFlag(cmd))
	slog.SetDefault(logger)

	input, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open results file: %w", err)
	}
	defer input.Close()

	pages, summary, err := report.ReadResults(input)
	if err != nil {
		return fmt.Errorf("failed to read results from %s: %w", inputPath, err)
	}

	taggerOpts := []tagger.TaggerOption{tagger.WithLogger(logger)}
	if blocklistFile != "" {
		blocklist, err := tagger.LoadBlocklist(blocklistFile)
		if err != nil {
			return fmt.Errorf("failed to load blocklist %s: %w", blocklistFile, err)
		}
		taggerOpts = append(taggerOpts, tagger.WithBlocklist(blocklist))
	}
	pageTagger := tagger.NewTagger(taggerOpts...)

	var output io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		f, err := createOutputFile(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	writer := report.NewNDJSONWriter(output)
	for _, r := range pages {
		r.Tags = pageTagger.Tag(r)
		if err := writer.WriteResult(r); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	if summary != nil {
		if err := writer.WriteSummary(summary); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	printTagSummary(cmd, pageTagger, len(pages))
	return nil
}

// printTagSummary prints tag counts to stderr so the NDJSON stream on stdout
// stays machine-readable.
func printTagSummary(cmd *cobra.Command, pageTagger *tagger.Tagger, total int) {
	counts := pageTagger.Summary()
	if len(counts) == 0 {
		return
	}

	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})

	fmt.Fprintf(cmd.ErrOrStderr(), "Tagged %d pages:\n", total)
	for _, tag := range tags {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %-20s %d\n", tag, counts[tag])
	}
}
