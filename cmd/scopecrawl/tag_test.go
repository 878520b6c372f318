package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scopecrawl/scopecrawl/internal/model"
	"github.com/scopecrawl/scopecrawl/internal/report"
)

// writeResultsFile writes an NDJSON results file for tag command tests.
func writeResultsFile(t *testing.T, pages []*model.PageResult, summary *model.CrawlSummary) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "results.ndjson")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create results file: %v", err)
	}
	defer f.Close()

	writer := report.NewNDJSONWriter(f)
	for _, r := range pages {
		if err := writer.WriteResult(r); err != nil {
			t.Fatalf("failed to write result: %v", err)
		}
	}
	if summary != nil {
		if err := writer.WriteSummary(summary); err != nil {
			t.Fatalf("failed to write summary: %v", err)
		}
	}
	return path
}

// runTagCommand runs the tag subcommand through the root command.
func runTagCommand(t *testing.T, args ...string) error {
	t.Helper()

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"tag"}, args...))
	return cmd.Execute()
}

// TestTagCmd tests offline re-tagging of stored results.
func TestTagCmd(t *testing.T) {
	t.Parallel()

	marketplacePage := func(url string) *model.PageResult {
		return &model.PageResult{
			URL:        url,
			StatusCode: 200,
			Title:      "Shop",
			Snapshot:   "our vendors offer escrow on every order, add to cart to keep shopping in the marketplace",
			FetchedAt:  time.Now().UTC(),
			Discovered: 1,
		}
	}

	t.Run("retags pages and preserves summary", func(t *testing.T) {
		t.Parallel()

		summary := &model.CrawlSummary{TotalPages: 1, Successful: 1, Reason: model.TerminationExhausted}
		inPath := writeResultsFile(t, []*model.PageResult{marketplacePage("http://example.com/")}, summary)
		outPath := filepath.Join(t.TempDir(), "retagged.ndjson")

		if err := runTagCommand(t, "-o", outPath, inPath); err != nil {
			t.Fatalf("tag failed: %v", err)
		}

		f, err := os.Open(outPath)
		if err != nil {
			t.Fatalf("output file missing: %v", err)
		}
		defer f.Close()

		pages, gotSummary, err := report.ReadResults(f)
		if err != nil {
			t.Fatalf("output is not valid NDJSON: %v", err)
		}
		if len(pages) != 1 {
			t.Fatalf("expected 1 page, got %d", len(pages))
		}

		found := false
		for _, tag := range pages[0].Tags {
			if tag == "marketplace" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected marketplace tag, got %v", pages[0].Tags)
		}

		if gotSummary == nil || gotSummary.TotalPages != 1 {
			t.Errorf("summary not preserved: %+v", gotSummary)
		}
	})

	t.Run("blocklisted pages get no tags", func(t *testing.T) {
		t.Parallel()

		blocklistPath := filepath.Join(t.TempDir(), "blocklist.yaml")
		if err := os.WriteFile(blocklistPath, []byte("patterns:\n  - 'example\\.com'\n"), 0o600); err != nil {
			t.Fatalf("failed to write blocklist: %v", err)
		}

		inPath := writeResultsFile(t, []*model.PageResult{marketplacePage("http://example.com/")}, nil)
		outPath := filepath.Join(t.TempDir(), "retagged.ndjson")

		if err := runTagCommand(t, "--blocklist", blocklistPath, "-o", outPath, inPath); err != nil {
			t.Fatalf("tag failed: %v", err)
		}

		f, err := os.Open(outPath)
		if err != nil {
			t.Fatalf("output file missing: %v", err)
		}
		defer f.Close()

		pages, _, err := report.ReadResults(f)
		if err != nil {
			t.Fatalf("output is not valid NDJSON: %v", err)
		}
		if len(pages[0].Tags) != 0 {
			t.Errorf("expected no tags for blocklisted page, got %v", pages[0].Tags)
		}
	})

	t.Run("missing input file is an error", func(t *testing.T) {
		t.Parallel()

		if err := runTagCommand(t, filepath.Join(t.TempDir(), "missing.ndjson")); err == nil {
			t.Error("expected error for missing input file")
		}
	})

	t.Run("malformed input is an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.ndjson")
		if err := os.WriteFile(path, []byte("this is not json\n"), 0o600); err != nil {
			t.Fatalf("failed to write input: %v", err)
		}
		if err := runTagCommand(t, path); err == nil {
			t.Error("expected error for malformed input")
		}
	})
}
