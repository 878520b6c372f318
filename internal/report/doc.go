// Package report writes crawl results to their output formats.
//
// The primary format is NDJSON: one JSON object per completed page, streamed
// as the crawl progresses, followed by a single summary record. A Markdown
// writer renders a human-readable run report for sharing.
package report
