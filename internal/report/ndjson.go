package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/scopecrawl/scopecrawl/internal/model"
)

// NDJSONWriter streams page records as newline-delimited JSON. Each record
// is written and flushed as it arrives, so downstream consumers see results
// while the crawl is still running.
type NDJSONWriter struct {
	enc *json.Encoder
}

// NewNDJSONWriter creates a writer that streams to the given output.
func NewNDJSONWriter(output io.Writer) *NDJSONWriter {
	return &NDJSONWriter{enc: json.NewEncoder(output)}
}

// WriteResult writes one page record as a single JSON line.
func (w *NDJSONWriter) WriteResult(r *model.PageResult) error {
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode page record: %w", err)
	}
	return nil
}

// summaryRecord wraps the summary so consumers can tell the final line apart
// from page records.
type summaryRecord struct {
	Summary *model.CrawlSummary `json:"summary"`
}

// WriteSummary writes the final summary record. It must be called exactly
// once, after the last page record.
func (w *NDJSONWriter) WriteSummary(s *model.CrawlSummary) error {
	if err := w.enc.Encode(summaryRecord{Summary: s}); err != nil {
		return fmt.Errorf("failed to encode summary record: %w", err)
	}
	return nil
}

// ReadResults parses an NDJSON stream produced by NDJSONWriter and returns
// the page records and, when present, the trailing summary. Blank lines are
// skipped so hand-edited files still parse.
func ReadResults(input io.Reader) ([]*model.PageResult, *model.CrawlSummary, error) {
	var (
		results []*model.PageResult
		summary *model.CrawlSummary
	)

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var wrapper summaryRecord
		if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Summary != nil {
			summary = wrapper.Summary
			continue
		}

		var r model.PageResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, nil, fmt.Errorf("invalid NDJSON record on line %d: %w", line, err)
		}
		results = append(results, &r)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read NDJSON stream: %w", err)
	}

	return results, summary, nil
}
