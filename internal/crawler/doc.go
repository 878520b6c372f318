// Package crawler implements the concurrent, depth- and page-bounded crawl
// engine: the frontier (deduplicated work queue), the worker scheduler, the
// HTTP fetcher, and the HTML link extractor.
//
// The engine traverses the link graph reachable from a single seed URL under
// strict resource limits: maximum depth, maximum total pages, fixed worker
// concurrency, a per-request timeout, and an overall deadline. Completed
// pages are streamed to a result channel in completion order; there is no
// ordering guarantee between pages, but each result carries a monotonically
// increasing ordinal.
//
// Shared mutable state (visited set, queue, budget counters) lives entirely
// inside the Frontier and is mutated under its lock. Workers hold a task only
// for one fetch+extract cycle. Per-task failures never escape a worker; they
// become the error field of that page's result.
package crawler
