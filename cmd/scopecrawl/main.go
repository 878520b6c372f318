// Package main provides the entry point for the scopecrawl CLI.
//
// scopecrawl is a scoped web crawler and content classifier for
// threat-intelligence triage. It maps a site from a seed URL within depth
// and page bounds, emits one NDJSON record per page, and optionally tags
// pages with content heuristics (marketplace, forum, paste site, login
// page, language).
//
// Usage:
//
//	scopecrawl crawl http://example.com/
//	scopecrawl crawl --tag --max_depth 2 http://exampleonion.onion/
//
// See --help for all available options.
package main

// main is the entry point for scopecrawl.
func main() {
	Execute()
}
