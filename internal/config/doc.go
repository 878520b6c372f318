// Package config provides configuration structures and utilities for the
// crawler. It defines the crawl limits, network settings, and output
// preferences, plus the optional .scopecrawl file with per-site overrides.
package config
