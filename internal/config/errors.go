package config

import "errors"

// Configuration validation errors.
//
// Design decision: We use package-level sentinel errors rather than creating
// new error instances in Validate(). This allows callers to use errors.Is()
// for programmatic handling while still providing readable messages.
var (
	// ErrNoSeedURL is returned when no start URL is specified.
	ErrNoSeedURL = errors.New("no seed specified: provide a start URL")

	// ErrInvalidSeedURL is returned when the start URL cannot be parsed or
	// uses a scheme other than http/https.
	ErrInvalidSeedURL = errors.New("invalid seed: start URL must be an absolute http(s) URL")

	// ErrInvalidTimeout is returned when the per-request timeout is not
	// positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	// A pool of zero workers would never fetch anything.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidMaxDepth is returned when the depth ceiling is negative.
	// Zero is valid and crawls only the seed.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page ceiling is negative.
	// Zero is valid and produces an empty crawl.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidDeadline is returned when the overall crawl deadline is
	// negative. Zero means no deadline.
	ErrInvalidDeadline = errors.New("invalid deadline: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body-size cap is negative.
	// Zero means use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
