package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. The crawl limits follow common triage
// practice: deep enough to map a site, bounded enough to finish.
const (
	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// 127.0.0.1 instead of localhost avoids IPv6 resolution surprises.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTimeout is the per-request timeout. Generous because onion
	// targets answer through multiple relay hops.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxDepth bounds link-following distance from the seed.
	DefaultMaxDepth = 3

	// DefaultMaxPages bounds the total page count per crawl, preventing
	// runaway crawls of large or infinitely-generating sites.
	DefaultMaxPages = 8000

	// DefaultWorkers is the fixed worker pool size.
	DefaultWorkers = 10

	// DefaultUserAgent identifies the crawler in HTTP requests. A
	// descriptive User-Agent lets operators recognize the traffic.
	DefaultUserAgent = "scopecrawl/1.0 (+https://github.com/scopecrawl/scopecrawl)"

	// DefaultMaxBodySize caps response bodies at 5MB, plenty for HTML
	// while preventing memory exhaustion.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultTorStartupTimeout is how long the embedded Tor daemon may
	// take to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is used for XDG directory paths.
	AppName = "scopecrawl"
)

// Config holds all options for a crawl run. It is populated from CLI flags
// and the optional .scopecrawl file, then passed through the application via
// dependency injection rather than global state.
type Config struct {
	// SeedURL is the absolute URL the crawl starts from.
	SeedURL string

	// MaxDepth is the maximum link distance from the seed. The seed is
	// depth 0; zero crawls only the seed.
	MaxDepth int

	// MaxPages is the total page budget for the crawl. Zero is accepted
	// and yields an empty crawl.
	MaxPages int

	// Workers is the fixed number of concurrent fetch workers.
	Workers int

	// Timeout bounds each individual HTTP request.
	Timeout time.Duration

	// Deadline bounds the whole crawl. Zero means unbounded; the crawl
	// ends when the graph or the page budget is exhausted.
	Deadline time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// TorProxyAddress is the SOCKS5 proxy for .onion targets, in
	// "host:port" format.
	TorProxyAddress string

	// UseEmbeddedTor starts an embedded Tor daemon instead of expecting
	// an external one at TorProxyAddress.
	UseEmbeddedTor bool

	// TorStartupTimeout bounds the embedded daemon's bootstrap.
	TorStartupTimeout time.Duration

	// RespectRobots enables the robots.txt offer policy.
	RespectRobots bool

	// Tag enables inline classification of each page as it is emitted.
	Tag bool

	// BlocklistFile is the YAML file of URL patterns to never crawl.
	BlocklistFile string

	// OutputFile receives the NDJSON stream. Empty means stdout.
	OutputFile string

	// MarkdownFile receives the Markdown run report. Empty disables it.
	MarkdownFile string

	// DBDir is the directory of the SQLite database. When set, results
	// are persisted for historical queries. Defaults to the XDG data dir
	// when persistence is requested without a path.
	DBDir string

	// SaveToDB persists the run to the database.
	SaveToDB bool

	// MaxBodySize caps response bodies in bytes. Zero uses the default.
	MaxBodySize int64

	// Verbose enables debug-level log output.
	Verbose bool

	// ConfigFilePath is an explicit .scopecrawl location. Empty triggers
	// the usual search in the working and home directories.
	ConfigFilePath string

	// SiteConfigs holds per-site overrides loaded from the config file.
	SiteConfigs *File
}

// NewConfig creates a Config with default values. Many defaults are
// non-zero, so relying on zero values would be wrong; the constructor also
// documents what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxDepth:          DefaultMaxDepth,
		MaxPages:          DefaultMaxPages,
		Workers:           DefaultWorkers,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		MaxBodySize:       DefaultMaxBodySize,
	}
}

// Validate checks the configuration, returning the first problem found.
// It runs once after flag parsing, before any network activity.
func (c *Config) Validate() error {
	if c.SeedURL == "" {
		return ErrNoSeedURL
	}
	u, err := url.Parse(c.SeedURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidSeedURL
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.Deadline < 0 {
		return ErrInvalidDeadline
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}

// XDGDataDir returns the XDG data directory for the crawler.
// On Linux: ~/.local/share/scopecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the crawler.
// On Linux: ~/.config/scopecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}
