package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scopecrawl/scopecrawl/internal/config"
	"github.com/scopecrawl/scopecrawl/internal/crawler"
	"github.com/scopecrawl/scopecrawl/internal/database"
	"github.com/scopecrawl/scopecrawl/internal/log"
	"github.com/scopecrawl/scopecrawl/internal/model"
	"github.com/scopecrawl/scopecrawl/internal/report"
	"github.com/scopecrawl/scopecrawl/internal/robots"
	"github.com/scopecrawl/scopecrawl/internal/tagger"
	"github.com/scopecrawl/scopecrawl/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url]",
		Short: "Crawl a site from a seed URL within depth and page bounds",
		Long: `Crawl maps a site starting from the seed URL. Links are followed up to
--max_depth hops from the seed; the crawl stops after --max_pages pages, when
the --deadline elapses, or when the reachable link graph is exhausted.

Each fetched page is emitted as one NDJSON record as soon as it completes,
followed by a final summary line. Pages on the seed's registrable domain are
crawled; links to other domains are recorded but never followed.

.onion seeds are fetched through the Tor SOCKS5 proxy at --proxy. Pass
--embedded-tor to start a bundled Tor daemon instead of using an external one.

Examples:
  # Crawl a clearnet site two levels deep
  scopecrawl crawl --max_depth 2 http://example.com/

  # Crawl a hidden service with inline tagging and a Markdown report
  scopecrawl crawl --tag --markdown report.md http://exampleonion.onion/

  # Bounded triage run: 200 pages or 5 minutes, whichever comes first
  scopecrawl crawl --max_pages 200 --deadline 5m http://example.com/

  # Persist results for later queries
  scopecrawl crawl --db http://example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl bounds
	cmd.Flags().String("start_url", "", "Seed URL to crawl (alternative to the positional argument)")
	cmd.Flags().IntP("max_depth", "d", config.DefaultMaxDepth,
		"Maximum link distance from the seed (seed is depth 0)")
	cmd.Flags().IntP("max_pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetch workers")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Per-request timeout")
	cmd.Flags().Duration("deadline", 0,
		"Overall crawl deadline (0 = unbounded)")
	cmd.Flags().String("user_agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")

	// Scope and politeness
	cmd.Flags().Bool("respect_robots", false,
		"Honor robots.txt disallow rules when enqueuing links")
	cmd.Flags().String("blocklist", "",
		"YAML file of URL patterns to never crawl")

	// Tor connection
	cmd.Flags().String("proxy", config.DefaultTorProxyAddress,
		"Tor SOCKS5 proxy address for .onion targets")
	cmd.Flags().Bool("embedded-tor", false,
		"Start an embedded Tor daemon instead of using an external proxy")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Classification
	cmd.Flags().Bool("tag", false,
		"Classify each page inline with content heuristics")

	// Output
	cmd.Flags().StringP("output", "o", "",
		"Write the NDJSON stream to this file instead of stdout")
	cmd.Flags().StringP("markdown", "m", "",
		"Write a Markdown run report to this file")
	cmd.Flags().Bool("db", false,
		"Persist the run to the SQLite database in the XDG data directory")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .scopecrawl in current or home directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Handle interrupt signals for graceful shutdown: in-flight fetches
	// finish and the summary is still written.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// buildCrawlConfig creates a Config from cobra command flags.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.SeedURL, err = cmd.Flags().GetString("start_url")
	if err != nil {
		return nil, err
	}
	if cfg.SeedURL == "" && len(args) > 0 {
		cfg.SeedURL = args[0]
	}

	cfg.MaxDepth, err = cmd.Flags().GetInt("max_depth")
	if err != nil {
		return nil, err
	}
	cfg.MaxPages, err = cmd.Flags().GetInt("max_pages")
	if err != nil {
		return nil, err
	}
	cfg.Workers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}
	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	cfg.Deadline, err = cmd.Flags().GetDuration("deadline")
	if err != nil {
		return nil, err
	}
	cfg.UserAgent, err = cmd.Flags().GetString("user_agent")
	if err != nil {
		return nil, err
	}
	cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size")
	if err != nil {
		return nil, err
	}
	cfg.RespectRobots, err = cmd.Flags().GetBool("respect_robots")
	if err != nil {
		return nil, err
	}
	cfg.BlocklistFile, err = cmd.Flags().GetString("blocklist")
	if err != nil {
		return nil, err
	}
	cfg.TorProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}
	cfg.UseEmbeddedTor, err = cmd.Flags().GetBool("embedded-tor")
	if err != nil {
		return nil, err
	}
	cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout")
	if err != nil {
		return nil, err
	}
	cfg.Tag, err = cmd.Flags().GetBool("tag")
	if err != nil {
		return nil, err
	}
	cfg.OutputFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownFile, err = cmd.Flags().GetString("markdown")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB, err = cmd.Flags().GetBool("db")
	if err != nil {
		return nil, err
	}
	if cfg.SaveToDB {
		cfg.DBDir = config.XDGDataDir()
	}
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// Load per-site configurations from the config file. An explicitly
	// specified file that does not exist is an error; a missing default
	// file is not.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// runCrawl executes the crawl.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	seed, err := url.Parse(cfg.SeedURL)
	if err != nil {
		return fmt.Errorf("invalid seed URL %q: %w", cfg.SeedURL, err)
	}

	seedIsOnion := strings.HasSuffix(seed.Hostname(), ".onion")
	if seedIsOnion {
		if err := tor.ValidateSeedHost(seed.Hostname()); err != nil {
			return fmt.Errorf("invalid seed URL %q: %w", cfg.SeedURL, err)
		}
	}

	// Apply per-site overrides for the seed host.
	siteConfig := cfg.SiteConfigs.GetSiteConfig(seed.Hostname())
	if siteConfig.Depth > 0 {
		cfg.MaxDepth = siteConfig.Depth
	}

	// Set up the Tor proxy. A .onion seed cannot be fetched without a
	// working proxy, so the connection check is mandatory there; for
	// clearnet seeds the proxy is only configured, never verified,
	// because it is used solely for .onion links discovered mid-crawl.
	client, embeddedTor, err := setupTorProxy(ctx, cfg, seedIsOnion, logger)
	if err != nil {
		return err
	}
	if embeddedTor != nil {
		defer func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
	}

	fetcher := buildFetcher(cfg, siteConfig, client)

	policies, err := buildOfferPolicies(cfg, siteConfig, client, logger)
	if err != nil {
		return err
	}

	frontier := crawler.NewFrontier(cfg.MaxDepth, cfg.MaxPages, policies...)
	engine := crawler.NewEngine(fetcher, frontier,
		crawler.WithWorkers(cfg.Workers),
		crawler.WithEngineLogger(logger),
	)

	// Open the output stream.
	output := os.Stdout
	if cfg.OutputFile != "" {
		f, err := createOutputFile(cfg.OutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	// Open the database and create the run record if persistence is on.
	// Persistence must survive cancellation: an interrupted crawl still
	// drains in-flight results and records the run.
	dbCtx := context.WithoutCancel(ctx)
	var (
		db    *database.CrawlDB
		runID int64
	)
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		runID, err = db.CreateRun(dbCtx, cfg.SeedURL, cfg.MaxDepth, cfg.MaxPages, cfg.Workers)
		if err != nil {
			return fmt.Errorf("failed to create run record: %w", err)
		}
		logger.Info("database opened", "dir", cfg.DBDir, "runID", runID)
	}

	var pageTagger *tagger.Tagger
	if cfg.Tag {
		pageTagger = tagger.NewTagger(tagger.WithLogger(logger))
	}

	crawlCtx := ctx
	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		crawlCtx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}

	logger.Info("starting crawl",
		"seed", cfg.SeedURL,
		"maxDepth", cfg.MaxDepth,
		"maxPages", cfg.MaxPages,
		"workers", cfg.Workers,
	)

	// Consume results as they complete: tag, stream, persist, and collect
	// discovered onion addresses for the report.
	writer := report.NewNDJSONWriter(output)
	results := make(chan *model.PageResult, cfg.Workers)
	consumerDone := make(chan struct{})
	onionSeen := make(map[string]struct{})

	go func() {
		defer close(consumerDone)
		for r := range results {
			if pageTagger != nil {
				r.Tags = pageTagger.Tag(r)
			}
			if err := writer.WriteResult(r); err != nil {
				logger.Error("failed to write result", "url", r.URL, "error", err)
			}
			collectOnionAddresses(onionSeen, r)
			if db != nil {
				if _, err := db.InsertPage(dbCtx, runID, r, r.Tags); err != nil {
					logger.Error("failed to save page", "url", r.URL, "error", err)
				}
			}
		}
	}()

	summary, runErr := engine.Run(crawlCtx, cfg.SeedURL, results)
	<-consumerDone
	if runErr != nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}

	if err := writer.WriteSummary(summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if db != nil {
		if err := db.FinishRun(dbCtx, runID, summary); err != nil {
			logger.Error("failed to finish run record", "runID", runID, "error", err)
		}
	}

	if pageTagger != nil {
		pageTagger.LogSummary()
	}

	if cfg.MarkdownFile != "" {
		if err := writeMarkdownReport(cfg, summary, pageTagger, onionSeen); err != nil {
			return err
		}
	}

	logger.Info("crawl finished",
		"pages", summary.TotalPages,
		"reason", summary.Reason,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return nil
}

// setupTorProxy prepares the Tor SOCKS5 client. For .onion seeds the proxy
// must answer the handshake before the crawl starts; otherwise the client is
// returned unverified.
func setupTorProxy(ctx context.Context, cfg *config.Config, mandatory bool, logger *slog.Logger) (*tor.Client, *tor.EmbeddedTor, error) {
	if cfg.UseEmbeddedTor {
		fmt.Fprintln(os.Stderr, "Starting embedded Tor daemon...")
		fmt.Fprintln(os.Stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.")

		embeddedTor := tor.NewEmbeddedTor(
			tor.WithStartupTimeout(cfg.TorStartupTimeout),
		)
		if err := embeddedTor.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
		}

		client, err := embeddedTor.NewClient(cfg.Timeout)
		if err != nil {
			_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
			return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
		}

		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
			return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
		}

		logger.Info("embedded Tor daemon started", "socksAddr", embeddedTor.SocksAddr())
		return client, embeddedTor, nil
	}

	client, err := tor.NewClient(cfg.TorProxyAddress, cfg.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if mandatory {
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, nil, fmt.Errorf("tor proxy check failed: %s (make sure Tor is running at %s)",
				status, cfg.TorProxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
	}

	return client, nil, nil
}

// buildFetcher assembles the Fetcher from the run and per-site configuration.
func buildFetcher(cfg *config.Config, siteConfig config.SiteConfig, client *tor.Client) *crawler.Fetcher {
	opts := []crawler.FetcherOption{
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	}

	headers := make(map[string]string, len(siteConfig.Headers)+1)
	for k, v := range siteConfig.Headers {
		headers[k] = v
	}
	if siteConfig.Cookie != "" {
		headers["Cookie"] = siteConfig.Cookie
	}
	if len(headers) > 0 {
		opts = append(opts, crawler.WithHeaders(headers))
	}

	if client != nil {
		opts = append(opts, crawler.WithProxyDialer(client.Dialer()))
	}

	return crawler.NewFetcher(opts...)
}

// buildOfferPolicies assembles the frontier admission policies: the URL
// blocklist (from --blocklist and the per-site config) and robots.txt. The
// robots policy shares the Tor dialer so .onion robots.txt fetches take the
// same SOCKS route as page fetches.
func buildOfferPolicies(cfg *config.Config, siteConfig config.SiteConfig, client *tor.Client, logger *slog.Logger) ([]crawler.OfferPolicy, error) {
	var policies []crawler.OfferPolicy

	var patterns []string
	if cfg.BlocklistFile != "" {
		blocklist, err := tagger.LoadBlocklist(cfg.BlocklistFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load blocklist %s: %w", cfg.BlocklistFile, err)
		}
		policies = append(policies, blocklist)
	}
	patterns = append(patterns, siteConfig.Blocklist...)
	if len(patterns) > 0 {
		blocklist, err := tagger.NewBlocklist(patterns)
		if err != nil {
			return nil, fmt.Errorf("invalid blocklist pattern in site config: %w", err)
		}
		policies = append(policies, blocklist)
	}

	if cfg.RespectRobots {
		logger.Info("robots.txt policy enabled", "userAgent", cfg.UserAgent)
		robotsOpts := []robots.PolicyOption{
			robots.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		}
		if client != nil {
			robotsOpts = append(robotsOpts, robots.WithProxyDialer(client.Dialer()))
		}
		policies = append(policies, robots.NewPolicy(cfg.UserAgent, robotsOpts...))
	}

	return policies, nil
}

// collectOnionAddresses records hidden-service addresses found in the page's
// text and outbound links.
func collectOnionAddresses(seen map[string]struct{}, r *model.PageResult) {
	for _, addr := range tor.ExtractV3Addresses(r.Snapshot) {
		seen[addr] = struct{}{}
	}
	for _, link := range r.ExternalLinks {
		for _, addr := range tor.ExtractV3Addresses(link) {
			seen[addr] = struct{}{}
		}
	}
}

// createOutputFile creates the output file with owner-only permissions,
// creating parent directories as needed.
func createOutputFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// writeMarkdownReport renders the Markdown run report.
func writeMarkdownReport(cfg *config.Config, summary *model.CrawlSummary, pageTagger *tagger.Tagger, onionSeen map[string]struct{}) error {
	f, err := createOutputFile(cfg.MarkdownFile)
	if err != nil {
		return err
	}
	defer f.Close()

	runReport := &report.RunReport{
		SeedURL: cfg.SeedURL,
		Summary: summary,
	}
	if pageTagger != nil {
		runReport.TagCounts = pageTagger.Summary()
	}
	if len(onionSeen) > 0 {
		addrs := make([]string, 0, len(onionSeen))
		for addr := range onionSeen {
			addrs = append(addrs, addr)
		}
		sort.Strings(addrs)
		runReport.OnionAddresses = addrs
	}

	if err := report.NewMarkdownWriter(f).Write(runReport); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	return nil
}
