// Package robots implements a robots.txt policy for the crawl frontier.
//
// The policy fetches and caches each host's robots.txt once, and vetoes URLs
// the site's rules disallow for the crawler's User-Agent. Hosts whose
// robots.txt cannot be fetched or parsed are treated as allowing everything;
// a crawl should degrade to politeness-unknown, not stall.
package robots

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/proxy"
)

// maxRobotsSize caps how many bytes of a robots.txt file are read. Anything
// past this is noise or abuse.
const maxRobotsSize = 512 * 1024

// Policy caches per-host robots.txt rules and answers frontier offer checks.
// It satisfies the crawler's OfferPolicy interface.
type Policy struct {
	client    *http.Client
	userAgent string

	// onionClient routes .onion robots fetches through a SOCKS5 dialer.
	// When nil, .onion hosts fail open without any fetch: resolving an
	// onion hostname on clearnet DNS would leak the hidden-service name.
	onionClient *http.Client

	mu sync.Mutex
	// groups maps scheme://host to the rule group for our User-Agent.
	// A nil group means the host allows everything (including hosts whose
	// robots.txt was unreachable).
	groups map[string]*robotstxt.Group
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithHTTPClient sets the client used to fetch robots.txt files from
// clearnet hosts.
func WithHTTPClient(client *http.Client) PolicyOption {
	return func(p *Policy) { p.client = client }
}

// WithProxyDialer routes .onion robots.txt fetches through the given SOCKS5
// dialer, matching how the fetcher routes page requests. Without it, .onion
// hosts are never fetched and always allow.
func WithProxyDialer(d proxy.Dialer) PolicyOption {
	return func(p *Policy) { p.onionClient = newOnionClient(d) }
}

// NewPolicy creates a robots.txt policy that evaluates rules against the
// given User-Agent.
func NewPolicy(userAgent string, opts ...PolicyOption) *Policy {
	p := &Policy{
		userAgent: userAgent,
		groups:    make(map[string]*robotstxt.Group),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: 10 * time.Second}
	}
	return p
}

// newOnionClient builds the SOCKS-routed client for hidden-service robots
// fetches. TLS verification is skipped because hidden services use
// self-signed certificates; the onion address itself authenticates the
// endpoint.
func newOnionClient(dialer proxy.Dialer) *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // Hidden services use self-signed certs
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			DisableCompression:  true,
		},
	}
}

// Allow reports whether the URL may be crawled under the host's robots.txt
// rules. The first check against a host fetches its robots.txt; later checks
// hit the cache.
func (p *Policy) Allow(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	group := p.groupFor(u)
	if group == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

// groupFor returns the cached rule group for the URL's host, fetching the
// host's robots.txt on first use.
func (p *Policy) groupFor(u *url.URL) *robotstxt.Group {
	key := u.Scheme + "://" + u.Host

	p.mu.Lock()
	defer p.mu.Unlock()

	if group, ok := p.groups[key]; ok {
		return group
	}

	group := p.fetchGroup(u.Scheme, u.Host, strings.HasSuffix(u.Hostname(), ".onion"))
	p.groups[key] = group
	return group
}

// fetchGroup downloads and parses a host's robots.txt. Any failure yields a
// nil (allow-all) group. Status semantics follow the robots.txt convention:
// 4xx means no restrictions, 5xx means disallow all.
//
// Onion hosts are only fetched through the SOCKS5 client; with none
// configured they allow everything rather than leak the hostname to a
// clearnet resolver.
func (p *Policy) fetchGroup(scheme, host string, isOnion bool) *robotstxt.Group {
	client := p.client
	if isOnion {
		if p.onionClient == nil {
			return nil
		}
		client = p.onionClient
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequest(http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}

	return data.FindGroup(productToken(p.userAgent))
}

// productToken reduces a full User-Agent string to the product token robots
// groups match on ("scopecrawl/1.0 (+https://...)" matches "scopecrawl").
func productToken(userAgent string) string {
	token := userAgent
	if i := strings.IndexAny(token, "/ "); i >= 0 {
		token = token[:i]
	}
	if token == "" {
		return userAgent
	}
	return token
}
