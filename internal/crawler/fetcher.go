package crawler

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/proxy"

	"github.com/scopecrawl/scopecrawl/internal/model"
)

// maxRedirects caps redirect chains. Exceeding it yields a redirect_loop
// fetch error rather than following the chain forever.
const maxRedirects = 5

// errTooManyRedirects marks a redirect chain that exceeded maxRedirects.
var errTooManyRedirects = errors.New("stopped after too many redirects")

// FetchError is a typed per-task fetch failure. It never escapes the worker
// boundary; the scheduler records it on the page's result and moves on.
type FetchError struct {
	// Kind classifies the failure for the result record.
	Kind model.FetchErrorKind

	// Err is the underlying transport error.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *FetchError) Unwrap() error { return e.Err }

// FetchResult is the raw outcome of one successful HTTP exchange. Any status
// code is a result; only transport-level failures are errors.
type FetchResult struct {
	// StatusCode is the final response status after redirects.
	StatusCode int

	// Headers are the final response headers.
	Headers http.Header

	// Body is the response body, capped at the fetcher's body-size limit.
	Body []byte

	// FinalURL is the URL that produced the final response.
	FinalURL string

	// Redirects is the number of redirects followed.
	Redirects int
}

// Fetcher issues single HTTP(S) requests with a per-request timeout and a
// fixed User-Agent. Targets whose host ends in the onion pseudo-TLD are
// routed through a SOCKS5 dialer; everything else connects directly.
type Fetcher struct {
	direct *http.Client

	// onion is nil when no SOCKS proxy is configured; fetching a .onion
	// target then fails with a typed request error instead of leaking the
	// lookup to clearnet DNS.
	onion *http.Client

	userAgent   string
	headers     map[string]string
	maxBodySize int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*fetcherConfig)

type fetcherConfig struct {
	timeout     time.Duration
	userAgent   string
	headers     map[string]string
	maxBodySize int64
	dialer      proxy.Dialer
}

// WithTimeout sets the per-request timeout. This is independent of, and
// expected to be shorter than, the overall crawl deadline.
func WithTimeout(d time.Duration) FetcherOption {
	return func(c *fetcherConfig) { c.timeout = d }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) FetcherOption {
	return func(c *fetcherConfig) { c.userAgent = ua }
}

// WithHeaders sets extra headers (e.g. a session cookie) sent with every
// request.
func WithHeaders(h map[string]string) FetcherOption {
	return func(c *fetcherConfig) { c.headers = h }
}

// WithMaxBodySize caps how many response bytes are read per page.
func WithMaxBodySize(n int64) FetcherOption {
	return func(c *fetcherConfig) { c.maxBodySize = n }
}

// WithProxyDialer routes .onion targets through the given SOCKS5 dialer.
// Without it, .onion fetches fail with a typed error.
func WithProxyDialer(d proxy.Dialer) FetcherOption {
	return func(c *fetcherConfig) { c.dialer = d }
}

// NewFetcher creates a fetcher with the given options.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	cfg := &fetcherConfig{
		timeout:     30 * time.Second,
		userAgent:   "scopecrawl/1.0 (+https://github.com/scopecrawl/scopecrawl)",
		maxBodySize: 5 * 1024 * 1024, // 5MB
	}
	for _, opt := range opts {
		opt(cfg)
	}

	f := &Fetcher{
		userAgent:   cfg.userAgent,
		headers:     cfg.headers,
		maxBodySize: cfg.maxBodySize,
	}
	f.direct = newHTTPClient(cfg.timeout, nil)
	if cfg.dialer != nil {
		f.onion = newHTTPClient(cfg.timeout, cfg.dialer)
	}
	return f
}

// newHTTPClient builds an HTTP client with the redirect cap and, when a
// dialer is given, SOCKS5 routing. The SOCKS client skips TLS verification
// because hidden services use self-signed certificates; the onion address
// itself authenticates the endpoint.
func newHTTPClient(timeout time.Duration, dialer proxy.Dialer) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}
	if dialer != nil {
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // Hidden services use self-signed certs
		transport.MaxIdleConns = 10
		transport.MaxIdleConnsPerHost = 2
		transport.DisableCompression = true
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}
}

// Fetch issues one GET request for the URL. Any HTTP response (including
// 4xx and 5xx) is returned as a FetchResult; only transport failures return
// a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	client := f.direct
	if isOnionURL(rawURL) {
		if f.onion == nil {
			return nil, &FetchError{
				Kind: model.ErrKindRequest,
				Err:  errors.New("no SOCKS proxy configured for .onion target"),
			}
		}
		client = f.onion
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: model.ErrKindRequest, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, classifyFetchError(err)
	}

	// Redirect responses are linked backwards from the final request.
	redirects := 0
	for r := resp.Request.Response; r != nil; r = r.Request.Response {
		redirects++
	}

	return &FetchResult{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
		Redirects:  redirects,
	}, nil
}

// isOnionURL reports whether the URL's host ends in the onion pseudo-TLD.
func isOnionURL(rawURL string) bool {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	host := req.URL.Hostname()
	return strings.HasSuffix(strings.ToLower(host), ".onion")
}

// classifyFetchError maps a transport error to a typed FetchError so the
// result record can carry a machine-readable kind.
func classifyFetchError(err error) *FetchError {
	kind := model.ErrKindRequest

	var dnsErr *net.DNSError
	var certErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError

	switch {
	case errors.Is(err, errTooManyRedirects):
		kind = model.ErrKindRedirectLoop
	case errors.As(err, &dnsErr):
		kind = model.ErrKindDNS
	case isTimeout(err):
		kind = model.ErrKindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = model.ErrKindConnRefused
	case errors.As(err, &certErr), errors.As(err, &recordErr),
		errors.As(err, &unknownAuthority), errors.As(err, &hostnameErr):
		kind = model.ErrKindTLS
	}

	return &FetchError{Kind: kind, Err: err}
}

// isTimeout reports whether the error chain indicates an elapsed deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
