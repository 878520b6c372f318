package model

import (
	"net/http"
	"time"
)

// CrawlTask is a single unit of work in the frontier: one URL to fetch at a
// known depth. Tasks are created when a link is accepted into the frontier and
// consumed exactly once by a worker.
type CrawlTask struct {
	// URL is the absolute URL to fetch.
	URL string

	// Depth is the link distance from the seed. The seed itself is depth 0.
	Depth int

	// Parent is the URL of the page that offered this one, empty for the
	// seed.
	Parent string
}

// FetchErrorKind classifies per-task fetch failures. A non-2xx status code is
// not a fetch error; it is a valid-but-unsuccessful result and carries no kind.
type FetchErrorKind string

// Fetch error kinds recorded on PageResult.ErrorKind.
const (
	// ErrKindDNS indicates the hostname could not be resolved.
	ErrKindDNS FetchErrorKind = "dns"

	// ErrKindConnRefused indicates the TCP connection was refused.
	ErrKindConnRefused FetchErrorKind = "connection_refused"

	// ErrKindTimeout indicates the per-request timeout elapsed.
	ErrKindTimeout FetchErrorKind = "timeout"

	// ErrKindTLS indicates a TLS handshake or certificate failure.
	ErrKindTLS FetchErrorKind = "tls"

	// ErrKindRedirectLoop indicates the redirect cap was exceeded.
	ErrKindRedirectLoop FetchErrorKind = "redirect_loop"

	// ErrKindRequest is the catch-all for other transport-level failures.
	ErrKindRequest FetchErrorKind = "request"
)

// PageResult is the record produced for one fetched URL.
//
// Exactly one of the two outcomes is present: either StatusCode and the fetch
// data are populated, or Error/ErrorKind are set. A result is immutable once
// constructed; the worker hands it to the emitter and never retains it.
type PageResult struct {
	// URL is the URL that was fetched, as dequeued from the frontier.
	URL string `json:"url"`

	// FinalURL is the URL after redirects, when it differs from URL.
	FinalURL string `json:"final_url,omitempty"`

	// ParentURL is the URL of the page this one was discovered on, empty
	// for the seed. It reconstructs the discovery path during triage.
	ParentURL string `json:"parent_url,omitempty"`

	// StatusCode is the HTTP response status, or 0 when a fetch error occurred.
	StatusCode int `json:"status_code"`

	// Title is the page title from the <title> tag, empty for non-HTML.
	Title string `json:"title,omitempty"`

	// Headers contains the response headers in Go's canonical multi-map form.
	Headers http.Header `json:"headers,omitempty"`

	// Links contains every resolved outbound URL discovered on the page.
	Links []string `json:"links"`

	// InternalLinks are links whose registrable domain matches the seed's.
	InternalLinks []string `json:"internal_links"`

	// ExternalLinks are all other links.
	ExternalLinks []string `json:"external_links"`

	// Depth is the link distance from the seed at which this page was found.
	Depth int `json:"depth"`

	// Discovered is a monotonically increasing ordinal assigned when the
	// result is emitted. Delivery is in completion order, not discovery
	// order; the ordinal lets downstream consumers replay deterministically.
	Discovered int64 `json:"discovered"`

	// FetchedAt is the wall-clock time the fetch completed.
	FetchedAt time.Time `json:"fetched_at"`

	// Redirects is the number of redirects followed before the final response.
	Redirects int `json:"redirects,omitempty"`

	// Snapshot is the lowercased visible text of the page, size-capped by
	// the extractor. The tagger's keyword and language heuristics run on
	// it, including when results are re-tagged offline from an NDJSON file.
	Snapshot string `json:"snapshot,omitempty"`

	// HasLoginForm reports whether the page contains a password input.
	HasLoginForm bool `json:"has_login_form,omitempty"`

	// Error is the fetch error message, empty on any HTTP response.
	Error string `json:"error,omitempty"`

	// ErrorKind classifies Error for programmatic handling.
	ErrorKind FetchErrorKind `json:"error_kind,omitempty"`

	// Tags holds heuristic content labels when inline tagging is enabled.
	Tags []string `json:"tags,omitempty"`
}

// Succeeded reports whether the fetch produced a 2xx response.
func (p *PageResult) Succeeded() bool {
	return p.Error == "" && p.StatusCode >= 200 && p.StatusCode < 300
}

// Failed reports whether the result carries a fetch error.
func (p *PageResult) Failed() bool {
	return p.Error != ""
}

// Header returns the first value of the named response header, or "".
func (p *PageResult) Header(name string) string {
	if p.Headers == nil {
		return ""
	}
	return p.Headers.Get(name)
}

// TerminationReason records why a crawl left the RUNNING state. All reasons
// are normal, non-error exits; only the summary distinguishes them.
type TerminationReason string

// Crawl termination reasons.
const (
	// TerminationExhausted means the reachable link graph was fully explored.
	TerminationExhausted TerminationReason = "graph_exhausted"

	// TerminationPageBudget means the max-pages ceiling was reached.
	TerminationPageBudget TerminationReason = "page_budget"

	// TerminationDeadline means the overall crawl deadline elapsed.
	TerminationDeadline TerminationReason = "deadline"

	// TerminationCancelled means an external cancel signal was observed.
	TerminationCancelled TerminationReason = "cancelled"
)

// CrawlSummary aggregates a finished crawl. It is finalized once, after the
// result stream has closed.
type CrawlSummary struct {
	// TotalPages is the number of PageResults emitted.
	TotalPages int `json:"total_pages"`

	// Successful counts results with a 2xx status.
	Successful int `json:"successful"`

	// Failed counts results with a fetch error or non-2xx status.
	Failed int `json:"failed"`

	// MaxDepthReached is the deepest depth at which a page was fetched.
	MaxDepthReached int `json:"max_depth_reached"`

	// InternalLinks and ExternalLinks are totals across all pages.
	InternalLinks int `json:"internal_links"`
	ExternalLinks int `json:"external_links"`

	// Duration is the wall-clock time of the whole crawl.
	Duration time.Duration `json:"duration"`

	// Reason records which non-error exit path finished the crawl.
	Reason TerminationReason `json:"reason"`
}

// Observe folds one result into the summary counters.
func (s *CrawlSummary) Observe(r *PageResult) {
	s.TotalPages++
	if r.Succeeded() {
		s.Successful++
	} else {
		s.Failed++
	}
	if r.Depth > s.MaxDepthReached {
		s.MaxDepthReached = r.Depth
	}
	s.InternalLinks += len(r.InternalLinks)
	s.ExternalLinks += len(r.ExternalLinks)
}
