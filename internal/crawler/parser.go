package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"
)

// maxVisibleText caps the visible-text snapshot collected for the tagger.
// Keyword and language heuristics converge well before this point, and the
// cap bounds per-page memory regardless of body size.
const maxVisibleText = 512 * 1024 // 512 KB

// LinkExtractor parses HTML bodies into sets of absolute outbound links,
// partitioned into internal and external relative to the seed's registrable
// domain.
//
// Design decision: golang.org/x/net/html rather than regex because it
// tolerates the malformed markup common on the kind of sites this crawler
// targets, and extraction must degrade gracefully rather than fail.
type LinkExtractor struct {
	// scope is the registrable domain of the seed. A link is internal iff
	// its registrable domain equals scope, ignoring subdomain and scheme.
	scope string
}

// ExtractResult holds everything pulled from one HTML body in a single pass.
type ExtractResult struct {
	// Title is the text of the first <title> element.
	Title string

	// Links contains all resolved absolute outbound URLs, deduplicated,
	// in document order.
	Links []string

	// InternalLinks and ExternalLinks partition Links by seed scope.
	InternalLinks []string
	ExternalLinks []string

	// VisibleText is the lowercased rendered text of the page (scripts and
	// styles excluded), capped at maxVisibleText. Consumed by the tagger.
	VisibleText string

	// HasPasswordInput reports whether any form contains a password field.
	HasPasswordInput bool
}

// NewLinkExtractor creates an extractor scoped to the seed URL's registrable
// domain.
func NewLinkExtractor(seedURL string) (*LinkExtractor, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return nil, err
	}
	return &LinkExtractor{scope: RegistrableDomain(u.Hostname())}, nil
}

// Extract parses an HTML body and returns the links and text it could
// recover. Malformed HTML is not an error: html.Parse repairs what it can,
// and the result holds whatever well-formed content was parseable.
func (e *LinkExtractor) Extract(body io.Reader, baseURL string) (*ExtractResult, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	result := &ExtractResult{
		Links:         make([]string, 0),
		InternalLinks: make([]string, 0),
		ExternalLinks: make([]string, 0),
	}

	seen := make(map[string]struct{})
	var text strings.Builder

	var walk func(n *html.Node, skipText bool)
	walk = func(n *html.Node, skipText bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a", "area":
				e.addLink(resolveRef(base, attr(n, "href")), seen, result)
			case "frame", "iframe":
				e.addLink(resolveRef(base, attr(n, "src")), seen, result)
			case "input":
				if strings.EqualFold(attr(n, "type"), "password") {
					result.HasPasswordInput = true
				}
			case "script", "style", "noscript":
				skipText = true
			}
		case html.TextNode:
			if !skipText && text.Len() < maxVisibleText {
				text.WriteString(n.Data)
				text.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skipText)
		}
	}
	walk(doc, false)

	result.VisibleText = strings.ToLower(strings.Join(strings.Fields(text.String()), " "))
	if len(result.VisibleText) > maxVisibleText {
		result.VisibleText = result.VisibleText[:maxVisibleText]
	}
	return result, nil
}

// addLink records a resolved link once and classifies it against the scope.
func (e *LinkExtractor) addLink(link string, seen map[string]struct{}, result *ExtractResult) {
	if link == "" {
		return
	}
	if _, dup := seen[link]; dup {
		return
	}
	seen[link] = struct{}{}
	result.Links = append(result.Links, link)

	u, err := url.Parse(link)
	if err != nil {
		return
	}
	if RegistrableDomain(u.Hostname()) == e.scope {
		result.InternalLinks = append(result.InternalLinks, link)
	} else {
		result.ExternalLinks = append(result.ExternalLinks, link)
	}
}

// resolveRef resolves href against base, discarding non-navigational schemes
// and fragment-only references.
func resolveRef(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// RegistrableDomain returns the eTLD+1 for a hostname: the domain component
// used for the internal/external partition (e.g. "example.com" for
// "sub.example.com"). Hosts the public suffix list cannot split (IP
// literals, single-label hosts) fall back to the lowercased host with any
// "www." prefix removed.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return strings.TrimPrefix(host, "www.")
}

// attr returns the value of the named attribute on an element node.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
