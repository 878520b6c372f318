// Package tagger classifies crawled pages into threat-intelligence
// categories using keyword, pattern, and behavioral heuristics.
//
// A page can carry several tags: a marketplace reachable as a hidden service
// is both "marketplace" and "darkweb". Pages that match nothing are tagged
// "uncategorized" so the output never silently drops a page.
package tagger

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/scopecrawl/scopecrawl/internal/model"
)

// Classification tags.
const (
	TagMarketplace   = "marketplace"
	TagForum         = "forum"
	TagPasteSite     = "paste_site"
	TagDarkweb       = "darkweb"
	TagLoginPage     = "login_page"
	TagSuspicious    = "suspicious_behavior"
	TagUncategorized = "uncategorized"
)

// Behavioral thresholds for the suspicious_behavior tag.
const (
	suspiciousRedirects     = 5
	suspiciousExternalLinks = 20
)

// minLangTextLen is the minimum visible-text length worth running language
// detection on. Below it the detector guesses.
const minLangTextLen = 40

// Tagger assigns category tags to page records and keeps per-tag counts for
// the run summary. Safe for concurrent use.
type Tagger struct {
	blocklist *Blocklist
	logger    *slog.Logger

	mu      sync.Mutex
	summary map[string]int
}

// TaggerOption configures a Tagger.
type TaggerOption func(*Tagger)

// WithBlocklist sets the URL blocklist. Blocked pages receive no tags and
// are counted under "blocked" in the summary.
func WithBlocklist(b *Blocklist) TaggerOption {
	return func(t *Tagger) { t.blocklist = b }
}

// WithLogger sets the structured logger used for tagging decisions.
func WithLogger(logger *slog.Logger) TaggerOption {
	return func(t *Tagger) { t.logger = logger }
}

// NewTagger creates a tagger.
func NewTagger(opts ...TaggerOption) *Tagger {
	t := &Tagger{
		summary: make(map[string]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// Tag classifies one page record and returns its tags. A blocklisted URL
// returns nil. The record itself is not modified.
func (t *Tagger) Tag(r *model.PageResult) []string {
	if t.blocklist != nil && t.blocklist.Blocked(r.URL) {
		t.logger.Info("url blocked by blocklist", "url", r.URL)
		t.count("blocked")
		return nil
	}

	text := r.Snapshot
	var tags []string

	if matchAny(text, marketplaceKeywords, marketplacePatterns) {
		tags = append(tags, TagMarketplace)
	}
	if matchAny(text, forumKeywords, forumPatterns) {
		tags = append(tags, TagForum)
	}
	if matchAny(text, pasteKeywords, pastePatterns) {
		tags = append(tags, TagPasteSite)
	}
	if strings.Contains(r.URL, ".onion") {
		tags = append(tags, TagDarkweb)
	}
	if r.HasLoginForm {
		tags = append(tags, TagLoginPage)
	}
	if lang := detectLanguage(text); lang != "" {
		tags = append(tags, "lang_"+lang)
	}
	if r.Redirects > suspiciousRedirects || len(r.ExternalLinks) > suspiciousExternalLinks {
		tags = append(tags, TagSuspicious)
	}

	if len(tags) == 0 {
		tags = append(tags, TagUncategorized)
		t.logger.Warn("uncategorized page", "url", r.URL)
	}

	t.logger.Debug("tagged page", "url", r.URL, "tags", tags)
	for _, tag := range tags {
		t.count(tag)
	}
	return tags
}

// Summary returns a copy of the per-tag counts accumulated so far.
func (t *Tagger) Summary() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int, len(t.summary))
	for tag, n := range t.summary {
		out[tag] = n
	}
	return out
}

// LogSummary writes the per-tag counts to the logger.
func (t *Tagger) LogSummary() {
	for tag, n := range t.Summary() {
		t.logger.Info("tag summary", "tag", tag, "count", n)
	}
}

func (t *Tagger) count(tag string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary[tag]++
}

// matchAny reports whether the text contains any keyword or matches any
// pattern.
func matchAny(text string, keywords []string, patterns []*regexp.Regexp) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// detectLanguage returns the BCP 47 base language of the text ("en", "ru"),
// or "" when the text is too short or the detection unreliable.
func detectLanguage(text string) string {
	if len(text) < minLangTextLen {
		return ""
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}

	code := info.Lang.Iso6391()
	if code == "" {
		code = info.Lang.Iso6393()
	}

	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}
