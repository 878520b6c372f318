package crawler

import (
	"net/url"
	"strings"
	"sync"

	"github.com/scopecrawl/scopecrawl/internal/model"
)

// OfferPolicy vetoes candidate URLs at frontier offer time. Implementations
// include the robots.txt policy and the URL blocklist. Policies see the raw
// absolute URL, before normalization.
//
// Design decision: policy checks live at Offer rather than inside the
// fetcher so a rejected URL never occupies queue or budget space, and so the
// crawl engine stays policy-agnostic.
type OfferPolicy interface {
	// Allow reports whether the URL may be enqueued for crawling.
	Allow(rawURL string) bool
}

// OfferPolicyFunc adapts a function to the OfferPolicy interface.
type OfferPolicyFunc func(rawURL string) bool

// Allow implements OfferPolicy.
func (f OfferPolicyFunc) Allow(rawURL string) bool { return f(rawURL) }

// Frontier is the bounded, deduplicated queue of pending crawl tasks.
//
// It is the only holder of shared mutable crawl state: the visited set, the
// task queue, and the budget counters all live here and are mutated under a
// single lock. The check-and-insert in Offer is atomic, so two workers that
// discover the same link concurrently can never both enqueue it.
//
// Quiescence detection: Take blocks while the queue is momentarily empty but
// tasks are still in flight (their results may feed new links back in). It
// returns false permanently once the queue is empty AND the in-flight count
// is zero, which is the crawl's natural termination signal.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue   []model.CrawlTask
	visited map[string]struct{}

	maxDepth int
	maxPages int

	// fetched counts completed tasks; inFlight counts dequeued-but-unfinished
	// tasks. Offer admits a URL only while fetched+inFlight+queued stays
	// under maxPages, so the page budget can never be exceeded even
	// transiently.
	fetched  int
	inFlight int

	cancelled bool
	policies  []OfferPolicy
}

// NewFrontier creates a frontier with the given depth and page ceilings.
// Policies, if any, are consulted in order on every Offer.
func NewFrontier(maxDepth, maxPages int, policies ...OfferPolicy) *Frontier {
	f := &Frontier{
		queue:    make([]model.CrawlTask, 0),
		visited:  make(map[string]struct{}),
		maxDepth: maxDepth,
		maxPages: maxPages,
		policies: policies,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Offer proposes a URL for crawling at the given depth, discovered on the
// parent page (empty for the seed). It returns true if the URL was accepted
// and enqueued, false if it was rejected with no side effect. Rejection
// reasons: frontier cancelled, depth beyond the ceiling, policy veto,
// already visited, or page budget fully committed.
//
// Acceptance atomically marks the URL visited and enqueues it.
func (f *Frontier) Offer(rawURL string, depth int, parent string) bool {
	if depth > f.maxDepth {
		return false
	}
	for _, p := range f.policies {
		if !p.Allow(rawURL) {
			return false
		}
	}

	key := NormalizeURL(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelled {
		return false
	}
	if _, seen := f.visited[key]; seen {
		return false
	}
	if f.fetched+f.inFlight+len(f.queue) >= f.maxPages {
		return false
	}

	f.visited[key] = struct{}{}
	f.queue = append(f.queue, model.CrawlTask{URL: rawURL, Depth: depth, Parent: parent})
	f.cond.Signal()
	return true
}

// Take removes the next task from the queue. It blocks while the queue is
// empty but tasks are still in flight. The second return value is false
// permanently once the frontier is quiescent or cancelled; workers treat
// that as their exit signal.
//
// Every successful Take must be paired with exactly one Done call.
func (f *Frontier) Take() (model.CrawlTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.cancelled {
			return model.CrawlTask{}, false
		}
		if len(f.queue) > 0 {
			task := f.queue[0]
			f.queue = f.queue[1:]
			f.inFlight++
			return task, true
		}
		if f.inFlight == 0 {
			// Empty and nothing in flight: no more links can arrive.
			return model.CrawlTask{}, false
		}
		f.cond.Wait()
	}
}

// Done marks one previously taken task as complete and counts it against the
// page budget. When the last in-flight task finishes with an empty queue,
// every blocked Take is woken so workers can observe quiescence.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inFlight--
	f.fetched++
	f.cond.Broadcast()
}

// Cancel stops the frontier: pending Take calls return false, and no further
// Offer is accepted. In-flight tasks are unaffected; their Done calls still
// settle the counters. Safe to call more than once.
func (f *Frontier) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cancelled = true
	f.cond.Broadcast()
}

// Fetched returns the number of completed tasks.
func (f *Frontier) Fetched() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched
}

// BudgetExhausted reports whether the page ceiling has been fully consumed.
func (f *Frontier) BudgetExhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched >= f.maxPages
}

// NormalizeURL reduces a URL to its dedup key: lowercase scheme and host,
// fragment and query stripped, trailing slash trimmed (the root path and the
// empty path collapse to "/"). Two URLs with the same key are the same page
// for visited-set purposes.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Fragment = ""
	u.RawQuery = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	u.Path = strings.TrimRight(u.Path, "/")
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}
