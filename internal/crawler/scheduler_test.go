package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/scopecrawl/scopecrawl/internal/model"
)

// crawlSite runs a full crawl against the handler and collects the streamed
// results along with the summary.
func crawlSite(t *testing.T, handler http.Handler, maxDepth, maxPages, workers int) ([]*model.PageResult, *model.CrawlSummary) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	fetcher := NewFetcher(WithTimeout(5 * time.Second))
	frontier := NewFrontier(maxDepth, maxPages)
	engine := NewEngine(fetcher, frontier, WithWorkers(workers))

	results := make(chan *model.PageResult, maxPages+1)
	summary, err := engine.Run(context.Background(), srv.URL+"/", results)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	var pages []*model.PageResult
	for r := range results {
		pages = append(pages, r)
	}
	return pages, summary
}

// linkedSite serves a root page linking to n children plus one external link.
func linkedSite(n int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, "<html><title>child %s</title><body>leaf</body></html>", r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><title>root</title><body>")
		for i := 0; i < n; i++ {
			fmt.Fprintf(w, `<a href="/child/%d">c%d</a>`, i, i)
		}
		fmt.Fprint(w, `<a href="http://external.invalid/out">out</a></body></html>`)
	})
	return mux
}

func TestEngineRun(t *testing.T) {
	t.Parallel()

	t.Run("crawls root plus children within depth one", func(t *testing.T) {
		t.Parallel()

		pages, summary := crawlSite(t, linkedSite(4), 1, 100, 4)

		if len(pages) != 5 {
			t.Fatalf("expected 5 pages (root + 4 children), got %d", len(pages))
		}
		if summary.TotalPages != 5 || summary.Successful != 5 || summary.Failed != 0 {
			t.Errorf("summary counts = %d/%d/%d, want 5/5/0",
				summary.TotalPages, summary.Successful, summary.Failed)
		}
		if summary.Reason != model.TerminationExhausted {
			t.Errorf("reason = %q, want %q", summary.Reason, model.TerminationExhausted)
		}
		if summary.MaxDepthReached != 1 {
			t.Errorf("max depth reached = %d, want 1", summary.MaxDepthReached)
		}
		// The external link is recorded on the root page but never fetched.
		if summary.ExternalLinks != 1 {
			t.Errorf("external links = %d, want 1", summary.ExternalLinks)
		}
	})

	t.Run("records the page each URL was discovered on", func(t *testing.T) {
		t.Parallel()

		pages, _ := crawlSite(t, linkedSite(3), 1, 100, 4)

		var root string
		for _, p := range pages {
			if p.Depth == 0 {
				root = p.URL
				if p.ParentURL != "" {
					t.Errorf("seed parent = %q, want empty", p.ParentURL)
				}
			}
		}
		if root == "" {
			t.Fatal("no depth-zero page in the results")
		}
		for _, p := range pages {
			if p.Depth == 1 && p.ParentURL != root {
				t.Errorf("child %s parent = %q, want %q", p.URL, p.ParentURL, root)
			}
		}
	})

	t.Run("stops at the page budget", func(t *testing.T) {
		t.Parallel()

		pages, summary := crawlSite(t, linkedSite(20), 3, 5, 4)

		if len(pages) != 5 {
			t.Fatalf("expected exactly 5 pages, got %d", len(pages))
		}
		if summary.Reason != model.TerminationPageBudget {
			t.Errorf("reason = %q, want %q", summary.Reason, model.TerminationPageBudget)
		}
	})

	t.Run("records an error page without extracting its links", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `<html><body><a href="/hidden">hidden</a></body></html>`)
		})

		pages, summary := crawlSite(t, mux, 2, 10, 2)

		if len(pages) != 1 {
			t.Fatalf("expected 1 page, got %d", len(pages))
		}
		if pages[0].StatusCode != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", pages[0].StatusCode)
		}
		if pages[0].Error != "" {
			t.Errorf("a 500 is a valid result, got error %q", pages[0].Error)
		}
		if len(pages[0].Links) != 0 {
			t.Errorf("links must not be extracted from an error page: %v", pages[0].Links)
		}
		if summary.Successful != 0 || summary.Failed != 1 {
			t.Errorf("summary counts = %d successful / %d failed, want 0/1",
				summary.Successful, summary.Failed)
		}
	})

	t.Run("zero page budget yields an empty crawl", func(t *testing.T) {
		t.Parallel()

		pages, summary := crawlSite(t, linkedSite(3), 2, 0, 2)

		if len(pages) != 0 {
			t.Fatalf("expected no pages with a zero budget, got %d", len(pages))
		}
		if summary.TotalPages != 0 {
			t.Errorf("summary total = %d, want 0", summary.TotalPages)
		}
	})

	t.Run("fetches each page exactly once despite link repetition", func(t *testing.T) {
		t.Parallel()

		// Every page links to every other page, so each URL is offered
		// many times by concurrent workers.
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body>")
			for i := 0; i < 6; i++ {
				fmt.Fprintf(w, `<a href="/p/%d">p%d</a><a href="/p/%d#frag">dup</a>`, i, i, i)
			}
			fmt.Fprint(w, "</body></html>")
		})

		pages, _ := crawlSite(t, mux, 4, 100, 8)

		seen := make(map[string]int)
		for _, p := range pages {
			seen[NormalizeURL(p.URL)]++
		}
		for u, n := range seen {
			if n != 1 {
				t.Errorf("url %s fetched %d times, want 1", u, n)
			}
		}
		// Root plus six distinct children.
		if len(seen) != 7 {
			t.Errorf("expected 7 distinct pages, got %d", len(seen))
		}
	})

	t.Run("assigns contiguous discovery ordinals", func(t *testing.T) {
		t.Parallel()

		pages, _ := crawlSite(t, linkedSite(8), 1, 100, 4)

		ordinals := make([]int, 0, len(pages))
		for _, p := range pages {
			ordinals = append(ordinals, int(p.Discovered))
		}
		sort.Ints(ordinals)
		for i, o := range ordinals {
			if o != i+1 {
				t.Fatalf("ordinals not contiguous from 1: %v", ordinals)
			}
		}
	})

	t.Run("repeated crawls of a static site agree", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(linkedSite(5))
		t.Cleanup(srv.Close)

		crawl := func() map[string]bool {
			fetcher := NewFetcher()
			frontier := NewFrontier(2, 100)
			engine := NewEngine(fetcher, frontier, WithWorkers(3))
			results := make(chan *model.PageResult, 100)
			if _, err := engine.Run(context.Background(), srv.URL+"/", results); err != nil {
				t.Fatalf("crawl failed: %v", err)
			}
			urls := make(map[string]bool)
			for r := range results {
				urls[NormalizeURL(r.URL)] = true
			}
			return urls
		}

		first, second := crawl(), crawl()
		if len(first) != len(second) {
			t.Fatalf("crawls disagree: %d vs %d pages", len(first), len(second))
		}
		for u := range first {
			if !second[u] {
				t.Errorf("url %s in first crawl but not second", u)
			}
		}
	})

	t.Run("finalizes with deadline reason when the context expires", func(t *testing.T) {
		t.Parallel()

		// A site with an unbounded link graph and a slow server, so the
		// deadline fires mid-crawl.
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(30 * time.Millisecond)
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<html><body><a href="%sa">next</a></body></html>`, r.URL.Path)
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()

		fetcher := NewFetcher()
		frontier := NewFrontier(1000, 1000)
		engine := NewEngine(fetcher, frontier, WithWorkers(2))

		results := make(chan *model.PageResult, 1000)
		summary, err := engine.Run(ctx, srv.URL+"/", results)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		for range results {
		}

		if summary.Reason != model.TerminationDeadline {
			t.Errorf("reason = %q, want %q", summary.Reason, model.TerminationDeadline)
		}
		if engine.State() != StateDone {
			t.Errorf("state = %v, want done", engine.State())
		}
	})

	t.Run("returns an error for an unusable seed", func(t *testing.T) {
		t.Parallel()

		engine := NewEngine(NewFetcher(), NewFrontier(1, 10))
		results := make(chan *model.PageResult, 1)
		if _, err := engine.Run(context.Background(), "://not-a-url", results); err == nil {
			t.Fatal("expected an error for an unparseable seed")
		}
		// The channel must still be closed on the error path.
		if _, open := <-results; open {
			t.Error("results channel left open after seed error")
		}
	})
}
