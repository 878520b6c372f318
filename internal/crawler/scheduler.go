package crawler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scopecrawl/scopecrawl/internal/model"
)

// CrawlState tracks the engine's lifecycle. Only StateDone is terminal; all
// three triggers into StateFinalizing (budget, quiescence, deadline) are
// normal, non-error exits.
type CrawlState int32

// Engine lifecycle states.
const (
	// StateInit is the state before Run is called.
	StateInit CrawlState = iota

	// StateRunning means workers are actively fetching.
	StateRunning

	// StateFinalizing means workers have stopped and the summary is being
	// assembled.
	StateFinalizing

	// StateDone means the crawl is complete and the result stream is closed.
	StateDone
)

// String returns a human-readable state name.
func (s CrawlState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Engine is the scheduler: a fixed pool of workers pulling tasks from the
// frontier, fetching them, feeding discovered internal links back, and
// streaming completed page records to the results channel.
//
// Results are delivered in completion order. Each carries a monotonically
// increasing Discovered ordinal assigned at emission.
type Engine struct {
	fetcher  *Fetcher
	frontier *Frontier
	workers  int
	logger   *slog.Logger

	seq   atomic.Int64
	state atomic.Int32

	mu      sync.Mutex
	summary model.CrawlSummary
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWorkers sets the number of concurrent workers. Values below one are
// ignored.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithEngineLogger sets the structured logger used by the engine.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine over the given fetcher and frontier.
func NewEngine(fetcher *Fetcher, frontier *Frontier, opts ...EngineOption) *Engine {
	e := &Engine{
		fetcher:  fetcher,
		frontier: frontier,
		workers:  10,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() CrawlState {
	return CrawlState(e.state.Load())
}

// Run crawls from the seed URL, streaming each completed page record to the
// results channel, and returns the finalized summary. The channel is closed
// when the crawl finishes, before the summary is returned.
//
// The context's deadline is the overall crawl deadline: when it fires, no
// new tasks are granted, in-flight fetches finish or hit their own
// per-request timeout, and the crawl finalizes normally: deadline expiry is
// recorded in the summary, not returned as an error. Run returns an error
// only for an unusable seed URL.
func (e *Engine) Run(ctx context.Context, seedURL string, results chan<- *model.PageResult) (*model.CrawlSummary, error) {
	start := time.Now()

	extractor, err := NewLinkExtractor(seedURL)
	if err != nil {
		close(results)
		return nil, err
	}

	e.state.Store(int32(StateRunning))

	// Cancellation propagates to the frontier, which unblocks Take for
	// every worker. In-flight fetches are deliberately not aborted; they
	// run to completion or to their per-request timeout and their results
	// are still emitted.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.frontier.Cancel()
		case <-watchDone:
		}
	}()

	if !e.frontier.Offer(seedURL, 0, "") {
		e.logger.Warn("seed rejected by frontier", "url", seedURL)
	}

	g := new(errgroup.Group)
	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			e.workerLoop(ctx, extractor, results)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Workers never return errors; failures live on results

	close(watchDone)
	e.state.Store(int32(StateFinalizing))

	e.mu.Lock()
	summary := e.summary
	e.mu.Unlock()
	summary.Duration = time.Since(start)
	summary.Reason = e.terminationReason(ctx)

	close(results)
	e.state.Store(int32(StateDone))

	e.logger.Info("crawl finished",
		"pages", summary.TotalPages,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"reason", summary.Reason,
		"duration", summary.Duration,
	)
	return &summary, nil
}

// workerLoop is one worker: take, fetch, extract, feed back, emit, repeat
// until the frontier signals permanent emptiness.
func (e *Engine) workerLoop(ctx context.Context, extractor *LinkExtractor, results chan<- *model.PageResult) {
	for {
		task, ok := e.frontier.Take()
		if !ok {
			return
		}

		result := e.process(ctx, task, extractor)

		// Feed discovered internal links back before settling the task,
		// so the frontier never looks quiescent while offers are pending.
		if result.Succeeded() && task.Depth < e.frontier.maxDepth {
			for _, link := range result.InternalLinks {
				e.frontier.Offer(link, task.Depth+1, task.URL)
			}
		}

		result.Discovered = e.seq.Add(1)

		e.mu.Lock()
		e.summary.Observe(result)
		e.mu.Unlock()

		results <- result
		e.frontier.Done()
	}
}

// process executes one fetch+extract cycle and assembles the page record.
// Every failure mode ends up on the record; nothing propagates.
func (e *Engine) process(ctx context.Context, task model.CrawlTask, extractor *LinkExtractor) *model.PageResult {
	result := &model.PageResult{
		URL:           task.URL,
		Depth:         task.Depth,
		ParentURL:     task.Parent,
		Links:         []string{},
		InternalLinks: []string{},
		ExternalLinks: []string{},
	}

	// The run context is detached here so that cancellation drains
	// in-flight requests instead of aborting them; the per-request timeout
	// still bounds each fetch.
	fetched, err := e.fetcher.Fetch(context.WithoutCancel(ctx), task.URL)
	result.FetchedAt = time.Now()

	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			result.ErrorKind = fetchErr.Kind
			result.Error = fetchErr.Err.Error()
		} else {
			result.ErrorKind = model.ErrKindRequest
			result.Error = err.Error()
		}
		e.logger.Debug("fetch failed", "url", task.URL, "kind", result.ErrorKind, "error", result.Error)
		return result
	}

	result.StatusCode = fetched.StatusCode
	result.Headers = fetched.Headers
	result.Redirects = fetched.Redirects
	if fetched.FinalURL != task.URL {
		result.FinalURL = fetched.FinalURL
	}

	// Links are extracted only from successful HTML responses; an error
	// page's body is not a navigable document.
	if result.Succeeded() && isHTMLContentType(fetched.Headers.Get("Content-Type")) {
		parsed, err := extractor.Extract(strings.NewReader(string(fetched.Body)), task.URL)
		if err == nil {
			result.Title = parsed.Title
			result.Links = parsed.Links
			result.InternalLinks = parsed.InternalLinks
			result.ExternalLinks = parsed.ExternalLinks
			result.Snapshot = parsed.VisibleText
			result.HasLoginForm = parsed.HasPasswordInput
		}
	}

	e.logger.Debug("fetched page",
		"url", task.URL,
		"status", result.StatusCode,
		"depth", task.Depth,
		"links", len(result.Links),
	)
	return result
}

// terminationReason maps the end-of-run conditions onto the summary's
// termination reason.
func (e *Engine) terminationReason(ctx context.Context) model.TerminationReason {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return model.TerminationDeadline
	case ctx.Err() != nil:
		return model.TerminationCancelled
	case e.frontier.BudgetExhausted():
		return model.TerminationPageBudget
	default:
		return model.TerminationExhausted
	}
}

// isHTMLContentType reports whether a Content-Type header denotes HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
