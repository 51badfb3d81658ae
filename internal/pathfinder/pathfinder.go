package pathfinder

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/alvmarrod/wikipath/internal/config"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// LinkProvider gives read access to the article link graph.
//
// PageExists never fails: lookup errors are reported as a missing page.
// Links returns at most limit outbound article titles in provider order.
type LinkProvider interface {
	PageExists(ctx context.Context, title string) bool
	Links(ctx context.Context, title string, limit int) ([]string, error)
}

// Progress is emitted once for every entry taken off the frontier
type Progress struct {
	CurrentPage   string `json:"current_page"`
	SearchedPages int    `json:"searched_pages"`
	QueueSize     int    `json:"queue_size"`
	Depth         int    `json:"depth"`
}

// ProgressFunc receives progress snapshots; it runs on the search goroutine
type ProgressFunc func(Progress)

// Reason describes why a search stopped
type Reason string

const (
	ReasonSamePage       Reason = "same_page"
	ReasonFound          Reason = "found"
	ReasonQueueExhausted Reason = "queue_exhausted"
	ReasonPageBudget     Reason = "page_budget_exhausted"
	ReasonCancelled      Reason = "cancelled"
	ReasonMissingPage    Reason = "page_not_found"
)

// Result is the outcome of a search
type Result struct {
	Path          []string `json:"path"`
	Found         bool     `json:"found"`
	SearchedPages int      `json:"searched_pages"`
	FailedPages   int      `json:"failed_pages"`
	TimeElapsedMs int64    `json:"time_elapsed_ms"`
	Reason        Reason   `json:"reason"`
}

// Pathfinder runs bounded breadth-first searches over a LinkProvider.
// A Pathfinder holds no per-search state and may serve concurrent searches.
type Pathfinder struct {
	cfg      config.SearchConfig
	provider LinkProvider
	clock    clock.Clock
	logger   *logrus.Entry
}

// Option customises a Pathfinder
type Option func(*Pathfinder)

// WithClock sets the clock used for pacing and elapsed time
func WithClock(clk clock.Clock) Option {
	return func(p *Pathfinder) { p.clock = clk }
}

// WithLogger sets the logger; searches discard logs by default
func WithLogger(logger *logrus.Entry) Option {
	return func(p *Pathfinder) { p.logger = logger }
}

// NewPathfinder creates a pathfinder bounded by cfg
func NewPathfinder(cfg config.SearchConfig, provider LinkProvider, opts ...Option) *Pathfinder {
	p := &Pathfinder{
		cfg:      cfg,
		provider: provider,
		clock:    clock.WallClock,
		logger:   logrus.NewEntry(&logrus.Logger{Out: io.Discard}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// search is the state of one FindPath invocation
type search struct {
	frontier *Frontier
	searched int
	failed   int
	started  time.Time
}

func (p *Pathfinder) result(s *search, reason Reason, path []string) Result {
	if path == nil {
		path = []string{}
	}
	return Result{
		Path:          path,
		Found:         reason == ReasonFound || reason == ReasonSamePage,
		SearchedPages: s.searched,
		FailedPages:   s.failed,
		TimeElapsedMs: p.clock.Now().Sub(s.started).Milliseconds(),
		Reason:        reason,
	}
}

// FindPath searches for a shortest chain of links leading from start to end.
//
// The only error returned for a completed search is a *NotFoundError when an
// endpoint does not exist. If ctx is cancelled the partial result is
// returned along with ctx.Err().
func (p *Pathfinder) FindPath(ctx context.Context, start, end string, onProgress ProgressFunc) (Result, error) {
	s := &search{started: p.clock.Now()}

	if SameTitle(start, end) {
		return p.result(s, ReasonSamePage, []string{start}), nil
	}

	logger := p.logger.WithFields(logrus.Fields{
		"search_id": uuid.NewString(),
		"start":     start,
		"end":       end,
	})

	if err := p.checkEndpoints(ctx, start, end); err != nil {
		reason := ReasonMissingPage
		if ctx.Err() != nil {
			reason = ReasonCancelled
		}
		logger.WithError(err).Info("Search rejected")
		return p.result(s, reason, nil), err
	}

	logger.Infof("Starting search (max_depth=%d, max_pages=%d)", p.cfg.MaxDepth, p.cfg.MaxSearchedPages)

	s.frontier = NewFrontier()
	s.frontier.Push(Entry{Page: start, Path: []string{start}, Depth: 0})

	for !s.frontier.IsEmpty() && s.searched < p.cfg.MaxSearchedPages {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Search cancelled after %d pages", s.searched)
			return p.result(s, ReasonCancelled, nil), err
		}

		current, _ := s.frontier.Pop()

		if onProgress != nil {
			onProgress(Progress{
				CurrentPage:   current.Page,
				SearchedPages: s.searched,
				QueueSize:     s.frontier.Size(),
				Depth:         current.Depth + 1,
			})
		}

		if current.Depth >= p.cfg.MaxDepth {
			continue
		}

		links, err := p.provider.Links(ctx, current.Page, p.cfg.FetchLinkLimit)
		if err != nil {
			if ctx.Err() != nil {
				return p.result(s, ReasonCancelled, nil), ctx.Err()
			}
			s.failed++
			logger.WithField("page", current.Page).Warnf("Error processing page, skipping: %v", err)
			continue
		}
		s.searched++

		for _, link := range links {
			if SameTitle(link, end) {
				path := make([]string, len(current.Path)+1)
				copy(path, current.Path)
				path[len(current.Path)] = end

				res := p.result(s, ReasonFound, path)
				logger.Infof("Path found: %s (%d pages, %dms)", strings.Join(path, " -> "), res.SearchedPages, res.TimeElapsedMs)
				return res, nil
			}
		}

		if len(links) > p.cfg.MaxLinksPerPage {
			links = links[:p.cfg.MaxLinksPerPage]
		}
		enqueued := 0
		for _, link := range links {
			if s.frontier.Seen(link) {
				continue
			}
			s.frontier.Push(child(current, link))
			enqueued++
		}

		logger.WithField("page", current.Page).Debugf("Expanded (depth=%d, links=%d, enqueued=%d, queue=%d, visited=%d)",
			current.Depth, len(links), enqueued, s.frontier.Size(), s.frontier.Visited())

		if p.cfg.PauseEvery > 0 && p.cfg.PauseDelayMs > 0 && s.searched%p.cfg.PauseEvery == 0 {
			select {
			case <-ctx.Done():
				return p.result(s, ReasonCancelled, nil), ctx.Err()
			case <-p.clock.After(p.cfg.PauseDelay()):
			}
		}
	}

	reason := ReasonQueueExhausted
	if !s.frontier.IsEmpty() {
		reason = ReasonPageBudget
	}

	res := p.result(s, reason, nil)
	logger.Infof("No path found: %s after %d pages in %dms (%d titles discovered)",
		reason, res.SearchedPages, res.TimeElapsedMs, s.frontier.Visited())
	return res, nil
}

// checkEndpoints verifies both titles concurrently; a missing start title
// takes precedence over a missing end title
func (p *Pathfinder) checkEndpoints(ctx context.Context, start, end string) error {
	var startExists, endExists bool

	var g errgroup.Group
	g.Go(func() error {
		startExists = strings.TrimSpace(start) != "" && p.provider.PageExists(ctx, start)
		return nil
	})
	g.Go(func() error {
		endExists = strings.TrimSpace(end) != "" && p.provider.PageExists(ctx, end)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if !startExists {
		return &NotFoundError{Endpoint: EndpointStart, Title: start}
	}
	if !endExists {
		return &NotFoundError{Endpoint: EndpointEnd, Title: end}
	}
	return nil
}
