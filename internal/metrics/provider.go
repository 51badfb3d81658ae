package metrics

import (
	"context"
	"time"

	"github.com/alvmarrod/wikipath/internal/pathfinder"
)

var _ pathfinder.LinkProvider = (*instrumentedProvider)(nil)

type instrumentedProvider struct {
	next    pathfinder.LinkProvider
	tracker *Tracker
}

// InstrumentProvider wraps a link provider so every link fetch is timed
// and counted on t
func InstrumentProvider(next pathfinder.LinkProvider, t *Tracker) pathfinder.LinkProvider {
	return &instrumentedProvider{next: next, tracker: t}
}

func (p *instrumentedProvider) PageExists(ctx context.Context, title string) bool {
	return p.next.PageExists(ctx, title)
}

func (p *instrumentedProvider) Links(ctx context.Context, title string, limit int) ([]string, error) {
	start := time.Now()
	links, err := p.next.Links(ctx, title, limit)
	p.tracker.RecordFetch(time.Since(start), len(links), err)
	return links, err
}
