package memory

import (
	"context"
	"fmt"
	"sync"
)

// Graph holds a directed article link graph in memory.
// It satisfies pathfinder.LinkProvider and records how it was queried.
type Graph struct {
	pages       map[string]bool     // title -> exists
	links       map[string][]string // title -> outbound titles in insertion order
	failures    map[string]error    // title -> error returned by Links
	linkCalls   map[string]int      // title -> Links invocations
	existsCalls int
	mu          sync.RWMutex
}

// NewGraph creates an empty in-memory graph
func NewGraph() *Graph {
	return &Graph{
		pages:     make(map[string]bool),
		links:     make(map[string][]string),
		failures:  make(map[string]error),
		linkCalls: make(map[string]int),
	}
}

// AddPage registers pages that exist but may have no links
func (g *Graph) AddPage(titles ...string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, title := range titles {
		g.pages[title] = true
	}
	return g
}

// AddLink records links from one page to others, creating pages as needed
func (g *Graph) AddLink(from string, to ...string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pages[from] = true
	for _, target := range to {
		g.pages[target] = true
		g.links[from] = append(g.links[from], target)
	}
	return g
}

// FailLinks makes every Links call for title return err
func (g *Graph) FailLinks(title string, err error) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pages[title] = true
	g.failures[title] = err
	return g
}

// PageExists reports whether title was registered
func (g *Graph) PageExists(ctx context.Context, title string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.existsCalls++
	if ctx.Err() != nil {
		return false
	}
	return g.pages[title]
}

// Links returns up to limit outbound links of title in insertion order
func (g *Graph) Links(ctx context.Context, title string, limit int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.linkCalls[title]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := g.failures[title]; ok {
		return nil, fmt.Errorf("fetch links for %q: %w", title, err)
	}

	out := g.links[title]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	// Return a copy to prevent external modifications
	links := make([]string, len(out))
	copy(links, out)
	return links, nil
}

// LinkCalls returns how many times Links was called for title
func (g *Graph) LinkCalls(title string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.linkCalls[title]
}

// TotalLinkCalls returns the number of Links calls across all titles
func (g *Graph) TotalLinkCalls() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	total := 0
	for _, n := range g.linkCalls {
		total += n
	}
	return total
}

// ExistsCalls returns the number of PageExists calls
func (g *Graph) ExistsCalls() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.existsCalls
}

// GetStats returns current graph statistics
func (g *Graph) GetStats() (pageCount, linkCount int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, targets := range g.links {
		linkCount += len(targets)
	}
	return len(g.pages), linkCount
}
