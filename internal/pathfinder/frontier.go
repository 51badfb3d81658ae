package pathfinder

// Entry is a page discovered during a search together with the chain of
// titles that reached it, start and page inclusive
type Entry struct {
	Page  string
	Path  []string
	Depth int
}

// Frontier implements the BFS queue with first-discovery deduplication.
// It belongs to a single search and is not safe for concurrent use.
type Frontier struct {
	items   []Entry
	head    int
	visited map[string]bool // key: normalized title
}

// NewFrontier creates an empty frontier
func NewFrontier() *Frontier {
	return &Frontier{
		items:   make([]Entry, 0),
		visited: make(map[string]bool),
	}
}

// Push adds an entry if its title has not been enqueued before.
// Returns true if added, false if duplicate
func (f *Frontier) Push(entry Entry) bool {
	key := NormalizeTitle(entry.Page)
	if f.visited[key] {
		return false
	}

	f.visited[key] = true
	f.items = append(f.items, entry)
	return true
}

// Pop removes and returns the oldest entry.
// Returns (empty, false) when the frontier is empty
func (f *Frontier) Pop() (Entry, bool) {
	if f.head >= len(f.items) {
		return Entry{}, false
	}

	entry := f.items[f.head]
	f.items[f.head] = Entry{}
	f.head++

	// Reclaim the consumed prefix once it dominates the backing array
	if f.head > 64 && f.head*2 >= len(f.items) {
		f.items = append(f.items[:0:0], f.items[f.head:]...)
		f.head = 0
	}

	return entry, true
}

// Size returns the number of entries waiting to be expanded
func (f *Frontier) Size() int {
	return len(f.items) - f.head
}

// IsEmpty returns true if no entries are waiting
func (f *Frontier) IsEmpty() bool {
	return f.Size() == 0
}

// Seen reports whether a title was ever enqueued
func (f *Frontier) Seen(title string) bool {
	return f.visited[NormalizeTitle(title)]
}

// Visited returns the number of distinct titles enqueued so far
func (f *Frontier) Visited() int {
	return len(f.visited)
}

// child builds the entry for a link discovered while expanding parent.
// The parent's path is copied so entries never share backing arrays.
func child(parent Entry, link string) Entry {
	path := make([]string, len(parent.Path)+1)
	copy(path, parent.Path)
	path[len(parent.Path)] = link

	return Entry{
		Page:  link,
		Path:  path,
		Depth: parent.Depth + 1,
	}
}
