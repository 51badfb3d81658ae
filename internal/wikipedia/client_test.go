package wikipedia

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/alvmarrod/wikipath/internal/config"
	"github.com/alvmarrod/wikipath/internal/pathfinder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWiki serves a tiny subset of the MediaWiki action API
type fakeWiki struct {
	mu      sync.Mutex
	links   map[string][]string
	failing map[string]bool
	// failingLinks answers 500 only to prop=links requests
	failingLinks map[string]bool
	requests     []map[string]string
}

func newFakeWiki() *fakeWiki {
	return &fakeWiki{
		links: map[string][]string{
			"Go (programming language)": {
				"Robert Griesemer", "Category:Programming languages", "List of programming languages",
				"Rob Pike", "Ken Thompson",
			},
			"Rob Pike": {},
		},
		failing: map[string]bool{"Broken": true},
	}
}

func (f *fakeWiki) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f.mu.Lock()
	rec := make(map[string]string)
	for k := range q {
		rec[k] = q.Get(k)
	}
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	if q.Get("action") != "query" || q.Get("format") != "json" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	title := q.Get("titles")
	if f.failing[title] || f.failing[q.Get("srsearch")] {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
		return
	}

	if q.Get("prop") == "links" && f.failingLinks[title] {
		http.Error(w, "links backend unavailable", http.StatusInternalServerError)
		return
	}

	if q.Get("list") == "search" {
		writeJSON(w, map[string]any{
			"query": map[string]any{
				"search": []map[string]any{
					{"title": "Go (programming language)", "pageid": 1, "snippet": `<span class="searchmatch">Go</span> is a language`},
					{"title": "Go (game)", "pageid": 2, "snippet": "board <b>game</b>"},
				},
			},
		})
		return
	}

	if title == "Bad API" {
		writeJSON(w, map[string]any{"error": map[string]any{"code": "badvalue", "info": "nope"}})
		return
	}

	links, ok := f.links[title]
	if !ok {
		writeJSON(w, map[string]any{
			"query": map[string]any{
				"pages": map[string]any{"-1": map[string]any{"ns": 0, "title": title, "missing": ""}},
			},
		})
		return
	}

	pageBody := map[string]any{"pageid": 42, "ns": 0, "title": title}
	if q.Get("prop") == "links" {
		limit, _ := strconv.Atoi(q.Get("pllimit"))
		var out []map[string]any
		for i, l := range links {
			if limit > 0 && i >= limit {
				break
			}
			out = append(out, map[string]any{"ns": 0, "title": l})
		}
		if out != nil {
			pageBody["links"] = out
		}
	}
	writeJSON(w, map[string]any{
		"query": map[string]any{"pages": map[string]any{"42": pageBody}},
	})
}

func (f *fakeWiki) lastRequest() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakeWiki) {
	t.Helper()
	wiki := newFakeWiki()
	srv := httptest.NewServer(wiki)
	t.Cleanup(srv.Close)

	cfg := config.Default().Wikipedia
	cfg.APIURL = srv.URL + "/w/api.php"

	client, err := NewClient(cfg, nil)
	require.NoError(t, err)
	return client, wiki
}

func TestNewClientRejectsBadURL(t *testing.T) {
	cfg := config.Default().Wikipedia
	cfg.APIURL = "not a url"

	_, err := NewClient(cfg, nil)
	assert.ErrorContains(t, err, "invalid api_url")
}

func TestPageExists(t *testing.T) {
	client, wiki := newTestClient(t)
	ctx := context.Background()

	assert.True(t, client.PageExists(ctx, "Rob Pike"))
	assert.Equal(t, "Rob Pike", wiki.lastRequest()["titles"])
	assert.False(t, client.PageExists(ctx, "Does Not Exist"))
	assert.False(t, client.PageExists(ctx, "Broken"), "HTTP failures map to missing")
	assert.False(t, client.PageExists(ctx, "Bad API"), "API errors map to missing")
}

func TestLinksFiltersAndCaps(t *testing.T) {
	client, wiki := newTestClient(t)
	ctx := context.Background()

	links, err := client.Links(ctx, "Go (programming language)", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Robert Griesemer", "Rob Pike", "Ken Thompson"}, links)

	req := wiki.lastRequest()
	assert.Equal(t, "links", req["prop"])
	assert.Equal(t, "0", req["plnamespace"])
	assert.Equal(t, "500", req["pllimit"])

	links, err = client.Links(ctx, "Go (programming language)", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Robert Griesemer"}, links)
}

func TestLinksEmptyAndMissingPages(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	links, err := client.Links(ctx, "Rob Pike", 10)
	require.NoError(t, err)
	assert.Empty(t, links)

	links, err = client.Links(ctx, "Nowhere", 10)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestLinksErrors(t *testing.T) {
	client, _ := newTestClient(t)

	links, err := client.Links(context.Background(), "Broken", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{}, links)

	links, err = client.Links(context.Background(), "Bad API", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{}, links)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Links(ctx, "Rob Pike", 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailedLinkFetchCountsAsSearched(t *testing.T) {
	client, wiki := newTestClient(t)
	wiki.links["Hub"] = []string{"Rob Pike"}
	wiki.failingLinks = map[string]bool{"Hub": true}

	pf := pathfinder.NewPathfinder(config.Default().Search, client)
	res, err := pf.FindPath(context.Background(), "Hub", "Rob Pike", nil)
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.Equal(t, 1, res.SearchedPages)
	assert.Equal(t, 0, res.FailedPages)
	assert.Equal(t, pathfinder.ReasonQueueExhausted, res.Reason)
}

func TestSearch(t *testing.T) {
	client, wiki := newTestClient(t)

	hits, err := client.Search(context.Background(), "go", 0)
	require.NoError(t, err)
	assert.Equal(t, []SearchHit{
		{Title: "Go (programming language)", Snippet: "Go is a language"},
		{Title: "Go (game)", Snippet: "board game"},
	}, hits)

	req := wiki.lastRequest()
	assert.Equal(t, "search", req["list"])
	assert.Equal(t, "8", req["srlimit"])
	assert.Equal(t, "snippet", req["srprop"])
}

func TestSearchReportsHTTPStatus(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Search(context.Background(), "Broken", 3)
	require.Error(t, err)
	assert.ErrorContains(t, err, "wikipedia API request failed: status 500")
}

func TestSearchBlankQuery(t *testing.T) {
	client, wiki := newTestClient(t)

	hits, err := client.Search(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Empty(t, wiki.requests)
}

func TestFilterLinks(t *testing.T) {
	in := []string{"A", "", "Talk:A", "List of things", "B", "Listing", "C"}

	assert.Equal(t, []string{"A", "B", "Listing", "C"}, FilterLinks(in, 0))
	assert.Equal(t, []string{"A", "B"}, FilterLinks(in, 2))
	assert.True(t, IsExcluded("Wikipedia:About"))
	assert.False(t, IsExcluded("Listing"))
}
