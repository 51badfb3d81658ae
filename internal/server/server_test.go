package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alvmarrod/wikipath/internal/config"
	"github.com/alvmarrod/wikipath/internal/memory"
	"github.com/alvmarrod/wikipath/internal/metrics"
	"github.com/alvmarrod/wikipath/internal/pathfinder"
	"github.com/alvmarrod/wikipath/internal/wikipedia"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	hits  []wikipedia.SearchHit
	err   error
	query string
	limit int
}

func (s *stubSearcher) Search(_ context.Context, query string, limit int) ([]wikipedia.SearchHit, error) {
	s.query, s.limit = query, limit
	return s.hits, s.err
}

func newTestServer(t *testing.T, searcher TitleSearcher) (*httptest.Server, *metrics.Tracker) {
	t.Helper()

	g := memory.NewGraph().
		AddLink("Alpha", "Beta").
		AddLink("Beta", "Gamma").
		AddPage("Island")

	searchCfg := config.Default().Search
	searchCfg.PauseDelayMs = 1

	reg := prometheus.NewRegistry()
	tracker := metrics.NewTracker(reg)

	srv, err := New(Config{
		PathFinder: pathfinder.NewPathfinder(searchCfg, g),
		Searcher:   searcher,
		Tracker:    tracker,
		Gatherer:   reg,
		ListenAddr: ":0",
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tracker
}

func getJSON(t *testing.T, u string, out interface{}) int {
	t.Helper()
	res, err := http.Get(u)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path finder has not been provided")
	assert.Contains(t, err.Error(), "listen address has not been specified")
}

func TestFindPathEndpoint(t *testing.T) {
	ts, tracker := newTestServer(t, nil)

	var res pathfinder.Result
	status := getJSON(t, ts.URL+"/api/path?start=Alpha&end=Gamma", &res)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, res.Found)
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, res.Path)

	status = getJSON(t, ts.URL+"/api/path?start=Alpha&end=Island", &res)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, res.Found)
	assert.Equal(t, []string{}, res.Path)

	var errRes errorResponse
	status = getJSON(t, ts.URL+"/api/path?start=Alpha&end="+url.QueryEscape("No Such Page"), &errRes)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, errRes.Error, "No Such Page")

	status = getJSON(t, ts.URL+"/api/path?start=Alpha", &errRes)
	assert.Equal(t, http.StatusBadRequest, status)

	snap := tracker.GetSnapshot()
	assert.Equal(t, 3, snap.SearchesStarted)
	assert.Equal(t, 1, snap.SearchesFound)
	assert.Equal(t, 1, snap.SearchesNotFound)
	assert.Equal(t, 1, snap.SearchesRejected)
}

func TestStreamEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/path/stream?start=Alpha&end=Gamma"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var messages []streamMessage
	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		messages = append(messages, msg)
		if msg.Type != "progress" {
			break
		}
	}

	require.Len(t, messages, 3)
	assert.Equal(t, "progress", messages[0].Type)
	assert.Equal(t, "Alpha", messages[0].Progress.CurrentPage)
	assert.Equal(t, "Beta", messages[1].Progress.CurrentPage)
	assert.Equal(t, "result", messages[2].Type)
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, messages[2].Result.Path)
}

func TestStreamEndpointReportsMissingPage(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/path/stream?start=Nope&end=Gamma"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, `start page "Nope" not found`)
}

func TestSearchEndpoint(t *testing.T) {
	searcher := &stubSearcher{hits: []wikipedia.SearchHit{{Title: "Alpha", Snippet: "first"}}}
	ts, _ := newTestServer(t, searcher)

	var hits []wikipedia.SearchHit
	status := getJSON(t, ts.URL+"/api/search?q=alp&limit=3", &hits)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, searcher.hits, hits)
	assert.Equal(t, "alp", searcher.query)
	assert.Equal(t, 3, searcher.limit)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/search?q=alp&limit=zero", nil))

	searcher.err = errors.New("upstream down")
	assert.Equal(t, http.StatusBadGateway, getJSON(t, ts.URL+"/api/search?q=alp", nil))
}

func TestSearchEndpointWithoutSearcher(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotImplemented, getJSON(t, ts.URL+"/api/search?q=x", nil))
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/healthz", &health))
	assert.Equal(t, "ok", health["status"])

	getJSON(t, ts.URL+"/api/path?start=Alpha&end=Gamma", nil)

	res, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	buf := new(strings.Builder)
	_, err = io.Copy(buf, res.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `wikipath_searches_total{outcome="found"} 1`)
}
