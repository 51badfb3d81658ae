package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/wikipath/internal/pathfinder"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds search statistics for export on exit
type Metrics struct {
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	SearchesStarted   int       `json:"searches_started"`
	SearchesFound     int       `json:"searches_found"`
	SearchesNotFound  int       `json:"searches_not_found"`
	SearchesRejected  int       `json:"searches_rejected"`
	SearchesCancelled int       `json:"searches_cancelled"`
	PagesFetched      int       `json:"pages_fetched"`
	PagesFailed       int       `json:"pages_failed"`
	LinksFetched      int       `json:"links_fetched"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason"`
}

// Tracker holds and manages search metrics, mirroring them to Prometheus
type Tracker struct {
	mu               sync.Mutex
	data             Metrics
	totalFetchTimeMs int64
	fetchCount       int

	searches      *prometheus.CounterVec
	pageFetches   *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	searchedPages prometheus.Histogram
}

// NewTracker creates a tracker whose collectors are registered on reg.
// A nil registerer keeps the collectors private to the tracker.
func NewTracker(reg prometheus.Registerer) *Tracker {
	t := &Tracker{
		data: Metrics{
			StartTime: time.Now(),
		},
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wikipath",
			Name:      "searches_total",
			Help:      "Path searches by outcome.",
		}, []string{"outcome"}),
		pageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wikipath",
			Name:      "page_fetches_total",
			Help:      "Link fetches by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wikipath",
			Name:      "page_fetch_duration_seconds",
			Help:      "Latency of link fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		searchedPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wikipath",
			Name:      "searched_pages",
			Help:      "Pages expanded per finished search.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		}),
	}

	if reg != nil {
		reg.MustRegister(t.searches, t.pageFetches, t.fetchDuration, t.searchedPages)
	}
	return t
}

// IncrementSearchesStarted increments the started searches counter
func (t *Tracker) IncrementSearchesStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.SearchesStarted++
}

// RecordFetch accounts one link fetch and its duration
func (t *Tracker) RecordFetch(duration time.Duration, links int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
	t.fetchDuration.Observe(duration.Seconds())

	if err != nil {
		t.data.PagesFailed++
		t.pageFetches.WithLabelValues("failed").Inc()
		return
	}
	t.data.PagesFetched++
	t.data.LinksFetched += links
	t.pageFetches.WithLabelValues("ok").Inc()
}

// RecordSearch accounts a finished search by outcome
func (t *Tracker) RecordSearch(res pathfinder.Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	outcome := "not_found"
	switch {
	case errors.Is(err, pathfinder.ErrPageNotFound):
		outcome = "rejected"
		t.data.SearchesRejected++
	case res.Reason == pathfinder.ReasonCancelled:
		outcome = "cancelled"
		t.data.SearchesCancelled++
	case res.Found:
		outcome = "found"
		t.data.SearchesFound++
	default:
		t.data.SearchesNotFound++
	}

	t.searches.WithLabelValues(outcome).Inc()
	t.searchedPages.Observe(float64(res.SearchedPages))
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs

	// Calculate average fetch time
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Finalize metrics
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.data.TotalFetchTimeMs = t.totalFetchTimeMs

	if t.fetchCount > 0 {
		t.data.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic log lines
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Searches: %d started, %d found, %d not found | Pages: %d fetched, %d failed | Links: %d",
		t.data.SearchesStarted,
		t.data.SearchesFound,
		t.data.SearchesNotFound,
		t.data.PagesFetched,
		t.data.PagesFailed,
		t.data.LinksFetched,
	)
}
