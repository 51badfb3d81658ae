package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alvmarrod/wikipath/internal/metrics"
	"github.com/alvmarrod/wikipath/internal/pathfinder"
	"github.com/alvmarrod/wikipath/internal/wikipedia"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	pathEndpoint    = "/api/path"
	streamEndpoint  = "/api/path/stream"
	searchEndpoint  = "/api/search"
	healthEndpoint  = "/healthz"
	metricsEndpoint = "/metrics"
)

// PathFinder runs a single path search
type PathFinder interface {
	FindPath(ctx context.Context, start, end string, onProgress pathfinder.ProgressFunc) (pathfinder.Result, error)
}

// TitleSearcher looks up article titles for autocompletion
type TitleSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]wikipedia.SearchHit, error)
}

// Config encapsulates the settings for the HTTP service.
type Config struct {
	// The engine used to answer path requests.
	PathFinder PathFinder

	// An API for title search. If not specified the search endpoint
	// responds with 501.
	Searcher TitleSearcher

	// Search statistics. If not specified a private tracker is used.
	Tracker *metrics.Tracker

	// Source for the /metrics endpoint. If not specified the endpoint is
	// not registered.
	Gatherer prometheus.Gatherer

	// The address to listen for incoming requests.
	ListenAddr string

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.PathFinder == nil {
		err = multierror.Append(err, fmt.Errorf("path finder has not been provided"))
	}
	if cfg.ListenAddr == "" {
		err = multierror.Append(err, fmt.Errorf("listen address has not been specified"))
	}
	if cfg.Tracker == nil {
		cfg.Tracker = metrics.NewTracker(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}
	return err
}

// Server exposes path searches over HTTP and websockets
type Server struct {
	cfg      Config
	router   *mux.Router
	upgrader websocket.Upgrader
}

// New creates a server with the specified config
func New(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("server: config validation failed: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	s.router.Use(s.logRequests)
	s.router.HandleFunc(pathEndpoint, s.findPath).Methods(http.MethodGet)
	s.router.HandleFunc(streamEndpoint, s.streamPath).Methods(http.MethodGet)
	s.router.HandleFunc(searchEndpoint, s.searchTitles).Methods(http.MethodGet)
	s.router.HandleFunc(healthEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if cfg.Gatherer != nil {
		s.router.Handle(metricsEndpoint, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves requests until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.cfg.Logger.WithField("addr", s.cfg.ListenAddr).Info("starting HTTP server")
	if err = srv.Serve(l); err == http.ErrServerClosed {
		err = nil
	}
	return err
}

type errorResponse struct {
	Error string `json:"error"`
}

// streamMessage is one websocket frame of a streamed search
type streamMessage struct {
	Type     string               `json:"type"`
	Progress *pathfinder.Progress `json:"progress,omitempty"`
	Result   *pathfinder.Result   `json:"result,omitempty"`
	Error    string               `json:"error,omitempty"`
}

func endpoints(r *http.Request) (string, string, error) {
	start := strings.TrimSpace(r.URL.Query().Get("start"))
	end := strings.TrimSpace(r.URL.Query().Get("end"))
	if start == "" || end == "" {
		return "", "", fmt.Errorf("both start and end query parameters are required")
	}
	return start, end, nil
}

func (s *Server) runSearch(ctx context.Context, start, end string, onProgress pathfinder.ProgressFunc) (pathfinder.Result, error) {
	s.cfg.Tracker.IncrementSearchesStarted()
	res, err := s.cfg.PathFinder.FindPath(ctx, start, end, onProgress)
	s.cfg.Tracker.RecordSearch(res, err)
	return res, err
}

func (s *Server) findPath(w http.ResponseWriter, r *http.Request) {
	start, end, err := endpoints(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.runSearch(r.Context(), start, end, nil)
	switch {
	case errors.Is(err, pathfinder.ErrPageNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case err != nil:
		s.cfg.Logger.WithError(err).Warn("path search failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "search failed"})
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) streamPath(w http.ResponseWriter, r *http.Request) {
	start, end, err := endpoints(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.cfg.Logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Any read error means the client went away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	res, err := s.runSearch(ctx, start, end, func(p pathfinder.Progress) {
		if writeErr := conn.WriteJSON(streamMessage{Type: "progress", Progress: &p}); writeErr != nil {
			cancel()
		}
	})

	msg := streamMessage{Type: "result", Result: &res}
	if err != nil {
		msg = streamMessage{Type: "error", Error: err.Error()}
	}
	if ctx.Err() != nil {
		return
	}
	_ = conn.WriteJSON(msg)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) searchTitles(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Searcher == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "title search is not available"})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	hits, err := s.cfg.Searcher.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "title search failed"})
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.cfg.Logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("handled request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
