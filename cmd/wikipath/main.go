package main

import (
	"fmt"
	"os"

	"github.com/alvmarrod/wikipath/internal/config"
	"github.com/alvmarrod/wikipath/internal/metrics"
	"github.com/alvmarrod/wikipath/internal/pathfinder"
	"github.com/alvmarrod/wikipath/internal/version"
	"github.com/alvmarrod/wikipath/internal/wikipedia"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Global flags
var (
	configPath  string
	debug       bool
	maxDepth    int
	maxPages    int
	apiURL      string
	metricsPath string
)

// app bundles the components shared by every subcommand
type app struct {
	cfg      *config.Config
	logger   *logrus.Entry
	registry *prometheus.Registry
	tracker  *metrics.Tracker
	client   *wikipedia.Client
	finder   *pathfinder.Pathfinder
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wikipath",
		Short: "Find a shortest chain of links between two Wikipedia articles",
		Long: `wikipath explores the live Wikipedia link graph breadth-first to find a
shortest chain of article links from one page to another.

Examples:
  # Find a path between two articles
  wikipath find "Go (programming language)" "Ken Thompson"

  # Look up article titles
  wikipath search "alan turing"

  # Serve the HTTP and websocket API
  wikipath serve --config config.json`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a JSON config file (default: built-in defaults)")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.IntVar(&maxDepth, "max-depth", 0, "Maximum number of link hops (overrides config)")
	flags.IntVar(&maxPages, "max-pages", 0, "Maximum number of pages to expand (overrides config)")
	flags.StringVar(&apiURL, "api-url", "", "MediaWiki action API endpoint (overrides config)")
	flags.StringVar(&metricsPath, "metrics-path", "", "Write run metrics as JSON to this file (overrides config)")

	root.AddCommand(newFindCmd(), newSearchCmd(), newServeCmd())
	return root
}

// loadConfig reads the config file, if any, and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("max-depth") {
		cfg.Search.MaxDepth = maxDepth
	}
	if flags.Changed("max-pages") {
		cfg.Search.MaxSearchedPages = maxPages
	}
	if flags.Changed("api-url") {
		cfg.Wikipedia.APIURL = apiURL
	}
	if flags.Changed("metrics-path") {
		cfg.MetricsPath = metricsPath
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logrus.NewEntry(logger).WithField("app", "wikipath")
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := setupLogging(cfg.LogLevel)
	logger.Debugf("Wikipath v%s: api=%s, depth=%d, pages=%d",
		version.Version, cfg.Wikipedia.APIURL, cfg.Search.MaxDepth, cfg.Search.MaxSearchedPages)

	client, err := wikipedia.NewClient(cfg.Wikipedia, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create wikipedia client: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tracker := metrics.NewTracker(registry)

	finder := pathfinder.NewPathfinder(
		cfg.Search,
		metrics.InstrumentProvider(client, tracker),
		pathfinder.WithLogger(logger.WithField("component", "pathfinder")),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		tracker:  tracker,
		client:   client,
		finder:   finder,
	}, nil
}

// writeMetrics exports run metrics when a metrics path is configured
func (a *app) writeMetrics(reason string) {
	if a.cfg.MetricsPath == "" {
		return
	}
	if err := a.tracker.WriteToFile(a.cfg.MetricsPath, reason); err != nil {
		a.logger.Errorf("Failed to write metrics: %v", err)
		return
	}
	a.logger.Infof("Metrics written to %s", a.cfg.MetricsPath)
}
