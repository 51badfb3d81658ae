package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config holds all runtime configuration parameters
type Config struct {
	Search      SearchConfig    `json:"search"`
	Wikipedia   WikipediaConfig `json:"wikipedia"`
	LogLevel    string          `json:"log_level"`
	MetricsPath string          `json:"metrics_path"`
	ListenAddr  string          `json:"listen_addr"`
}

// SearchConfig bounds a single path search
type SearchConfig struct {
	MaxDepth         int `json:"max_depth"`
	MaxSearchedPages int `json:"max_searched_pages"`
	MaxLinksPerPage  int `json:"max_links_per_page"`
	FetchLinkLimit   int `json:"fetch_link_limit"`
	PauseEvery       int `json:"pause_every"`
	PauseDelayMs     int `json:"pause_delay_ms"`
}

// WikipediaConfig describes how to reach the MediaWiki API
type WikipediaConfig struct {
	APIURL           string `json:"api_url"`
	UserAgent        string `json:"user_agent"`
	RequestTimeoutMs int    `json:"request_timeout_ms"`
	SearchLimit      int    `json:"search_limit"`
}

const (
	DefaultPauseDelayMs = 100

	DefaultAPIURL    = "https://en.wikipedia.org/w/api.php"
	DefaultUserAgent = "wikipath/1.0 (https://github.com/alvmarrod/wikipath)"
)

// PauseDelay returns the pacing pause as a duration
func (s SearchConfig) PauseDelay() time.Duration {
	return time.Duration(s.PauseDelayMs) * time.Millisecond
}

// RequestTimeout returns the per-request timeout as a duration
func (w WikipediaConfig) RequestTimeout() time.Duration {
	return time.Duration(w.RequestTimeoutMs) * time.Millisecond
}

// Default returns a configuration with every field set to its default
func Default() *Config {
	cfg := Config{Search: SearchConfig{PauseDelayMs: DefaultPauseDelayMs}}
	applyDefaults(&cfg)
	return &cfg
}

// LoadConfig reads and validates configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	// An explicit pause_delay_ms of 0 disables pacing
	cfg := Config{Search: SearchConfig{PauseDelayMs: DefaultPauseDelayMs}}
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.Search.MaxDepth == 0 {
		cfg.Search.MaxDepth = 3
	}
	if cfg.Search.MaxSearchedPages == 0 {
		cfg.Search.MaxSearchedPages = 1000
	}
	if cfg.Search.MaxLinksPerPage == 0 {
		cfg.Search.MaxLinksPerPage = 50
	}
	if cfg.Search.FetchLinkLimit == 0 {
		cfg.Search.FetchLinkLimit = 500
	}
	if cfg.Search.PauseEvery == 0 {
		cfg.Search.PauseEvery = 5
	}
	if cfg.Wikipedia.APIURL == "" {
		cfg.Wikipedia.APIURL = DefaultAPIURL
	}
	if cfg.Wikipedia.UserAgent == "" {
		cfg.Wikipedia.UserAgent = DefaultUserAgent
	}
	if cfg.Wikipedia.RequestTimeoutMs == 0 {
		cfg.Wikipedia.RequestTimeoutMs = 10000
	}
	if cfg.Wikipedia.SearchLimit == 0 {
		cfg.Wikipedia.SearchLimit = 8
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
}

// Validate checks that values are sensible, reporting every problem found
func (cfg *Config) Validate() error {
	var err error
	if cfg.Search.MaxDepth < 1 {
		err = multierror.Append(err, fmt.Errorf("max_depth must be >= 1"))
	}
	if cfg.Search.MaxSearchedPages < 1 {
		err = multierror.Append(err, fmt.Errorf("max_searched_pages must be >= 1"))
	}
	if cfg.Search.MaxLinksPerPage < 1 {
		err = multierror.Append(err, fmt.Errorf("max_links_per_page must be >= 1"))
	}
	if cfg.Search.FetchLinkLimit < cfg.Search.MaxLinksPerPage {
		err = multierror.Append(err, fmt.Errorf("fetch_link_limit must be >= max_links_per_page"))
	}
	if cfg.Search.FetchLinkLimit > 500 {
		err = multierror.Append(err, fmt.Errorf("fetch_link_limit must be <= 500"))
	}
	if cfg.Search.PauseEvery < 1 {
		err = multierror.Append(err, fmt.Errorf("pause_every must be >= 1"))
	}
	if cfg.Search.PauseDelayMs < 0 {
		err = multierror.Append(err, fmt.Errorf("pause_delay_ms must be >= 0"))
	}
	if cfg.Wikipedia.RequestTimeoutMs < 1000 {
		err = multierror.Append(err, fmt.Errorf("request_timeout_ms must be >= 1000"))
	}
	if cfg.Wikipedia.SearchLimit < 1 || cfg.Wikipedia.SearchLimit > 500 {
		err = multierror.Append(err, fmt.Errorf("search_limit must be between 1 and 500"))
	}
	return err
}
