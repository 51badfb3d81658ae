package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/alvmarrod/wikipath/internal/config"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// maxLinksPerRequest is the largest pllimit the API accepts for regular clients
const maxLinksPerRequest = 500

// SearchHit is one entry of a full-text title search
type SearchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// APIError is an error object returned in a MediaWiki response body
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wikipedia API error %s: %s", e.Code, e.Info)
}

type pageLink struct {
	NS    int    `json:"ns"`
	Title string `json:"title"`
}

type page struct {
	PageID  int             `json:"pageid"`
	Title   string          `json:"title"`
	Missing json.RawMessage `json:"missing"`
	Invalid json.RawMessage `json:"invalid"`
	Links   []pageLink      `json:"links"`
}

func (p page) exists(key string) bool {
	return !strings.HasPrefix(key, "-") && len(p.Missing) == 0 && len(p.Invalid) == 0
}

type queryResponse struct {
	Query struct {
		Pages  map[string]page `json:"pages"`
		Search []SearchHit     `json:"search"`
	} `json:"query"`
	Error *APIError `json:"error"`
}

// Client reads the article link graph from the MediaWiki action API.
// It satisfies pathfinder.LinkProvider.
type Client struct {
	cfg       config.WikipediaConfig
	collector *colly.Collector
	logger    *logrus.Entry
}

// NewClient creates a client for the API endpoint in cfg
func NewClient(cfg config.WikipediaConfig, logger *logrus.Entry) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("invalid api_url: %w", err)
	}
	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(0),
	)
	c.SetRequestTimeout(cfg.RequestTimeout())

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure rate limit: %w", err)
	}

	return &Client{
		cfg:       cfg,
		collector: c,
		logger:    logger.WithField("component", "wikipedia"),
	}, nil
}

// query performs one action=query request and decodes the response.
// Each call runs on its own clone so callbacks never leak between requests.
func (c *Client) query(ctx context.Context, params url.Values) (*queryResponse, error) {
	params.Set("action", "query")
	params.Set("format", "json")

	collector := c.collector.Clone()
	collector.Context = ctx

	var resp queryResponse
	var decodeErr, requestErr error
	collector.OnResponse(func(r *colly.Response) {
		decodeErr = json.Unmarshal(r.Body, &resp)
	})
	collector.OnError(func(r *colly.Response, err error) {
		requestErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := collector.Visit(c.cfg.APIURL + "?" + params.Encode()); err != nil && requestErr == nil {
		requestErr = err
	}
	if requestErr != nil {
		return nil, fmt.Errorf("wikipedia API request failed: %w", requestErr)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse wikipedia API response: %w", decodeErr)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	return &resp, nil
}

// PageExists reports whether title names an existing article.
// Request failures are logged and reported as a missing page.
func (c *Client) PageExists(ctx context.Context, title string) bool {
	resp, err := c.query(ctx, url.Values{"titles": {title}})
	if err != nil {
		c.logger.WithField("page", title).Warnf("Existence check failed: %v", err)
		return false
	}

	for key, p := range resp.Query.Pages {
		if p.exists(key) {
			return true
		}
	}
	return false
}

// Links returns up to limit main-namespace links of title in API order,
// without namespaced or list pages. Request failures are logged and
// reported as a page without links; only cancellation of ctx is returned
// as an error.
func (c *Client) Links(ctx context.Context, title string, limit int) ([]string, error) {
	if limit <= 0 || limit > maxLinksPerRequest {
		limit = maxLinksPerRequest
	}

	resp, err := c.query(ctx, url.Values{
		"titles":      {title},
		"prop":        {"links"},
		"pllimit":     {strconv.Itoa(limit)},
		"plnamespace": {"0"},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WithField("page", title).Warnf("Links fetch failed: %v", err)
		return []string{}, nil
	}

	var titles []string
	for key, p := range resp.Query.Pages {
		if !p.exists(key) {
			continue
		}
		for _, link := range p.Links {
			titles = append(titles, link.Title)
		}
	}

	return FilterLinks(titles, limit), nil
}

// Search returns up to limit articles matching query. A blank query
// returns no hits without contacting the API.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return []SearchHit{}, nil
	}
	if limit <= 0 {
		limit = c.cfg.SearchLimit
	}

	resp, err := c.query(ctx, url.Values{
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"srprop":   {"snippet"},
	})
	if err != nil {
		c.logger.WithField("query", query).Warnf("Search failed: %v", err)
		return nil, err
	}

	hits := make([]SearchHit, 0, len(resp.Query.Search))
	for _, hit := range resp.Query.Search {
		hits = append(hits, SearchHit{
			Title:   hit.Title,
			Snippet: StripTags(hit.Snippet),
		})
	}
	return hits, nil
}
