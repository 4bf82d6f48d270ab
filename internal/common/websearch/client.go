// internal/common/websearch/client.go
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"itinerary-workers/internal/common/config"
	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"

	"golang.org/x/time/rate"
)

var (
	ErrDiscoveryFailed  = errors.New("DISCOVERY_FAILED")
	ErrDiscoveryTimeout = errors.New("DISCOVERY_TIMEOUT")
)

const (
	DepthAdvanced = "advanced"
	DepthBasic    = "basic"
)

// SearchOptions tune a single search call. Zero values use client defaults.
type SearchOptions struct {
	MaxResults  int
	SearchDepth string
}

// Hit is one ordered search result.
type Hit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Page is the extracted content of one URL. Error is set when that URL failed.
type Page struct {
	URL     string `json:"url"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Discovery searches the web and extracts page content.
type Discovery interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error)
	Extract(ctx context.Context, urls []string) ([]Page, error)
}

// Client is a Tavily API client throttled by a token bucket.
type Client struct {
	baseURL    string
	apiKey     string
	maxResults int
	depth      string
	http       *http.Client
	limiter    *rate.Limiter
	logger     logger.Logger
}

func NewClient(cfg config.WebSearchConfig, log logger.Logger) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
		depth:      cfg.SearchDepth,
		http: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
		limiter: rate.NewLimiter(limit, 1),
		logger: log.With(map[string]interface{}{
			"component": "websearch",
		}),
	}
}

type searchRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeImages     bool   `json:"include_images"`
	IncludeRawContent bool   `json:"include_raw_content"`
	MaxResults        int    `json:"max_results"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []Hit  `json:"results"`
}

type extractRequest struct {
	APIKey string   `json:"api_key"`
	URLs   []string `json:"urls"`
}

type extractResponse struct {
	Results []struct {
		URL        string `json:"url"`
		RawContent string `json:"raw_content"`
	} `json:"results"`
	FailedResults []struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	} `json:"failed_results"`
}

// Search returns ordered hits for query.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (hits []Hit, err error) {
	defer func() { metrics.Discovery("search", err) }()

	req := searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   opts.SearchDepth,
		IncludeAnswer: true,
		MaxResults:    opts.MaxResults,
	}
	if req.SearchDepth == "" {
		req.SearchDepth = c.depth
	}
	if req.MaxResults <= 0 {
		req.MaxResults = c.maxResults
	}

	var resp searchResponse
	if err := c.post(ctx, "/search", req, &resp); err != nil {
		return nil, providerError("search", err)
	}

	c.logger.Debug("search completed", map[string]interface{}{
		"query":   query,
		"results": len(resp.Results),
	})
	return resp.Results, nil
}

// Extract fetches the content of urls. The returned pages follow the input
// order; URLs the provider could not read carry an Error.
func (c *Client) Extract(ctx context.Context, urls []string) (pages []Page, err error) {
	defer func() { metrics.Discovery("extract", err) }()

	if len(urls) == 0 {
		return nil, nil
	}

	var resp extractResponse
	if err := c.post(ctx, "/extract", extractRequest{APIKey: c.apiKey, URLs: urls}, &resp); err != nil {
		return nil, providerError("extract", err)
	}

	content := make(map[string]string, len(resp.Results))
	for _, r := range resp.Results {
		content[r.URL] = r.RawContent
	}
	failed := make(map[string]string, len(resp.FailedResults))
	for _, f := range resp.FailedResults {
		failed[f.URL] = f.Error
	}

	pages = make([]Page, 0, len(urls))
	for _, u := range urls {
		page := Page{URL: u}
		if text, ok := content[u]; ok {
			page.Content = text
		} else if reason, ok := failed[u]; ok && reason != "" {
			page.Error = reason
		} else {
			page.Error = "no content returned"
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// providerError lifts a transport failure into the shared error taxonomy.
// The sentinel stays reachable through errors.Is.
func providerError(operation string, err error) error {
	if errors.Is(err, ErrDiscoveryTimeout) {
		return apperrors.NewTimeoutError("discovery "+operation, err)
	}
	return apperrors.NewDiscoveryFailedError(operation, err)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDiscoveryTimeout, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ErrDiscoveryTimeout
		}
		return fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s status %d: %s", ErrDiscoveryFailed, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode error: %v", ErrDiscoveryFailed, err)
	}
	return nil
}
