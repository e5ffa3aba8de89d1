// Package search is a client for the Tavily web search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/speakerpipe/internal/model"
)

const (
	defaultBaseURL    = "https://api.tavily.com"
	defaultDepth      = "advanced"
	defaultMaxResults = 5
)

// Client runs web searches.
type Client interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// Request is the body of POST /search.
type Request struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

// Response is the body returned by POST /search.
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Result is one hit in a search response.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithDepth sets search_depth (basic or advanced).
func WithDepth(depth string) Option {
	return func(c *httpClient) {
		if depth != "" {
			c.depth = depth
		}
	}
}

// WithMaxResults caps the number of hits returned.
func WithMaxResults(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey     string
	baseURL    string
	depth      string
	maxResults int
	http       *http.Client
}

// NewClient creates a Tavily client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		depth:      defaultDepth,
		maxResults: defaultMaxResults,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	if c.apiKey == "" {
		return nil, eris.New("tavily: api key not configured")
	}

	body, err := json.Marshal(Request{
		Query:       query,
		SearchDepth: c.depth,
		MaxResults:  c.maxResults,
	})
	if err != nil {
		return nil, eris.Wrap(err, "tavily: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "tavily: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "tavily: send request")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "tavily: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("tavily: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "tavily: unmarshal response")
	}

	out := make([]model.SearchResult, 0, len(result.Results))
	for _, r := range result.Results {
		out = append(out, model.SearchResult{
			Title:   r.Title,
			Content: r.Content,
			URL:     r.URL,
		})
	}
	return out, nil
}
