// Package clicky provides a client for the Clicky web analytics stats API.
package clicky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the stats API endpoint
	DefaultBaseURL = "https://api.clicky.com/api/stats/4"
	// DefaultTimeout is the request timeout
	DefaultTimeout = 30 * time.Second
	// Version is the client version sent in the User-Agent
	Version = "1.0.0"

	maxErrorBody = 2048
)

// Client issues report queries for a single Clicky site.
type Client struct {
	siteID  string
	siteKey string

	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger

	rest *resty.Client
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithTimeout sets a custom timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the given site credentials.
func NewClient(siteID, siteKey string, opts ...ClientOption) (*Client, error) {
	if siteID == "" {
		return nil, fmt.Errorf("site ID is required")
	}
	if siteKey == "" {
		return nil, fmt.Errorf("site key is required")
	}

	c := &Client{
		siteID:  siteID,
		siteKey: siteKey,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient != nil {
		c.rest = resty.NewWithClient(c.httpClient)
	} else {
		c.rest = resty.New()
	}
	c.rest.
		SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "clicky-mcp/"+Version)

	c.logger = c.logger.With().Str("component", "clicky_client").Logger()

	return c, nil
}

// TotalVisitors returns the visitors report for the range.
func (c *Client) TotalVisitors(ctx context.Context, dates DateRange) (any, error) {
	return c.Fetch(ctx, TotalVisitorsQuery{Range: dates})
}

// DomainVisitors returns the segmentation report for visitors from a domain.
func (c *Client) DomainVisitors(ctx context.Context, q DomainVisitorsQuery) (any, error) {
	return c.Fetch(ctx, q)
}

// TopPages returns the pages report, optionally limited.
func (c *Client) TopPages(ctx context.Context, dates DateRange, limit *int) (any, error) {
	return c.Fetch(ctx, TopPagesQuery{Range: dates, Limit: limit})
}

// TrafficSources returns the reshaped traffic sources breakdown. When
// pageURL is non-empty the breakdown is scoped to that page.
func (c *Client) TrafficSources(ctx context.Context, dates DateRange, pageURL string) ([]TrafficSourceReport, error) {
	q := TrafficSourcesQuery{Range: dates}
	if pageURL != "" {
		q.PagePath = NormalizePath(pageURL)
	}

	body, err := c.fetchRaw(ctx, q)
	if err != nil {
		return nil, err
	}
	return ReshapeTrafficSources(body)
}

// PageTraffic returns the pages report filtered to the page at url.
func (c *Client) PageTraffic(ctx context.Context, url string, dates DateRange) (any, error) {
	return c.Fetch(ctx, PageTrafficQuery{Range: dates, FilterPath: NormalizePath(url)})
}

// Fetch validates and issues q, returning the decoded JSON body as-is.
func (c *Client) Fetch(ctx context.Context, q Query) (any, error) {
	body, err := c.fetchRaw(ctx, q)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var result any
	if err := dec.Decode(&result); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	return result, nil
}

// Params returns the full query string parameters for q.
func (c *Client) Params(q Query) map[string]string {
	p := map[string]string{
		"site_id": c.siteID,
		"sitekey": c.siteKey,
		"date":    q.Dates().String(),
		"output":  "json",
	}
	for k, v := range q.params() {
		p[k] = v
	}
	return p
}

func (c *Client) fetchRaw(ctx context.Context, q Query) ([]byte, error) {
	if err := q.Dates().Validate(); err != nil {
		return nil, err
	}

	params := c.Params(q)
	start := time.Now()

	res, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("")
	if err != nil {
		c.logger.Debug().Err(err).
			Str("type", params["type"]).
			Dur("duration", time.Since(start)).
			Msg("Clicky request failed")
		return nil, &UpstreamError{Err: err}
	}

	c.logger.Debug().
		Str("type", params["type"]).
		Int("status", res.StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("Clicky request completed")

	if !res.IsSuccess() {
		body := res.Body()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &UpstreamError{
			StatusCode: res.StatusCode(),
			Status:     res.Status(),
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return res.Body(), nil
}
