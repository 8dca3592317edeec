// Package scrape fetches a web page and reduces it to the text an event
// normaliser needs.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tapdin/planner/internal/domain/errs"
	"github.com/tapdin/planner/pkg/metrics"
)

// Defaults for the scraping client.
const (
	DefaultTimeout      = 8 * time.Second
	DefaultUserAgent    = "tapdin-planner/1.0"
	DefaultMaxBodyBytes = 5 << 20
)

// Client fetches pages with a bounded wait. There is no retry.
type Client struct {
	httpClient   *http.Client
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout bounds each fetch, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBodyBytes caps how much of a page is read.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a scraping client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{},
		timeout:      DefaultTimeout,
		userAgent:    DefaultUserAgent,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scrape fetches rawURL and returns the page summary built by Summarize.
func (c *Client) Scrape(ctx context.Context, rawURL string) (string, error) {
	const op = "scrape.scrape"
	start := time.Now()
	body, err := c.fetch(ctx, rawURL)
	metrics.RecordOutboundLatency("scrape", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordOutboundCall("scrape", "error")
		return "", errs.WrapKind(op, errs.ErrFetch, err)
	}
	metrics.RecordOutboundCall("scrape", "ok")
	page, err := Parse(body)
	if err != nil {
		return "", errs.WrapKind(op, errs.ErrFetch, err)
	}
	return page.Summarize(), nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Error pages are parsed like any other page.
	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}
