// Package llm adapts an OpenAI-compatible chat completion API to the
// normaliser's ChatClient port.
package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/tapdin/planner/pkg/metrics"
)

// Defaults for the chat client.
const (
	DefaultModel   = openai.GPT3Dot5Turbo
	DefaultTimeout = 60 * time.Second
	DefaultBurst   = 2
)

var errMissingAPIKey = errors.New("llm: api key is required")

// Completer is the subset of *openai.Client the adapter uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client sends one system and one user message per call.
type Client struct {
	inner      Completer
	model      string
	timeout    time.Duration
	limiter    *rate.Limiter
	baseURL    string
	httpClient *http.Client
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithModel selects the chat model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout bounds each completion call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps requests per second. Zero leaves calls unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), DefaultBurst)
		}
	}
}

// WithHTTPClient replaces the transport used to reach the API.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCompleter replaces the OpenAI client, mainly for tests.
func WithCompleter(inner Completer) Option {
	return func(c *Client) {
		c.inner = inner
	}
}

// New creates a chat client authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		model:   DefaultModel,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.inner != nil {
		return c, nil
	}
	if apiKey == "" {
		return nil, errMissingAPIKey
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	c.inner = openai.NewClientWithConfig(cfg)
	return c, nil
}

// Complete returns the first choice's content, or "" when the model returned
// no choices.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens: maxTokens,
	}

	start := time.Now()
	resp, err := c.inner.CreateChatCompletion(ctx, req)
	metrics.RecordOutboundLatency("llm", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordOutboundCall("llm", "error")
		return "", err
	}
	metrics.RecordOutboundCall("llm", "ok")

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
