// Package client talks to a running planner over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/tapdin/planner/internal/domain/model"
	"github.com/tapdin/planner/pkg/logger"
)

// DefaultTimeout bounds a single request. Submissions wait on OCR and the
// chat model, so it is generous.
const DefaultTimeout = 2 * time.Minute

const processPath = "/api/process"

// Submission is one plan to send: a page URL, an image, or both.
type Submission struct {
	URL       string
	Image     []byte
	ImageName string
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("planner: status %d", e.Status)
	}
	return fmt.Sprintf("planner: status %d: %s", e.Status, e.Message)
}

// Client wraps http.Client for the /api/process endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for batch progress.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit runs the pipeline on the server and stores the result. It returns
// the new plan's id.
func (c *Client) Submit(ctx context.Context, s Submission) (string, error) {
	var ack struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := c.postForm(ctx, c.baseURL+processPath, s, http.StatusCreated, &ack); err != nil {
		return "", err
	}
	return ack.ID, nil
}

// Preview runs the pipeline on the server without storing the result.
func (c *Client) Preview(ctx context.Context, s Submission) (model.EventRecord, error) {
	var rec model.EventRecord
	if err := c.postForm(ctx, c.baseURL+processPath+"?persist=false", s, http.StatusOK, &rec); err != nil {
		return model.EventRecord{}, err
	}
	return rec, nil
}

// List returns every stored plan, newest first.
func (c *Client) List(ctx context.Context) ([]model.Plan, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+processPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var plans []model.Plan
	if err := c.do(req, http.StatusOK, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// Delete removes the plan with the given id.
func (c *Client) Delete(ctx context.Context, id string) error {
	body, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+processPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, http.StatusOK, nil)
}

func (c *Client) postForm(ctx context.Context, url string, s Submission, want int, out any) error {
	body, contentType, err := encodeSubmission(s)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, want, out)
}

// encodeSubmission writes the url field and image part as multipart/form-data.
func encodeSubmission(s Submission) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if s.URL != "" {
		if err := mw.WriteField("url", s.URL); err != nil {
			return nil, "", fmt.Errorf("failed to write url field: %w", err)
		}
	}
	if len(s.Image) > 0 {
		name := s.ImageName
		if name == "" {
			name = "image"
		}
		part, err := mw.CreateFormFile("image", name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := part.Write(s.Image); err != nil {
			return nil, "", fmt.Errorf("failed to write image part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != want {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
