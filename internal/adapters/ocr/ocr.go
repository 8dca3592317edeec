// Package ocr detects text in images with the Google Cloud Vision API.
package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/tapdin/planner/internal/domain/errs"
	"github.com/tapdin/planner/pkg/metrics"
)

// Defaults for the Vision client.
const (
	DefaultTimeout = 30 * time.Second
	DefaultBurst   = 5

	featureTextDetection = "TEXT_DETECTION"
	defaultTokenURI      = "https://oauth2.googleapis.com/token"
)

var errEmptyImage = errors.New("empty image")

// Credentials identifies the service account the client authenticates as.
// PrivateKey may carry literal "\n" escapes, as it does when read from the
// environment.
type Credentials struct {
	ProjectID   string
	PrivateKey  string
	ClientEmail string
}

func (c Credentials) empty() bool {
	return c.PrivateKey == "" && c.ClientEmail == ""
}

// serviceAccountJSON renders the credentials in the key-file layout Google's
// libraries accept.
func (c Credentials) serviceAccountJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string `json:"type"`
		ProjectID   string `json:"project_id"`
		PrivateKey  string `json:"private_key"`
		ClientEmail string `json:"client_email"`
		TokenURI    string `json:"token_uri"`
	}{
		Type:        "service_account",
		ProjectID:   c.ProjectID,
		PrivateKey:  strings.ReplaceAll(c.PrivateKey, `\n`, "\n"),
		ClientEmail: c.ClientEmail,
		TokenURI:    defaultTokenURI,
	})
}

// Client detects text with a single TEXT_DETECTION request per image.
type Client struct {
	svc        *vision.Service
	limiter    *rate.Limiter
	timeout    time.Duration
	clientOpts []option.ClientOption
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout bounds each annotate call.
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

// WithClientOptions passes extra options to the Vision service, such as a
// custom endpoint.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *Client) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}

// New creates a Vision client. With empty credentials the service falls back
// to application default credentials or whatever WithClientOptions supplies.
func New(ctx context.Context, creds Credentials, opts ...Option) (*Client, error) {
	const op = "ocr.new"
	c := &Client{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}

	svcOpts := make([]option.ClientOption, 0, len(c.clientOpts)+1)
	if !creds.empty() {
		raw, err := creds.serviceAccountJSON()
		if err != nil {
			return nil, errs.WrapKind(op, errs.ErrOCR, err)
		}
		jwtCfg, err := google.JWTConfigFromJSON(raw, vision.CloudPlatformScope)
		if err != nil {
			return nil, errs.WrapKind(op, errs.ErrOCR, fmt.Errorf("service account: %w", err))
		}
		svcOpts = append(svcOpts, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	}
	svcOpts = append(svcOpts, c.clientOpts...)

	svc, err := vision.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, errs.WrapKind(op, errs.ErrOCR, err)
	}
	c.svc = svc
	return c, nil
}

// DetectText returns the full text block Vision found in image, or "" when
// the image has no text.
func (c *Client) DetectText(ctx context.Context, image []byte) (string, error) {
	const op = "ocr.detect_text"
	if len(image) == 0 {
		return "", errs.WrapKind(op, errs.ErrOCR, errEmptyImage)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", errs.WrapKind(op, errs.ErrOCR, err)
		}
	}

	start := time.Now()
	text, err := c.annotate(ctx, image)
	metrics.RecordOutboundLatency("ocr", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordOutboundCall("ocr", "error")
		return "", errs.WrapKind(op, errs.ErrOCR, err)
	}
	metrics.RecordOutboundCall("ocr", "ok")
	return text, nil
}

func (c *Client) annotate(ctx context.Context, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*vision.Feature{{Type: featureTextDetection}},
		}},
	}
	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}
	first := resp.Responses[0]
	if first.Error != nil && first.Error.Code != 0 {
		return "", fmt.Errorf("vision: %s (code %d)", first.Error.Message, first.Error.Code)
	}
	if len(first.TextAnnotations) == 0 {
		return "", nil
	}
	return first.TextAnnotations[0].Description, nil
}
