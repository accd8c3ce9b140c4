// Package extractor calls an external OCR provider over HTTP.
package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	dErrors "garita/pkg/domain-errors"
	"garita/pkg/platform/circuit"
)

const defaultTimeout = 15 * time.Second

// Client posts captured images to an OCR endpoint and returns the raw text
// it reads. The provider contract is a JSON body with a base64 image and a
// JSON response carrying the extracted text. A circuit breaker guards the
// provider so a dead endpoint fails fast instead of burning the timeout on
// every capture.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		breaker: circuit.New("ocr"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type extractRequest struct {
	Image string `json:"image"`
}

type extractResponse struct {
	Text string `json:"text"`
}

// Extract sends one image and returns the provider's raw reading. While the
// breaker is open the call fails immediately without touching the provider.
func (c *Client) Extract(ctx context.Context, image []byte) (string, error) {
	if c.breaker.IsOpen() {
		return "", dErrors.New(dErrors.CodeExtractionFailed, "ocr provider unavailable")
	}

	payload, err := json.Marshal(extractRequest{
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode ocr request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build ocr request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", dErrors.Wrap(err, dErrors.CodeTimeout, "ocr provider timed out")
		}
		return "", dErrors.Wrap(err, dErrors.CodeExtractionFailed, "ocr provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.recordFailure(ctx)
		return "", dErrors.New(dErrors.CodeExtractionFailed,
			fmt.Sprintf("ocr provider returned %d", resp.StatusCode))
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.recordFailure(ctx)
		return "", dErrors.Wrap(err, dErrors.CodeExtractionFailed, "decode ocr response")
	}

	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "ocr provider recovered", "breaker", c.breaker.Name())
	}
	return out.Text, nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "ocr provider circuit opened", "breaker", c.breaker.Name())
	}
}
