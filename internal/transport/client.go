// Package transport sends queries to the upstream prediction endpoint.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/kiku/internal/models"
	"go.uber.org/zap"
)

// predictionRequest is the body the prediction endpoint expects.
type predictionRequest struct {
	Question       string         `json:"question"`
	OverrideConfig map[string]any `json:"overrideConfig"`
}

// Client posts questions to a prediction endpoint. It performs no retries.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each request. Zero leaves requests bounded only by the caller's context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets a logger for request debug output.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a transport client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAnswer posts query to endpoint and returns the reply body.
// A body that parses as JSON is returned in RawAnswer.JSON, anything else verbatim in RawAnswer.Text.
// Errors are *NetworkError or *HTTPStatusError.
func (c *Client) FetchAnswer(ctx context.Context, endpoint, query string) (models.RawAnswer, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	jsonData, err := json.Marshal(predictionRequest{Question: query, OverrideConfig: map[string]any{}})
	if err != nil {
		return models.RawAnswer{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return models.RawAnswer{}, &NetworkError{Endpoint: endpoint, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("upstream request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return models.RawAnswer{}, &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.RawAnswer{}, &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}
	c.logger.Debug("upstream response",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.RawAnswer{}, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if json.Valid(body) {
		return models.RawAnswer{JSON: json.RawMessage(body)}, nil
	}
	return models.RawAnswer{Text: string(body)}, nil
}
