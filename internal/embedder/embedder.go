// Package embedder provides a batching HTTP client for a remote
// embedding service exposing a fixed {endpoint}/embed contract.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ModelInfo describes the model a connected embedding service reports.
type ModelInfo struct {
	Name     string
	Dim      int
	MaxBatch int
}

// DefaultModelInfo mirrors the reference embedding service's default
// model.
func DefaultModelInfo() ModelInfo {
	return ModelInfo{Name: "google/embeddinggemma-300m", Dim: 768, MaxBatch: 32}
}

// RequestFailedError reports a transport-level failure (the request
// never reached a server, or no response was received).
type RequestFailedError struct {
	Cause error
}

func (e *RequestFailedError) Error() string { return fmt.Sprintf("embedding request failed: %v", e.Cause) }
func (e *RequestFailedError) Unwrap() error  { return e.Cause }

// ServerError reports a non-2xx HTTP response from the embedding
// service.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("embedding service returned status %d: %s", e.Status, e.Body)
}

// InvalidResponseError reports a response that could not be decoded as
// the expected JSON shape.
type InvalidResponseError struct {
	Cause error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid embedding response: %v", e.Cause)
}
func (e *InvalidResponseError) Unwrap() error { return e.Cause }

// TimeoutError reports a request that exceeded its deadline.
type TimeoutError struct {
	Cause error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("embedding request timed out: %v", e.Cause) }
func (e *TimeoutError) Unwrap() error  { return e.Cause }

// Config configures a Client.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Model    ModelInfo
}

// DefaultConfig returns a Config pointed at a local embedding service
// with the reference model defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint: "http://localhost:8000",
		Timeout:  120 * time.Second,
		Model:    DefaultModelInfo(),
	}
}

// Client embeds text batches against a remote embedding service.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      ModelInfo
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
	}
}

// ModelName returns the connected model's name.
func (c *Client) ModelName() string { return c.model.Name }

// Dimension returns the connected model's embedding dimension.
func (c *Client) Dimension() int { return c.model.Dim }

// MaxBatch returns the connected model's preferred max batch size.
func (c *Client) MaxBatch() int { return c.model.MaxBatch }

type embeddingRequest struct {
	Texts []string `json:"texts"`
}

type embeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedBatch vectorizes texts in request order. Empty input returns
// an empty slice without making a network call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Texts: texts})
	if err != nil {
		return nil, &RequestFailedError{Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, &RequestFailedError{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, &TimeoutError{Cause: err}
		}
		return nil, &RequestFailedError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestFailedError{Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServerError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &InvalidResponseError{Cause: err}
	}

	return decoded.Embeddings, nil
}

// Ping probes the embedding service's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return &RequestFailedError{Cause: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestFailedError{Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServerError{Status: resp.StatusCode}
	}
	return nil
}
