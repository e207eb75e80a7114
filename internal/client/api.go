// Package client calls the labeling API served by internal/server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lab/mwp-encoder/internal/server"
)

// APIClient talks to one labeling server.
type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewAPIClient creates a client for baseURL, e.g. "http://localhost:8080".
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Label labels one equation layer and replays it.
func (c *APIClient) Label(ctx context.Context, req server.LabelRequest) (*server.LabelResponse, error) {
	var result server.LabelResponse
	if err := c.do(ctx, http.MethodPost, "/api/label", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Evaluate replays already encoded labels.
func (c *APIClient) Evaluate(ctx context.Context, req server.EvaluateRequest) (float64, error) {
	var result server.EvaluateResponse
	if err := c.do(ctx, http.MethodPost, "/api/evaluate", req, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// Health returns the server status.
func (c *APIClient) Health(ctx context.Context) (*server.HealthResponse, error) {
	var result server.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) do(ctx context.Context, method, endpoint string, data, out interface{}) error {
	var body io.Reader
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
			Code  int    `json:"code"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &ServerError{Status: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
		}
		return &ServerError{Status: resp.StatusCode, Message: preview(respBody, 200)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode JSON response: %w (response: %s)", err, preview(respBody, 100))
	}
	return nil
}

// ServerError is a non-2xx reply. Code carries the label error code when the server sent one.
type ServerError struct {
	Status  int
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
}

// preview truncates a response body for error messages.
func preview(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		s = s[:n] + "..."
	}
	return s
}
