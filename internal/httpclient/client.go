// Package httpclient provides the resilient JSON client every outbound
// call goes through. Network failures and non-2xx responses are retried
// with exponential backoff up to the configured bound; a 2xx body that
// fails to decode is a fatal parse error; 403 and 429 are surfaced with
// their category so callers can route to fallback paths instead of
// retrying blindly.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	syncerrors "github.com/ink-market-sync/internal/errors"
	"github.com/ink-market-sync/internal/retry"
)

// Client issues outbound JSON requests with bounded retries
type Client struct {
	httpClient *http.Client
	retryCfg   *retry.Config
}

// New creates a client with the given retry configuration
func New(retryCfg *retry.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryCfg:   retryCfg,
	}
}

// NewWithHTTPClient creates a client with a caller-supplied http.Client,
// used by tests to control transport behavior
func NewWithHTTPClient(httpClient *http.Client, retryCfg *retry.Config) *Client {
	return &Client{httpClient: httpClient, retryCfg: retryCfg}
}

// GetJSON performs a GET and decodes the 2xx response body into out.
// A nil out discards the body.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	return c.do(ctx, http.MethodGet, url, headers, nil, out)
}

// PostJSON performs a POST with a JSON body and decodes the 2xx response into out
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return syncerrors.NewValidationError(fmt.Sprintf("encode request body: %v", err))
	}
	return c.do(ctx, http.MethodPost, url, headers, payload, out)
}

// PatchJSON performs a PATCH with a JSON body, discarding any response body
func (c *Client) PatchJSON(ctx context.Context, url string, headers map[string]string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return syncerrors.NewValidationError(fmt.Sprintf("encode request body: %v", err))
	}
	return c.do(ctx, http.MethodPatch, url, headers, payload, nil)
}

func (c *Client) do(ctx context.Context, method, url string, headers map[string]string, payload []byte, out interface{}) error {
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context, attempt int) error {
		return c.doOnce(ctx, method, url, headers, payload, out)
	})
}

func (c *Client) doOnce(ctx context.Context, method, url string, headers map[string]string, payload []byte, out interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return syncerrors.NewValidationError(fmt.Sprintf("build request: %v", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return syncerrors.NewNetworkError(fmt.Sprintf("%s %s", method, url), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return syncerrors.NewNetworkError(fmt.Sprintf("read response from %s", url), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := upstreamMessage(body)
		return syncerrors.NewUpstreamError(resp.StatusCode, fmt.Sprintf("%s %s: %s", method, url, message))
	}

	if out == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return syncerrors.NewParseError(fmt.Sprintf("decode response from %s", url), err)
	}

	return nil
}

// upstreamMessage extracts a structured error message when the upstream
// wraps one (the market-data provider's status envelope), otherwise the
// raw body, truncated
func upstreamMessage(body []byte) string {
	var envelope struct {
		Status struct {
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status.ErrorMessage != "" {
		return envelope.Status.ErrorMessage
	}

	const maxLen = 200
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	return string(body)
}
