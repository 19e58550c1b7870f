package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evangeline-go/evangeline/internal/metrics"
	"github.com/evangeline-go/evangeline/internal/version"
)

// HTTPError is a non-2xx response from the REST API or the CDN.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	text := strings.TrimSpace(string(e.Body))
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, text)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// request describes one HTTP call.
type request struct {
	method      string
	baseURL     string
	path        string
	query       url.Values
	body        []byte
	contentType string
	authed      bool
	route       string // metrics label, e.g. "POST /messages"
}

func (c *Client) rest(method, path, route string) *request {
	return &request{method: method, baseURL: c.restURL, path: path, route: method + " " + route}
}

func (c *Client) cdn(method, path, route string) *request {
	return &request{method: method, baseURL: c.cdnURL, path: path, route: method + " " + route}
}

func (r *request) withAuth() *request {
	r.authed = true
	return r
}

func (r *request) withJSON(v any) (*request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	r.body = data
	r.contentType = "application/json"
	return r, nil
}

// doRequest performs a single HTTP request and returns the response body.
func (c *Client) doRequest(ctx context.Context, r *request) ([]byte, error) {
	fullURL := r.baseURL + r.path
	if len(r.query) > 0 {
		fullURL += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.authed {
		c.creds.Apply(req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RequestDuration.WithLabelValues(r.route).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(r.route, metrics.StatusClass(0)).Inc()
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	metrics.RequestsTotal.WithLabelValues(r.route, metrics.StatusClass(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       data,
		}
	}

	return data, nil
}

// do performs a request. GET requests are retried with exponential backoff;
// other methods are sent once.
func (c *Client) do(ctx context.Context, r *request) ([]byte, error) {
	if r.method != http.MethodGet {
		return c.doRequest(ctx, r)
	}

	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)+1))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"route", r.route,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		data, err := c.doRequest(ctx, r)
		if err == nil {
			return data, nil
		}

		lastErr = err

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || !httpErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doJSON performs a request and decodes the JSON response into result.
// A nil result discards the body.
func (c *Client) doJSON(ctx context.Context, r *request, result any) error {
	data, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
