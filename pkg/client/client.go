// Package client talks to the databridge REST backend. It maps entity
// operations to HTTP requests and reports failures without translating them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every request unless WithTimeout or WithHTTPClient says otherwise.
const DefaultTimeout = 30 * time.Second

// RequestIDHeader carries a per-request id for correlating client and server logs.
const RequestIDHeader = "X-Request-ID"

// Client sends requests to one backend base URL.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a Client for baseURL, e.g. "http://localhost:5071/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// do sends one request and returns the response body of a 2xx response.
// route is the unexpanded path template, used only for metrics.
func (c *Client) do(ctx context.Context, method, route, path string, body io.Reader, contentType string) ([]byte, error) {
	target := c.baseURL.JoinPath(path).String()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.Must(uuid.NewV4()).String()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	log := c.log.WithFields(logrus.Fields{
		"method":     method,
		"url":        target,
		"request_id": requestID,
	})

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observe(method, route, "error", start)
		log.WithError(err).Debug("request failed")
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	observe(method, route, fmt.Sprint(resp.StatusCode), start)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	log = log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug("request rejected")
		return nil, parseAPIError(method, target, resp.StatusCode, data)
	}
	log.Debug("request completed")

	return data, nil
}

// doJSON sends in (if non-nil) as a JSON body.
func (c *Client) doJSON(ctx context.Context, method, route, path string, in any) ([]byte, error) {
	if in == nil {
		return c.do(ctx, method, route, path, nil, "")
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, method, route, path, bytes.NewReader(payload), "application/json")
}

func observe(method, route, status string, start time.Time) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`databridge_client_requests_total{method=%q,route=%q,status=%q}`, method, route, status)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`databridge_client_request_duration_seconds{method=%q,route=%q}`, method, route)).UpdateDuration(start)
}
