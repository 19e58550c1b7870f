package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/evangeline-go/evangeline/internal/auth"
)

// Defaults.
const (
	DefaultRestURL      = "https://api.eludris.gay"
	DefaultCDNURL       = "https://cdn.eludris.gay"
	DefaultRetryBackoff = time.Second
)

// Client talks to the REST API (Oprish) and the file server (Effis).
type Client struct {
	restURL    string
	cdnURL     string
	creds      *auth.Credentials
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST/CDN client. Empty URLs fall back to the defaults.
func NewClient(restURL, cdnURL string, opts ...ClientOption) *Client {
	if restURL == "" {
		restURL = DefaultRestURL
	}
	if cdnURL == "" {
		cdnURL = DefaultCDNURL
	}

	c := &Client{
		restURL: strings.TrimRight(restURL, "/"),
		cdnURL:  strings.TrimRight(cdnURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: DefaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RestURL returns the REST base URL without a trailing slash.
func (c *Client) RestURL() string { return c.restURL }

// CDNURL returns the CDN base URL without a trailing slash.
func (c *Client) CDNURL() string { return c.cdnURL }

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration for GET requests.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken authenticates requests with a raw session token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		if token == "" {
			c.creds = nil
			return
		}
		c.creds = &auth.Credentials{Token: token}
	}
}
