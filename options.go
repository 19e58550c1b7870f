package evangeline

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/evangeline-go/evangeline/internal/api"
	"github.com/evangeline-go/evangeline/internal/connection"
)

type options struct {
	gateway connection.Config

	restURL    string
	cdnURL     string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration

	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		gateway:    connection.DefaultConfig(),
		restURL:    api.DefaultRestURL,
		cdnURL:     api.DefaultCDNURL,
		maxRetries: -1,
		logger:     slog.Default(),
	}
}

// Option configures a Bot.
type Option func(*options)

// WithGatewayURL sets the gateway WebSocket URL.
func WithGatewayURL(url string) Option {
	return func(o *options) { o.gateway.URL = url }
}

// WithRESTURL sets the REST API base URL.
func WithRESTURL(url string) Option {
	return func(o *options) { o.restURL = url }
}

// WithCDNURL sets the file server base URL.
func WithCDNURL(url string) Option {
	return func(o *options) { o.cdnURL = url }
}

// WithToken authenticates gateway and REST requests with a session token.
func WithToken(token string) Option {
	return func(o *options) { o.gateway.Token = token }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHeartbeatInterval sets how often a PING is sent while connected.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(o *options) { o.gateway.HeartbeatInterval = d }
}

// WithEventBuffer sets how many gateway events may queue ahead of the handlers.
func WithEventBuffer(n int) Option {
	return func(o *options) { o.gateway.EventBuffer = n }
}

// WithoutIdentityCheck disables the 2-32 character identity check on Connect.
func WithoutIdentityCheck() Option {
	return func(o *options) { o.gateway.SkipIdentityCheck = true }
}

// WithHTTPClient sets the HTTP client used for REST and CDN requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithHTTPTimeout sets the REST and CDN request timeout.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetries sets how many times failed GET requests are retried.
func WithRetries(max int, backoff time.Duration) Option {
	return func(o *options) {
		o.maxRetries = max
		o.backoff = backoff
	}
}

func (o options) apiOptions() []api.ClientOption {
	opts := []api.ClientOption{
		api.WithLogger(o.logger),
		api.WithToken(o.gateway.Token),
	}
	if o.httpClient != nil {
		opts = append(opts, api.WithHTTPClient(o.httpClient))
	}
	if o.timeout > 0 {
		opts = append(opts, api.WithTimeout(o.timeout))
	}
	if o.maxRetries >= 0 {
		opts = append(opts, api.WithRetries(o.maxRetries, o.backoff))
	}
	return opts
}
