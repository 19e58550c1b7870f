package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL           = "https://api.eludris.gay"
	DefaultCDNURL            = "https://cdn.eludris.gay"
	DefaultGatewayURL        = "wss://ws.eludris.gay/"
	DefaultAPITimeout        = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultHeartbeatInterval = 45 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultEventBuffer       = 256
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultQueueSize         = 1024
	DefaultPollInterval      = 5 * time.Minute
	DefaultPollTimeout       = 10 * time.Second
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
)

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.CDNURL == "" {
		c.API.CDNURL = DefaultCDNURL
	}
	if c.API.GatewayURL == "" {
		c.API.GatewayURL = DefaultGatewayURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Gateway defaults
	if c.Gateway.HeartbeatInterval == 0 {
		c.Gateway.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = DefaultWriteTimeout
	}
	if c.Gateway.HandshakeTimeout == 0 {
		c.Gateway.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Gateway.EventBuffer == 0 {
		c.Gateway.EventBuffer = DefaultEventBuffer
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.QueueSize == 0 {
		c.Archive.QueueSize = DefaultQueueSize
	}

	// Instance poll defaults
	if c.Instance.PollInterval == 0 {
		c.Instance.PollInterval = DefaultPollInterval
	}
	if c.Instance.PollTimeout == 0 {
		c.Instance.PollTimeout = DefaultPollTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
