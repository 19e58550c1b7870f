package config

import "time"

// Config is the root configuration shared by the bot binaries.
type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	API      APIConfig      `yaml:"api"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Database DBConfig       `yaml:"database"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Instance InstanceConfig `yaml:"instance"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// BotConfig identifies the bot.
type BotConfig struct {
	Identity          string `yaml:"identity"`            // author name on sent messages
	Token             string `yaml:"token"`               // session token (optional)
	TokenFile         string `yaml:"token_file"`          // read token from file when Token is empty
	SkipIdentityCheck bool   `yaml:"skip_identity_check"` // accept identities outside 2-32 chars
}

// APIConfig holds REST, CDN and gateway endpoints.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	CDNURL     string        `yaml:"cdn_url"`
	GatewayURL string        `yaml:"gateway_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// GatewayConfig holds gateway connection settings.
type GatewayConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	EventBuffer       int           `yaml:"event_buffer"`
}

// DBConfig holds the archive database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ArchiveConfig holds message archive writer settings.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	QueueSize     int           `yaml:"queue_size"` // initial queue capacity
}

// InstanceConfig controls polling of the instance info endpoint.
type InstanceConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
}

// MetricsConfig holds health/metrics server settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
