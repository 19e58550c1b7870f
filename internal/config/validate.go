package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evangeline-go/evangeline/internal/connection"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Bot.Identity == "" {
		return errors.New("bot.identity is required")
	}
	if !c.Bot.SkipIdentityCheck {
		if err := connection.ValidateIdentity(c.Bot.Identity); err != nil {
			return fmt.Errorf("bot.identity: %w", err)
		}
	}

	endpoints := []struct{ name, url string }{
		{"api.rest_url", c.API.RestURL},
		{"api.cdn_url", c.API.CDNURL},
		{"api.gateway_url", c.API.GatewayURL},
	}
	for _, e := range endpoints {
		if e.url == "" {
			return fmt.Errorf("%s is required", e.name)
		}
	}
	if !strings.HasPrefix(c.API.GatewayURL, "ws://") && !strings.HasPrefix(c.API.GatewayURL, "wss://") {
		return fmt.Errorf("api.gateway_url must use ws:// or wss://, got %q", c.API.GatewayURL)
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Gateway.HeartbeatInterval <= 0 {
		return errors.New("gateway.heartbeat_interval must be positive")
	}
	if c.Gateway.EventBuffer < 1 {
		return errors.New("gateway.event_buffer must be >= 1")
	}

	if c.Archive.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.FlushInterval <= 0 {
			return errors.New("archive.flush_interval must be positive")
		}
	}

	if c.Instance.PollInterval <= 0 {
		return errors.New("instance.poll_interval must be positive")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
