package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/rickgao/hubkeeper/internal/connection"
)

var (
	transports = []string{
		string(connection.TransportWebSockets),
		string(connection.TransportServerSentEvents),
		string(connection.TransportLongPolling),
	}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Hub.URL == "" {
		return errors.New("hub.url is required")
	}
	u, err := url.Parse(c.Hub.URL)
	if err != nil {
		return fmt.Errorf("hub.url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("hub.url scheme must be ws, wss, http or https, got %q", u.Scheme)
	}

	if !slices.Contains(transports, c.Hub.Transport) {
		return fmt.Errorf("hub.transport must be one of %s, got %q", strings.Join(transports, ", "), c.Hub.Transport)
	}
	for i, g := range c.Hub.Groups {
		if strings.TrimSpace(g) == "" {
			return fmt.Errorf("hub.groups[%d] must not be empty", i)
		}
	}

	if c.Hub.KeepAlive < 0 || c.Hub.ServerTimeout < 0 || c.Hub.ConnectTimeout < 0 || c.Hub.HandshakeTimeout < 0 {
		return errors.New("hub timeouts must not be negative")
	}
	if c.Hub.KeepAlive > 0 && c.Hub.ServerTimeout > 0 && c.Hub.ServerTimeout <= c.Hub.KeepAlive {
		return fmt.Errorf("hub.server_timeout (%s) must exceed keep_alive_interval (%s)", c.Hub.ServerTimeout, c.Hub.KeepAlive)
	}
	if c.Keepalive.Interval <= 0 {
		return errors.New("keepalive.interval must be > 0")
	}

	if c.Reconnect.MaxAttempts < 1 {
		return errors.New("reconnect.max_attempts must be >= 1")
	}
	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%s) cannot be less than base_delay (%s)", c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		return fmt.Errorf("log.level must be one of %s, got %q", strings.Join(logLevels, ", "), c.Log.Level)
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		return fmt.Errorf("log.format must be one of %s, got %q", strings.Join(logFormats, ", "), c.Log.Format)
	}

	return nil
}
