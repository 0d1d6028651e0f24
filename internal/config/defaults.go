package config

import (
	"time"

	"github.com/rickgao/hubkeeper/internal/connection"
)

// Default values for optional configuration fields.
const (
	DefaultTransport         = string(connection.TransportWebSockets)
	DefaultKeepAlive         = connection.DefaultKeepAliveInterval
	DefaultServerTimeout     = connection.DefaultServerTimeout
	DefaultConnectTimeout    = connection.DefaultConnectTimeout
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultKeepaliveInterval = connection.DefaultPingInterval
	DefaultMaxAttempts       = connection.DefaultMaxAttempts
	DefaultBaseDelay         = connection.DefaultBackoffBase
	DefaultMaxDelay          = connection.DefaultBackoffMaxWait
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *Config) applyDefaults() {
	// Hub defaults
	if c.Hub.Transport == "" {
		c.Hub.Transport = DefaultTransport
	}
	if c.Hub.KeepAlive == 0 {
		c.Hub.KeepAlive = DefaultKeepAlive
	}
	if c.Hub.ServerTimeout == 0 {
		c.Hub.ServerTimeout = DefaultServerTimeout
	}
	if c.Hub.ConnectTimeout == 0 {
		c.Hub.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Hub.HandshakeTimeout == 0 {
		c.Hub.HandshakeTimeout = DefaultHandshakeTimeout
	}

	if c.Keepalive.Interval == 0 {
		c.Keepalive.Interval = DefaultKeepaliveInterval
	}

	// Reconnect defaults
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultBaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultMaxDelay
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
