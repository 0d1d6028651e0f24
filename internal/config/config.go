package config

import "time"

// Config is the root configuration for a hubkeeper instance.
type Config struct {
	Hub          HubConfig          `yaml:"hub"`
	Keepalive    KeepaliveConfig    `yaml:"keepalive"`
	Reconnect    ReconnectConfig    `yaml:"reconnect"`
	Presentation PresentationConfig `yaml:"presentation"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Log          LogConfig          `yaml:"log"`
}

// HubConfig holds the hub endpoint and session settings.
type HubConfig struct {
	URL              string        `yaml:"url"`
	AccessToken      string        `yaml:"access_token"`
	TokenFile        string        `yaml:"token_file"` // re-read on every connect; wins over access_token
	Groups           []string      `yaml:"groups"`
	Transport        string        `yaml:"transport"`
	KeepAlive        time.Duration `yaml:"keep_alive_interval"`
	ServerTimeout    time.Duration `yaml:"server_timeout"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// KeepaliveConfig holds the application-level ping loop settings.
type KeepaliveConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ReconnectConfig holds retry backoff settings.
type ReconnectConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// PresentationConfig is display metadata passed through to the session.
type PresentationConfig struct {
	Title string `yaml:"title"`
	Text  string `yaml:"text"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
