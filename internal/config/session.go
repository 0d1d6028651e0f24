package config

import (
	"github.com/rickgao/hubkeeper/internal/auth"
	"github.com/rickgao/hubkeeper/internal/connection"
)

// Session converts the hub section into the manager's per-session config.
func (c *Config) Session() connection.Config {
	sc := connection.Config{
		HubURL:            c.Hub.URL,
		AccessToken:       c.Hub.AccessToken,
		Groups:            c.Hub.Groups,
		Transport:         connection.TransportKind(c.Hub.Transport),
		KeepAliveInterval: c.Hub.KeepAlive,
		ServerTimeout:     c.Hub.ServerTimeout,
		ConnectTimeout:    c.Hub.ConnectTimeout,
		Presentation: connection.Presentation{
			Title: c.Presentation.Title,
			Text:  c.Presentation.Text,
		},
	}
	if c.Hub.TokenFile != "" {
		sc.TokenProvider = auth.FromFile(c.Hub.TokenFile)
	}
	return sc
}

// Backoff returns the reconnect schedule.
func (c *Config) Backoff() connection.Backoff {
	return connection.Backoff{
		Base:        c.Reconnect.BaseDelay,
		Max:         c.Reconnect.MaxDelay,
		MaxAttempts: c.Reconnect.MaxAttempts,
	}
}
