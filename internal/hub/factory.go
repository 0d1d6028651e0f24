package hub

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/hubkeeper/internal/connection"
)

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger sets the logger handed to every client.
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithHandshakeTimeout bounds the WebSocket upgrade and the hub handshake.
func WithHandshakeTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) {
		if d > 0 {
			f.handshakeTimeout = d
		}
	}
}

// WithWriteTimeout sets the per-frame write deadline.
func WithWriteTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) {
		if d > 0 {
			f.writeTimeout = d
		}
	}
}

// Factory builds WebSocket hub clients for the connection manager.
type Factory struct {
	logger           *slog.Logger
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
}

// NewFactory creates a factory.
func NewFactory(opts ...FactoryOption) *Factory {
	defaults := DefaultConfig()
	f := &Factory{
		logger:           slog.Default(),
		handshakeTimeout: defaults.HandshakeTimeout,
		writeTimeout:     defaults.WriteTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build returns a new, unstarted client. Only the WebSockets transport is
// supported.
func (f *Factory) Build(cfg connection.TransportConfig) (connection.Transport, error) {
	switch cfg.Kind {
	case "", connection.TransportWebSockets:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransport, cfg.Kind)
	}

	return NewClient(Config{
		URL:               cfg.URL,
		TokenProvider:     cfg.TokenProvider,
		ServerTimeout:     cfg.ServerTimeout,
		KeepAliveInterval: cfg.KeepAliveInterval,
		HandshakeTimeout:  f.handshakeTimeout,
		WriteTimeout:      f.writeTimeout,
		OnInvocation:      cfg.OnInvocation,
	}, f.logger), nil
}
