package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rickgao/hubkeeper/internal/events"
)

// Errors
var (
	ErrConfiguration   = errors.New("invalid configuration")
	ErrInvalidArgument = events.ErrInvalidArgument
	ErrNotConnected    = errors.New("not connected")
	ErrTransportStart  = errors.New("transport start failed")
	ErrTimeout         = errors.New("connect timeout")
	ErrTransportClosed = errors.New("transport closed")
	ErrGroupJoin       = errors.New("group join failed")
	ErrRetryExhausted  = errors.New("reconnect attempts exhausted")
	ErrClosed          = errors.New("manager closed")
)

// State is the manager's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// States lists every state, used for the state gauge.
func States() []string {
	return []string{
		StateDisconnected.String(),
		StateConnecting.String(),
		StateConnected.String(),
		StateReconnecting.String(),
	}
}

// TransportState is what a transport reports about itself.
type TransportState int32

const (
	TransportDisconnected TransportState = iota
	TransportConnecting
	TransportConnected
	TransportReconnecting
)

func (s TransportState) String() string {
	switch s {
	case TransportDisconnected:
		return "disconnected"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("transport_state(%d)", int32(s))
	}
}

// TransportKind selects the wire transport.
type TransportKind string

const (
	TransportWebSockets       TransportKind = "websockets"
	TransportServerSentEvents TransportKind = "server_sent_events"
	TransportLongPolling      TransportKind = "long_polling"
)

// TokenProvider returns the access token to present on connect. It is called
// once per connect attempt so rotated credentials are picked up.
type TokenProvider func(ctx context.Context) (string, error)

// InvocationHandler receives server-to-client hub invocations.
type InvocationHandler func(target string, args []json.RawMessage)

// Transport is a single hub connection.
type Transport interface {
	// Start connects and completes the hub handshake. It blocks until the
	// connection is usable, fails, or ctx is canceled.
	Start(ctx context.Context) error

	// Stop closes the connection. The closed callback may still fire.
	Stop() error

	// Invoke calls a hub method and waits for its completion.
	Invoke(ctx context.Context, method string, args ...any) error

	// OnClosed registers the callback fired when an established connection ends.
	OnClosed(fn func(error))

	State() TransportState
}

// TransportConfig carries everything a factory needs to build a transport.
type TransportConfig struct {
	URL               string
	ServerTimeout     time.Duration
	KeepAliveInterval time.Duration
	TokenProvider     TokenProvider
	Kind              TransportKind
	OnInvocation      InvocationHandler
}

// TransportFactory builds transports. The manager calls Build once per attempt.
type TransportFactory interface {
	Build(cfg TransportConfig) (Transport, error)
}

// TransportFactoryFunc adapts a function to TransportFactory.
type TransportFactoryFunc func(cfg TransportConfig) (Transport, error)

func (f TransportFactoryFunc) Build(cfg TransportConfig) (Transport, error) {
	return f(cfg)
}

// Presentation is display metadata for the host process. The manager carries
// it but never reads it.
type Presentation struct {
	Title string
	Text  string
}

// Config is the per-session configuration passed to Start.
type Config struct {
	HubURL        string
	AccessToken   string
	TokenProvider TokenProvider // takes precedence over AccessToken
	Groups        []string      // nil keeps the current group set
	Transport     TransportKind

	KeepAliveInterval time.Duration // transport-level keepalive
	ServerTimeout     time.Duration
	ConnectTimeout    time.Duration

	Presentation Presentation
}

// Session defaults.
const (
	DefaultKeepAliveInterval = 30 * time.Second
	DefaultServerTimeout     = 60 * time.Second
	DefaultConnectTimeout    = 15 * time.Second
	DefaultPingInterval      = 15 * time.Second
)

// Validate reports configuration errors that prevent any connect attempt.
func (c Config) Validate() error {
	if c.HubURL == "" {
		return fmt.Errorf("%w: hub url is required", ErrConfiguration)
	}
	if c.KeepAliveInterval < 0 || c.ServerTimeout < 0 || c.ConnectTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrConfiguration)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Transport == "" {
		c.Transport = TransportWebSockets
	}
	if c.KeepAliveInterval == 0 {
		c.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.ServerTimeout == 0 {
		c.ServerTimeout = DefaultServerTimeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Groups != nil {
		c.Groups = slices.Clone(c.Groups)
	}
	return c
}

// sameSession reports whether o describes the same session as c. Token
// providers are functions and cannot be compared, so they are ignored.
func (c Config) sameSession(o Config) bool {
	return c.HubURL == o.HubURL &&
		c.AccessToken == o.AccessToken &&
		c.Transport == o.Transport &&
		c.KeepAliveInterval == o.KeepAliveInterval &&
		c.ServerTimeout == o.ServerTimeout &&
		c.ConnectTimeout == o.ConnectTimeout &&
		c.Presentation == o.Presentation &&
		(o.Groups == nil || slices.Equal(c.Groups, o.Groups))
}

func (c Config) tokenProvider() TokenProvider {
	if c.TokenProvider != nil {
		return c.TokenProvider
	}
	if c.AccessToken == "" {
		return nil
	}
	token := c.AccessToken
	return func(context.Context) (string, error) { return token, nil }
}
