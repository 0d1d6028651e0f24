package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/hubkeeper/internal/connection"
)

// Errors
var (
	ErrAlreadyStarted       = errors.New("client already started")
	ErrClientStopped        = errors.New("client stopped")
	ErrHandshake            = errors.New("hub handshake failed")
	ErrServerClosed         = errors.New("hub closed the connection")
	ErrServerTimeout        = errors.New("no message from hub within server timeout")
	ErrInvocationFailed     = errors.New("hub invocation failed")
	ErrConnectionLost       = errors.New("connection lost before completion")
	ErrUnsupportedTransport = errors.New("unsupported transport")
)

// Config configures a Client.
type Config struct {
	URL               string
	TokenProvider     connection.TokenProvider
	ServerTimeout     time.Duration // read deadline between inbound messages
	KeepAliveInterval time.Duration // protocol ping period
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	OnInvocation      connection.InvocationHandler
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServerTimeout:     connection.DefaultServerTimeout,
		KeepAliveInterval: connection.DefaultKeepAliveInterval,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
}

type completion struct {
	result json.RawMessage
	err    error
}

// Client is one hub connection. It is single-use: once stopped or closed it
// cannot be restarted.
type Client struct {
	cfg    Config
	logger *slog.Logger
	id     string

	mu       sync.RWMutex
	conn     *websocket.Conn
	state    connection.TransportState
	started  bool
	stopped  bool
	onClosed func(error)

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan completion

	done     chan struct{}
	stopOnce sync.Once
}

// NewClient creates a client. Start connects it.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()

	return &Client{
		cfg:     cfg,
		logger:  logger.With("hub_conn", id),
		id:      id,
		pending: make(map[string]chan completion),
		done:    make(chan struct{}),
	}
}

// ID identifies this connection in logs.
func (c *Client) ID() string {
	return c.id
}

// Start dials the hub and completes the handshake.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrClientStopped
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.state = connection.TransportConnecting
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(connection.TransportDisconnected)
		return err
	}

	pending, err := c.handshake(ctx, conn)
	if err != nil {
		conn.Close()
		c.setState(connection.TransportDisconnected)
		return err
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		conn.Close()
		return ErrClientStopped
	}
	c.conn = conn
	c.state = connection.TransportConnected
	c.mu.Unlock()

	for _, frame := range pending {
		if err := c.dispatch(frame); err != nil {
			c.logger.Debug("dropping early frame", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return c.readLoop(conn) })
	g.Go(func() error { return c.pingLoop(gctx, conn) })
	go func() {
		c.finish(g.Wait())
	}()

	c.logger.Debug("hub connected", "url", c.cfg.URL)

	return nil
}

// Stop closes the connection. The closed callback fires with a nil error.
func (c *Client) Stop() error {
	var conn *websocket.Conn
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		conn = c.conn
		c.mu.Unlock()
		close(c.done)
	})
	if conn == nil {
		c.setState(connection.TransportDisconnected)
		return nil
	}

	c.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	return conn.Close()
}

// Invoke calls a hub method and waits for its completion.
func (c *Client) Invoke(ctx context.Context, method string, args ...any) error {
	_, err := c.Call(ctx, method, args...)
	return err
}

// Call is Invoke that also returns the method's result.
func (c *Client) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if c.State() != connection.TransportConnected {
		return nil, connection.ErrNotConnected
	}

	id := uuid.NewString()
	ch := make(chan completion, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(newInvocation(id, method, args)); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClientStopped
	case res := <-ch:
		return res.result, res.err
	}
}

// OnClosed registers fn to run when an established connection ends.
func (c *Client) OnClosed(fn func(error)) {
	c.mu.Lock()
	c.onClosed = fn
	c.mu.Unlock()
}

// State returns the transport state.
func (c *Client) State() connection.TransportState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(s connection.TransportState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse hub url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	header := http.Header{}
	if c.cfg.TokenProvider != nil {
		token, err := c.cfg.TokenProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("access token: %w", err)
		}
		if token != "" {
			q := u.Query()
			q.Set("access_token", token)
			u.RawQuery = q.Encode()
			header.Set("Authorization", "Bearer "+token)
		}
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial hub: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial hub: %w", err)
	}
	return conn, nil
}

// handshake sends the protocol request and waits for the response. Frames that
// arrive in the same payload after the response are returned for dispatch.
func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) ([][]byte, error) {
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	// Unblock the read if ctx is canceled mid-handshake.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	frame, err := encodeFrame(handshakeRequest{Protocol: "json", Version: 1})
	if err != nil {
		return nil, err
	}
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	frames := splitFrames(data)
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrHandshake)
	}

	var resp handshakeResponse
	if err := json.Unmarshal(frames[0], &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrHandshake, resp.Error)
	}

	conn.SetReadDeadline(time.Time{})
	return frames[1:], nil
}

// readLoop reads until the connection fails, the server closes it, or Stop.
func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		if c.cfg.ServerTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(c.cfg.ServerTimeout))
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}

			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return ErrServerTimeout
			}
			return err
		}

		for _, frame := range splitFrames(data) {
			if err := c.dispatch(frame); err != nil {
				conn.Close()
				return err
			}
		}
	}
}

// dispatch handles one inbound record. A non-nil error ends the connection.
func (c *Client) dispatch(frame []byte) error {
	var msg envelope
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.logger.Warn("malformed hub frame", "error", err)
		return nil
	}

	switch msg.Type {
	case typeInvocation:
		if c.cfg.OnInvocation != nil {
			c.cfg.OnInvocation(msg.Target, msg.Arguments)
		}

	case typeCompletion:
		res := completion{result: msg.Result}
		if msg.Error != "" {
			res.err = fmt.Errorf("%w: %s", ErrInvocationFailed, msg.Error)
		}
		c.complete(msg.InvocationID, res)

	case typePing:

	case typeClose:
		if msg.Error != "" {
			return fmt.Errorf("%w: %s", ErrServerClosed, msg.Error)
		}
		return ErrServerClosed

	default:
		c.logger.Debug("ignoring hub message", "type", msg.Type)
	}

	return nil
}

func (c *Client) complete(id string, res completion) {
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- res
	}
}

// pingLoop keeps the server's idle timer from expiring.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	if c.cfg.KeepAliveInterval <= 0 {
		return nil
	}

	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.write(pingMessage{Type: typePing}); err != nil {
				select {
				case <-c.done:
					return nil
				default:
				}
				conn.Close()
				return fmt.Errorf("send ping: %w", err)
			}
		}
	}
}

func (c *Client) write(v any) error {
	frame, err := encodeFrame(v)
	if err != nil {
		return err
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return connection.ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// finish runs once both loops have exited.
func (c *Client) finish(err error) {
	c.mu.Lock()
	c.state = connection.TransportDisconnected
	fn := c.onClosed
	stopped := c.stopped
	c.mu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		ch <- completion{err: ErrConnectionLost}
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	if stopped {
		err = nil
	} else {
		c.logger.Warn("hub connection closed", "error", err)
	}

	if fn != nil {
		fn(err)
	}
}
