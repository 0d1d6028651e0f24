package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/hubkeeper/internal/events"
	"github.com/rickgao/hubkeeper/internal/metrics"
	"github.com/rickgao/hubkeeper/internal/queue"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock replaces the wall clock, typically with clock.NewMock() in tests.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		if clk != nil {
			m.clock = clk
		}
	}
}

// WithMetrics records lifecycle metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithBackoff overrides the retry policy.
func WithBackoff(b Backoff) Option {
	return func(m *Manager) {
		m.backoff = b
	}
}

// WithPingInterval sets the application keepalive period.
func WithPingInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pingInterval = d
		}
	}
}

// Manager keeps one hub connection alive. Create it with NewManager and
// release it with Close.
type Manager struct {
	factory      TransportFactory
	logger       *slog.Logger
	clock        clock.Clock
	metrics      *metrics.Metrics
	backoff      Backoff
	pingInterval time.Duration

	bus   *events.Bus
	inbox *queue.Queue[func()]
	done  chan struct{}

	// Mirrors for lock-free Status.
	status atomic.Int32
	built  atomic.Bool

	// Everything below is owned by the run goroutine.
	state      State
	cfg        *Config
	attempts   int
	gen        uint64
	groups     groupSet
	transport  Transport
	connCtx    context.Context
	connCancel context.CancelFunc

	watchdog  timerSlot
	keepalive timerSlot
	retry     timerSlot
}

// NewManager creates a manager and starts its actor goroutine.
func NewManager(factory TransportFactory, opts ...Option) *Manager {
	m := &Manager{
		factory:      factory,
		logger:       slog.Default(),
		clock:        clock.New(),
		backoff:      DefaultBackoff(),
		pingInterval: DefaultPingInterval,
		inbox:        queue.New[func()](32),
		done:         make(chan struct{}),
		groups:       newGroupSet(nil),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.bus = events.NewBus(events.WithLogger(m.logger), events.WithMetrics(m.metrics))
	m.metrics.SetState(StateDisconnected.String(), States())

	go m.run()

	return m
}

// Start begins a session. It returns once the request is accepted; the
// outcome is reported through events. Only configuration errors are returned.
func (m *Manager) Start(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	return m.call(func() { m.handleStart(cfg) })
}

// Stop tears the session down and resets the retry budget. It is idempotent
// and may be called from an event listener.
func (m *Manager) Stop() error {
	return m.call(m.handleStop)
}

// On registers fn for the event kind. Registrations are additive.
func (m *Manager) On(kind events.Kind, fn events.Listener) (events.Subscription, error) {
	return m.bus.Subscribe(kind, fn)
}

// OnName is On keyed by the event's wire name, e.g. "group_joined".
func (m *Manager) OnName(name string, fn events.Listener) (events.Subscription, error) {
	return m.bus.SubscribeName(name, fn)
}

// Status returns the current state. ok is false until a transport has been
// built for the first time.
func (m *Manager) Status() (state State, ok bool) {
	return State(m.status.Load()), m.built.Load()
}

// JoinGroup adds name to the desired group set. When connected the join is
// sent immediately, otherwise it is replayed on the next successful connect.
func (m *Manager) JoinGroup(name string) error {
	if name == "" {
		return ErrInvalidArgument
	}
	return m.call(func() { m.handleJoin(name) })
}

// LeaveGroup removes name from the desired group set, notifying the hub when
// connected.
func (m *Manager) LeaveGroup(name string) error {
	if name == "" {
		return ErrInvalidArgument
	}
	return m.call(func() { m.handleLeave(name) })
}

// Groups returns the desired group set in sorted order.
func (m *Manager) Groups() []string {
	var names []string
	if err := m.call(func() { names = m.groups.names() }); err != nil {
		return nil
	}
	return names
}

// Invoke calls a hub method on the live connection. It fails with
// ErrNotConnected unless the manager is connected.
func (m *Manager) Invoke(ctx context.Context, method string, args ...any) error {
	if method == "" {
		return ErrInvalidArgument
	}

	t, err := m.liveTransport()
	if err != nil {
		return err
	}

	err = t.Invoke(ctx, method, args...)
	m.metrics.Invocation(method, err)
	return err
}

// liveTransport snapshots the transport if the manager is connected.
func (m *Manager) liveTransport() (Transport, error) {
	var t Transport
	if err := m.call(func() {
		if m.state == StateConnected {
			t = m.transport
		}
	}); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotConnected
	}
	return t, nil
}

// Close stops the session, delivers pending events and ends the actor.
func (m *Manager) Close(ctx context.Context) error {
	if err := m.call(m.handleStop); err == nil {
		m.inbox.Close()
	}

	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return m.bus.Close(ctx)
}

func (m *Manager) run() {
	defer close(m.done)

	for {
		fn, ok := m.inbox.Pop()
		if !ok {
			return
		}
		fn()
	}
}

// post queues fn for the actor without waiting.
func (m *Manager) post(fn func()) {
	if !m.inbox.Push(fn) {
		m.logger.Debug("manager closed, dropping message")
	}
}

// call runs fn on the actor and waits for it to finish.
func (m *Manager) call(fn func()) error {
	ack := make(chan struct{})
	if !m.inbox.Push(func() {
		defer close(ack)
		fn()
	}) {
		return ErrClosed
	}
	<-ack
	return nil
}

func (m *Manager) handleStart(cfg Config) {
	if (m.state == StateConnecting || m.state == StateConnected) && m.cfg != nil && m.cfg.sameSession(cfg) {
		m.logger.Debug("start ignored, session already active", "state", m.state.String())
		return
	}

	m.teardown()

	if cfg.Groups != nil {
		m.groups = newGroupSet(cfg.Groups)
	}
	m.cfg = &cfg
	m.attempts = 0

	m.logger.Info("starting hub session",
		"url", cfg.HubURL,
		"transport", cfg.Transport,
		"groups", len(m.groups),
	)

	m.connect()
}

func (m *Manager) handleStop() {
	m.teardown()
	m.setState(StateDisconnected)
	m.attempts = 0
	m.cfg = nil
}

// teardown cancels every timer, invalidates in-flight callbacks and drops the
// transport.
func (m *Manager) teardown() {
	m.watchdog.cancel()
	m.keepalive.cancel()
	m.retry.cancel()
	m.gen++
	m.discardTransport()
}

func (m *Manager) discardTransport() {
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.transport == nil {
		return
	}
	if err := m.transport.Stop(); err != nil {
		m.logger.Debug("transport stop failed", "error", err)
	}
	m.transport = nil
}

// connect runs one attempt with the stored config.
func (m *Manager) connect() {
	m.gen++
	gen := m.gen
	cfg := *m.cfg

	m.setState(StateConnecting)
	m.metrics.ConnectAttempt()

	t, err := m.factory.Build(TransportConfig{
		URL:               cfg.HubURL,
		ServerTimeout:     cfg.ServerTimeout,
		KeepAliveInterval: cfg.KeepAliveInterval,
		TokenProvider:     cfg.tokenProvider(),
		Kind:              cfg.Transport,
		OnInvocation: func(target string, args []json.RawMessage) {
			m.post(func() { m.onInvocation(gen, target, args) })
		},
	})
	if err != nil {
		m.logger.Warn("build transport failed", "error", err)
		m.emit(events.ConnectionError(fmt.Errorf("%w: %w", ErrTransportStart, err)))
		m.reconnect(err)
		return
	}

	m.transport = t
	m.built.Store(true)
	m.connCtx, m.connCancel = context.WithCancel(context.Background())

	t.OnClosed(func(err error) {
		m.post(func() { m.onClosed(gen, err) })
	})

	m.watchdog.arm(m.clock, cfg.ConnectTimeout, func() {
		m.post(func() { m.onWatchdog(gen) })
	})

	ctx := m.connCtx
	go func() {
		err := t.Start(ctx)
		m.post(func() { m.onConnectResult(gen, err) })
	}()
}

func (m *Manager) onConnectResult(gen uint64, err error) {
	if gen != m.gen || m.state != StateConnecting {
		m.logger.Debug("discarding stale connect result", "gen", gen, "error", err)
		return
	}

	m.watchdog.cancel()

	if err != nil {
		m.logger.Warn("hub connect failed", "attempt", m.attempts, "error", err)
		m.emit(events.ConnectionError(fmt.Errorf("%w: %w", ErrTransportStart, err)))
		m.reconnect(err)
		return
	}

	m.setState(StateConnected)
	m.attempts = 0
	m.logger.Info("hub connected", "url", m.cfg.HubURL)

	m.rejoinGroups(gen)
	m.startKeepalive(gen)
	m.emit(events.Connected())
}

func (m *Manager) onWatchdog(gen uint64) {
	if gen != m.gen || m.state != StateConnecting {
		return
	}
	m.watchdog.cancel()

	m.logger.Warn("hub connect timed out", "timeout", m.cfg.ConnectTimeout)
	m.metrics.ConnectionTimeout()

	m.gen++
	m.discardTransport()
	m.emit(events.ConnectionTimeout())
	m.reconnect(ErrTimeout)
}

func (m *Manager) onClosed(gen uint64, err error) {
	if gen != m.gen {
		return
	}
	if m.state != StateConnected && m.state != StateConnecting {
		return
	}

	m.logger.Warn("hub connection closed", "error", err)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	m.reconnect(err)
}

// reconnect moves to Reconnecting and schedules the next attempt, or reports
// exhaustion when the budget is spent.
func (m *Manager) reconnect(cause error) {
	m.watchdog.cancel()
	m.keepalive.cancel()
	m.retry.cancel()
	m.gen++
	m.discardTransport()

	m.setState(StateReconnecting)
	m.emit(events.Disconnected(cause))

	if m.backoff.Exhausted(m.attempts) {
		m.logger.Error("reconnect attempts exhausted", "attempts", m.attempts)
		m.metrics.ReconnectExhausted()
		m.emit(events.ReconnectExhausted())
		return
	}

	m.attempts++
	delay := m.backoff.Delay(m.attempts)
	gen := m.gen

	m.retry.arm(m.clock, delay, func() {
		m.post(func() { m.onRetry(gen) })
	})
	m.metrics.ReconnectScheduled()
	m.logger.Info("reconnect scheduled", "attempt", m.attempts, "delay", delay)
	m.emit(events.Reconnecting(m.attempts, delay))
}

func (m *Manager) onRetry(gen uint64) {
	if gen != m.gen || m.state != StateReconnecting || m.cfg == nil {
		return
	}
	m.retry.cancel()
	m.connect()
}

func (m *Manager) startKeepalive(gen uint64) {
	m.keepalive.arm(m.clock, m.pingInterval, func() {
		m.post(func() { m.onKeepalive(gen) })
	})
}

func (m *Manager) onKeepalive(gen uint64) {
	if gen != m.gen || m.state != StateConnected {
		return
	}

	m.startKeepalive(gen)

	t, ctx := m.transport, m.connCtx
	go func() {
		err := t.Invoke(ctx, MethodPing)
		m.metrics.KeepalivePing(err)
		if err != nil {
			m.logger.Warn("keepalive ping failed", "error", err)
		}
	}()
}

// rejoinGroups replays the group set on the fresh connection. Joins run off
// the actor and report back one by one.
func (m *Manager) rejoinGroups(gen uint64) {
	names := m.groups.names()
	if len(names) == 0 {
		return
	}

	t, ctx := m.transport, m.connCtx
	go func() {
		for _, name := range names {
			err := t.Invoke(ctx, MethodAddToGroup, name)
			m.post(func() { m.onGroupJoined(gen, name, err) })
		}
	}()
}

func (m *Manager) onGroupJoined(gen uint64, name string, err error) {
	if gen != m.gen {
		return
	}

	m.metrics.GroupJoin(err)
	if err != nil {
		m.logger.Warn("group join failed", "group", name, "error", err)
		m.emit(events.GroupJoinError(name, fmt.Errorf("%w: %w", ErrGroupJoin, err)))
		return
	}

	m.logger.Debug("group joined", "group", name)
	m.emit(events.GroupJoined(name))
}

func (m *Manager) handleJoin(name string) {
	m.groups.add(name)
	if m.state != StateConnected {
		m.logger.Debug("group join deferred until connected", "group", name)
		return
	}

	gen, t, ctx := m.gen, m.transport, m.connCtx
	go func() {
		err := t.Invoke(ctx, MethodAddToGroup, name)
		m.post(func() { m.onGroupJoined(gen, name, err) })
	}()
}

func (m *Manager) handleLeave(name string) {
	if !m.groups.remove(name) || m.state != StateConnected {
		return
	}

	t, ctx := m.transport, m.connCtx
	go func() {
		err := t.Invoke(ctx, MethodRemoveFromGroup, name)
		m.metrics.Invocation(MethodRemoveFromGroup, err)
		if err != nil {
			m.logger.Warn("group leave failed", "group", name, "error", err)
		}
	}()
}

func (m *Manager) onInvocation(gen uint64, target string, args []json.RawMessage) {
	if gen != m.gen {
		return
	}
	m.metrics.HubMessage(target)
	m.emit(events.HubMessage(target, args))
}

func (m *Manager) setState(s State) {
	if m.state != s {
		m.logger.Debug("state change", "from", m.state.String(), "to", s.String())
	}
	m.state = s
	m.status.Store(int32(s))
	m.metrics.SetState(s.String(), States())
}

func (m *Manager) emit(e events.Event) {
	e.At = m.clock.Now()
	if err := m.bus.Emit(e); err != nil {
		m.logger.Debug("event dropped", "event", e.Kind.String(), "error", err)
	}
}
