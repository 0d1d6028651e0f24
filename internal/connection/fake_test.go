package connection

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rickgao/hubkeeper/internal/events"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type invocation struct {
	method string
	args   []any
}

// fakeTransport completes Start only when the test says so. Like a real
// SignalR client, Stop fires the closed callback.
type fakeTransport struct {
	cfg       TransportConfig
	ignoreCtx bool
	invokeErr map[string]error

	result    chan error
	started   chan struct{}
	startOnce sync.Once

	mu       sync.Mutex
	onClosed func(error)
	invokes  []invocation
	stops    int
	state    TransportState
	returned bool
}

func (f *fakeTransport) Start(ctx context.Context) error {
	f.startOnce.Do(func() { close(f.started) })

	var err error
	if f.ignoreCtx {
		err = <-f.result
	} else {
		select {
		case err = <-f.result:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	f.mu.Lock()
	f.returned = true
	if err == nil {
		f.state = TransportConnected
	}
	f.mu.Unlock()
	return err
}

func (f *fakeTransport) Stop() error {
	f.mu.Lock()
	f.stops++
	f.state = TransportDisconnected
	fn := f.onClosed
	f.mu.Unlock()

	if fn != nil {
		fn(nil)
	}
	return nil
}

func (f *fakeTransport) Invoke(ctx context.Context, method string, args ...any) error {
	f.mu.Lock()
	f.invokes = append(f.invokes, invocation{method: method, args: args})
	f.mu.Unlock()

	key := method
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			key = method + ":" + s
		}
	}
	if err, ok := f.invokeErr[key]; ok {
		return err
	}
	return f.invokeErr[method]
}

func (f *fakeTransport) OnClosed(fn func(error)) {
	f.mu.Lock()
	f.onClosed = fn
	f.mu.Unlock()
}

func (f *fakeTransport) State() TransportState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) succeed() { f.result <- nil }

func (f *fakeTransport) fail(err error) { f.result <- err }

func (f *fakeTransport) close(err error) { f.closedCallback()(err) }

func (f *fakeTransport) receive(target string, args ...json.RawMessage) {
	f.cfg.OnInvocation(target, args)
}

func (f *fakeTransport) closedCallback() func(error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onClosed
}

func (f *fakeTransport) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *fakeTransport) hasReturned() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.returned
}

// calls returns invocations of method, formatted as their first argument.
func (f *fakeTransport) calls(method string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []any
	for _, inv := range f.invokes {
		if inv.method != method {
			continue
		}
		if len(inv.args) > 0 {
			out = append(out, inv.args[0])
		} else {
			out = append(out, nil)
		}
	}
	return out
}

// resultTransport adds hub method results on top of fakeTransport.
type resultTransport struct {
	*fakeTransport
	result json.RawMessage
}

func (r *resultTransport) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if err := r.Invoke(ctx, method, args...); err != nil {
		return nil, err
	}
	return r.result, nil
}

type fakeFactory struct {
	buildErr   error
	ignoreCtx  bool
	invokeErr  map[string]error
	callResult json.RawMessage

	mu         sync.Mutex
	transports []*fakeTransport
}

func (f *fakeFactory) Build(cfg TransportConfig) (Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.buildErr != nil {
		return nil, f.buildErr
	}

	t := &fakeTransport{
		cfg:       cfg,
		ignoreCtx: f.ignoreCtx,
		invokeErr: f.invokeErr,
		result:    make(chan error, 1),
		started:   make(chan struct{}),
	}
	f.transports = append(f.transports, t)
	if f.callResult != nil {
		return &resultTransport{fakeTransport: t, result: f.callResult}, nil
	}
	return t, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transports)
}

// await returns the n-th transport (1-based) once its Start has been called.
// By then the manager has armed the watchdog for that attempt.
func (f *fakeFactory) await(t *testing.T, n int) *fakeTransport {
	t.Helper()

	require.Eventually(t, func() bool { return f.count() >= n }, waitFor, tick, "transport %d never built", n)

	f.mu.Lock()
	tr := f.transports[n-1]
	f.mu.Unlock()

	select {
	case <-tr.started:
	case <-time.After(waitFor):
		t.Fatalf("transport %d never started", n)
	}
	return tr
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(e events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *eventLog) of(kind events.Kind) []events.Event {
	var out []events.Event
	for _, e := range l.all() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) kinds() []events.Kind {
	var out []events.Kind
	for _, e := range l.all() {
		out = append(out, e.Kind)
	}
	return out
}

func (l *eventLog) waitCount(t *testing.T, kind events.Kind, n int) []events.Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(l.of(kind)) >= n }, waitFor, tick,
		"expected %d %s events, got %v", n, kind, l.kinds())
	return l.of(kind)
}
