package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rickgao/hubkeeper/internal/metrics"
	"github.com/rickgao/hubkeeper/internal/queue"
)

// Errors
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrBusClosed       = errors.New("event bus closed")
)

// Listener receives events on the bus dispatch goroutine.
type Listener func(Event)

type subscriber struct {
	id uint64
	fn Listener
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	bus  *Bus
	kind Kind
	id   uint64
}

// Cancel removes the listener. Safe to call more than once and from inside
// a listener; events already being dispatched may still reach it.
func (s Subscription) Cancel() {
	if s.bus == nil {
		return
	}
	s.bus.unsubscribe(s.kind, s.id)
}

// Kind returns the event kind this subscription listens to.
func (s Subscription) Kind() Kind {
	return s.kind
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for listener panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics counts emitted events by kind.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// Bus fans events out to listeners registered per kind.
type Bus struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	subs   map[Kind][]subscriber
	nextID uint64

	pending *queue.Queue[Event]
	done    chan struct{}
}

// NewBus creates a bus and starts its dispatch goroutine.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		logger:  slog.Default(),
		subs:    make(map[Kind][]subscriber),
		pending: queue.New[Event](64),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.dispatchLoop()

	return b
}

// Subscribe registers fn for kind. Registration is additive: subscribing the
// same function twice delivers twice.
func (b *Bus) Subscribe(kind Kind, fn Listener) (Subscription, error) {
	if !kind.Valid() {
		return Subscription{}, ErrInvalidArgument
	}
	if fn == nil {
		return Subscription{}, ErrInvalidArgument
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[kind] = append(b.subs[kind], subscriber{id: b.nextID, fn: fn})

	return Subscription{bus: b, kind: kind, id: b.nextID}, nil
}

// SubscribeName is Subscribe keyed by the wire name of the event.
func (b *Bus) SubscribeName(name string, fn Listener) (Subscription, error) {
	if name == "" {
		return Subscription{}, ErrInvalidArgument
	}
	kind, err := ParseKind(name)
	if err != nil {
		return Subscription{}, err
	}
	return b.Subscribe(kind, fn)
}

// Emit queues e for delivery and returns immediately.
func (b *Bus) Emit(e Event) error {
	if !b.pending.Push(e) {
		return ErrBusClosed
	}
	b.metrics.EventEmitted(e.Kind.String())
	return nil
}

// Listeners returns the number of listeners registered for kind.
func (b *Bus) Listeners(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Close stops accepting events, delivers everything already queued and waits
// for the dispatch goroutine to exit or ctx to expire.
func (b *Bus) Close(ctx context.Context) error {
	b.pending.Close()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) unsubscribe(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[kind]
	for i, s := range list {
		if s.id == id {
			next := make([]subscriber, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			b.subs[kind] = next
			return
		}
	}
}

func (b *Bus) dispatchLoop() {
	defer close(b.done)

	for {
		e, ok := b.pending.Pop()
		if !ok {
			return
		}

		// Writers only append past len or replace the slice, so the snapshot is stable.
		b.mu.RLock()
		list := b.subs[e.Kind]
		b.mu.RUnlock()

		for _, s := range list {
			b.deliver(s, e)
		}
	}
}

func (b *Bus) deliver(s subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked",
				"event", e.Kind.String(),
				"listener", s.id,
				"panic", r,
			)
		}
	}()
	s.fn(e)
}
