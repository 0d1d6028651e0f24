package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/hubkeeper/internal/metrics"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func closeBus(t *testing.T, b *Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Close(ctx))
}

func TestBus_SubscribeValidation(t *testing.T) {
	b := NewBus()
	defer closeBus(t, b)

	_, err := b.Subscribe(Kind(0), func(Event) {})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = b.Subscribe(KindConnected, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = b.SubscribeName("", func(Event) {})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = b.SubscribeName("no_such_event", func(Event) {})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	sub, err := b.SubscribeName("group_joined", func(Event) {})
	require.NoError(t, err)
	assert.Equal(t, KindGroupJoined, sub.Kind())
}

func TestBus_PreservesEmissionOrder(t *testing.T) {
	b := NewBus()
	rec := &recorder{}

	for _, k := range Kinds() {
		_, err := b.Subscribe(k, rec.listen)
		require.NoError(t, err)
	}

	want := []Event{
		ConnectionTimeout(),
		Disconnected(nil),
		Reconnecting(1, 0),
		Connected(),
		GroupJoined("room-1"),
	}
	for _, e := range want {
		require.NoError(t, b.Emit(e))
	}

	closeBus(t, b)

	got := rec.snapshot()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Kind, got[i].Kind, "event %d", i)
	}
	assert.Equal(t, "room-1", got[4].Group)
}

func TestBus_MultipleListenersAreAdditive(t *testing.T) {
	b := NewBus()
	first, second := &recorder{}, &recorder{}

	_, err := b.Subscribe(KindConnected, first.listen)
	require.NoError(t, err)
	_, err = b.Subscribe(KindConnected, second.listen)
	require.NoError(t, err)
	_, err = b.Subscribe(KindConnected, first.listen)
	require.NoError(t, err)

	assert.Equal(t, 3, b.Listeners(KindConnected))

	require.NoError(t, b.Emit(Connected()))
	closeBus(t, b)

	assert.Len(t, first.snapshot(), 2)
	assert.Len(t, second.snapshot(), 1)
}

func TestBus_DeliversOffCallerGoroutine(t *testing.T) {
	b := NewBus()
	defer closeBus(t, b)

	release := make(chan struct{})
	delivered := make(chan struct{})

	_, err := b.Subscribe(KindConnected, func(Event) {
		<-release
		close(delivered)
	})
	require.NoError(t, err)

	emitted := make(chan struct{})
	go func() {
		_ = b.Emit(Connected())
		close(emitted)
	}()

	select {
	case <-emitted:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow listener")
	}

	close(release)
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	b := NewBus()
	rec := &recorder{}

	sub, err := b.Subscribe(KindDisconnected, rec.listen)
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()
	Subscription{}.Cancel()

	assert.Equal(t, 0, b.Listeners(KindDisconnected))

	require.NoError(t, b.Emit(Disconnected(errors.New("gone"))))
	closeBus(t, b)

	assert.Empty(t, rec.snapshot())
}

func TestBus_ListenerPanicIsRecovered(t *testing.T) {
	b := NewBus()
	rec := &recorder{}

	_, err := b.Subscribe(KindConnectionError, func(Event) { panic("listener bug") })
	require.NoError(t, err)
	_, err = b.Subscribe(KindConnectionError, rec.listen)
	require.NoError(t, err)

	require.NoError(t, b.Emit(ConnectionError(errors.New("dial failed"))))
	require.NoError(t, b.Emit(ConnectionError(errors.New("dial failed again"))))
	closeBus(t, b)

	assert.Len(t, rec.snapshot(), 2)
}

func TestBus_EmitAfterClose(t *testing.T) {
	b := NewBus()
	closeBus(t, b)

	assert.ErrorIs(t, b.Emit(Connected()), ErrBusClosed)
}

func TestBus_CountsEmittedEvents(t *testing.T) {
	m := metrics.New()
	b := NewBus(WithMetrics(m))

	require.NoError(t, b.Emit(Connected()))
	require.NoError(t, b.Emit(Connected()))
	require.NoError(t, b.Emit(ReconnectExhausted()))
	closeBus(t, b)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsEmittedTotal.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsEmittedTotal.WithLabelValues("reconnect_exhausted")))
}
