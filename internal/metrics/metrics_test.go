package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SetState("connected", []string{"connected"})
		m.ConnectAttempt()
		m.ReconnectScheduled()
		m.ConnectionTimeout()
		m.ReconnectExhausted()
		m.GroupJoin(nil)
		m.KeepalivePing(errors.New("boom"))
		m.EventEmitted("connected")
		m.HubMessage("UserJoined")
		m.Invocation("Ping", nil)
	})
	assert.Nil(t, m.Registry())
}

func TestSetState(t *testing.T) {
	m := New()
	states := []string{"disconnected", "connecting", "connected", "reconnecting"}

	m.SetState("connecting", states)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionState.WithLabelValues("connecting")))

	m.SetState("connected", states)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ConnectionState.WithLabelValues("connecting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionState.WithLabelValues("connected")))
}

func TestCounters(t *testing.T) {
	m := New()

	m.ConnectAttempt()
	m.ConnectAttempt()
	m.ReconnectScheduled()
	m.ConnectionTimeout()
	m.ReconnectExhausted()
	m.GroupJoin(nil)
	m.GroupJoin(errors.New("denied"))
	m.KeepalivePing(nil)
	m.EventEmitted("connected")
	m.HubMessage("ReceiveMessage")
	m.Invocation("Ping", errors.New("closed"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConnectAttemptsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconnectsScheduledTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionTimeoutsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconnectExhaustedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GroupJoinsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GroupJoinsTotal.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeepalivePingsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsEmittedTotal.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HubMessagesTotal.WithLabelValues("ReceiveMessage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("Ping", ResultFailure)))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ConnectAttempt()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "hubkeeper_connect_attempts_total 1"))
}
