// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Hub connection state and connect attempts
//   - Reconnect scheduling, timeouts and retry exhaustion
//   - Group rejoin and keepalive ping outcomes
//   - Emitted lifecycle events and inbound hub messages
//
// A nil *Metrics is valid and records nothing.
package metrics
