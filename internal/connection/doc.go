// Package connection implements the hub connection lifecycle manager.
//
// The Manager:
//   - Owns exactly one transport handle at a time
//   - Fails connect attempts that outlive the connect timeout (watchdog)
//   - Retries with bounded exponential backoff until the attempt budget runs out
//   - Replays the desired group set after every successful connect
//   - Pings the hub on a fixed interval while connected (keepalive)
//   - Publishes lifecycle events on an events.Bus
//
// All state lives on a single actor goroutine. Timers and transport callbacks
// post messages into its inbox stamped with the connection generation they
// belong to, and the actor drops any message whose generation is stale.
package connection
