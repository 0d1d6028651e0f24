// Package hub implements a SignalR JSON hub protocol client over WebSocket.
//
// The client:
//   - Dials the hub directly (no negotiate round trip)
//   - Performs the {"protocol":"json","version":1} handshake
//   - Correlates invocations with completions by invocation id
//   - Sends protocol pings every keepalive interval
//   - Treats silence longer than the server timeout as a dead connection
//
// Client satisfies connection.Transport; Factory satisfies
// connection.TransportFactory.
package hub
