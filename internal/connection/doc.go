// Package connection implements the gateway connection.
//
// A Gateway owns at most one WebSocket session at a time:
//   - Connect dials the gateway (Idle/Closed -> Connecting -> Open)
//   - A heartbeat goroutine writes {"op":"PING"} while the session is Open
//   - The read loop decodes {op, d} envelopes and emits typed events in arrival order
//   - Close sends a normal close frame and releases the socket
//
// Reconnection is manual: after a ClosedEvent the owner may call Connect again.
package connection
