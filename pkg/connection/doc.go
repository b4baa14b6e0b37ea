// Package connection implements durable outbound connections.
//
// A Handle owns one logical connection to a server. A supervisor goroutine
// dials, handshakes and serves one channel at a time; when the channel ends
// for any reason it waits the reconnect delay and starts over, until Close.
//
// # States
//
//	CONNECTING -> HANDSHAKING -> READY -> ENDING -> CONNECTING ...
//
// CLOSED is entered after Close and never left.
//
// # Invocations
//
// Invoke runs a callback with the current peer. While no peer is ready the
// callback is queued and flushed in insertion order on the next successful
// handshake, after Block has run. InvokeTimeout adds a deadline after which
// the callback runs once with nil arguments instead.
//
// # Events
//
// Subscribers observe the lifecycle through Event values:
//
//   - Remote: handshake completed
//   - Up: peer ready and queue flushed
//   - Ping: one heartbeat round trip
//   - Down: a channel or an attempt ended
//   - Reconnect: a retry starts
//   - Error: missing ping, protocol violations, panicking callbacks
//   - Close: Close was called
//
// # Heartbeats
//
// With Ping set, every ready channel gets a liveness prober. A heartbeat
// unanswered for Timeout closes the transport, which leads to Down and a
// reconnect.
package connection
