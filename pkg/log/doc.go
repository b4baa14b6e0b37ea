// Package log provides structured protocol logging for upnode.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at several layers (transport, rpc, connection).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	opts.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to a CBOR file
//	opts.ProtocolLogger, _ = log.NewFileLogger("/var/log/upnode/client.ulog")
//
//	// Both
//	opts.ProtocolLogger = log.NewMultiLogger(console, file)
//
// # Event Types
//
//   - Transport: raw frames (FrameEvent)
//   - RPC: decoded channel messages (MessageEvent)
//   - Connection: handle, channel and session state changes (StateChangeEvent)
//   - Heartbeat round trips and timeouts (HeartbeatEvent)
//   - Errors at any layer (ErrorEventData)
//
// # File Format
//
// Log files are a concatenation of CBOR-encoded events (.ulog). The
// upnode-log command views and summarizes them.
package log
