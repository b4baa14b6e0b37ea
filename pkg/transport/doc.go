// Package transport provides the byte-stream layer under RPC channels.
//
// It handles:
//   - Dialing plain TCP, unix socket, and TLS transports
//   - Accepting transports and handing each to a Handler
//   - Length-prefixed message framing
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      CBOR Messages (rpc)       │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│      TLS 1.2+ (optional)       │
//	├────────────────────────────────┤
//	│      TCP or unix socket        │
//	└────────────────────────────────┘
//
// Liveness is not handled here. Heartbeats are ordinary RPC calls driven by
// the liveness package.
package transport
