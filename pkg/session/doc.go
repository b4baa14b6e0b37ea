// Package session manages the accepted side of upnode connections.
//
// A Manager is the transport.Handler of a listener. Every accepted
// transport becomes a Session: an rpc.Channel in the listen direction whose
// local API always answers ping. Once the peer's hello arrives the session
// is tracked and a server-initiated heartbeat starts (10s period, 100s
// timeout by default). The session is torn down and untracked exactly once,
// whichever terminal signal comes first: local End, peer disconnect, peer
// close, protocol error, heartbeat timeout or listener shutdown.
//
// Connections that never complete the handshake are closed after
// HandshakeTimeout.
package session
