// Package wire defines the CBOR wire format of the upnode RPC channel.
//
// Every frame carries exactly one Message. Maps use integer keys, so the
// encoding stays compact and independent of Go field names.
//
// # Message Types
//
//   - Hello: first message on a channel; announces the session ID and the
//     names of the methods the sender exposes
//   - Call: invokes a method on the peer; ID correlates the reply
//   - Reply: result (or error string) of a Call
//   - Close: the sender is ending the channel
//
// # Heartbeats
//
// There is no dedicated control frame for liveness. A heartbeat is an
// ordinary Call of the "ping" method with no arguments, answered by an
// empty Reply.
package wire
