// Package discovery advertises and finds upnode listeners over mDNS/DNS-SD.
//
// Listeners register one instance of the _upnode._tcp service. The
// instance name is chosen by the application; TXT records carry the
// protocol version, the node ID, the transport security and, optionally,
// the names of the methods the listener exposes:
//
//	v=1 id=<node-id> tls=1 api=echo,time
//
// A Resolver looks an instance up before each connection attempt, so a
// connection.Handle follows a listener that moved to another address.
package discovery
