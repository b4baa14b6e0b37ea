package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

const (
	// ServiceType is the DNS-SD service type of upnode listeners.
	ServiceType = "_upnode._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// ProtocolVersion is advertised in the v TXT record.
	ProtocolVersion = "1"

	// BrowseTimeout is the default timeout for a lookup.
	BrowseTimeout = 5 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyVersion = "v"
	TXTKeyNodeID  = "id"
	TXTKeyTLS     = "tls"
	TXTKeyMethods = "api"
)

var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrUnsupportedVersion  = errors.New("unsupported protocol version")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrEmptyInstanceName   = errors.New("instance name is empty")
	ErrNotFound            = errors.New("service not found")
	ErrNoAddress           = errors.New("service has no address")
)

// Info describes a listener to advertise.
type Info struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// Port is the TCP port of the listener.
	Port uint16

	// NodeID identifies the advertising node.
	NodeID string

	// TLS is set when the listener requires TLS.
	TLS bool

	// Methods optionally lists the API the listener exposes.
	Methods []string
}

// Service is a discovered listener.
type Service struct {
	Instance  string
	Host      string
	Port      uint16
	Addresses []string
	Info      Info
}

// Address returns a dialable "host:port" for the service, preferring the
// first IPv4 address.
func (s *Service) Address() (string, error) {
	if len(s.Addresses) == 0 {
		if s.Host == "" {
			return "", ErrNoAddress
		}
		return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port))), nil
	}
	addr := s.Addresses[0]
	for _, a := range s.Addresses {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			addr = a
			break
		}
	}
	return net.JoinHostPort(addr, strconv.Itoa(int(s.Port))), nil
}
