package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"slices"
)

const (
	// ALPNProtocol is the ALPN identifier negotiated on TLS channels.
	ALPNProtocol = "upnode/1"

	// DefaultPort is the port used by the example commands.
	DefaultPort = 7000
)

// TLS configuration errors.
var (
	ErrNoTLSConfig   = errors.New("TLSConfig is required")
	ErrNoCertificate = errors.New("certificate is required")
)

// TLSConfig holds the material for building client and server tls.Configs.
type TLSConfig struct {
	// Certificate is this endpoint's certificate. Required for servers;
	// optional for clients unless the server requires client certificates.
	Certificate tls.Certificate

	// RootCAs verifies server certificates (client side).
	RootCAs *x509.CertPool

	// ClientCAs verifies client certificates (server side).
	ClientCAs *x509.CertPool

	// ServerName is the expected server name for client connections.
	ServerName string

	// RequireClientCert enables mutual TLS on the server side.
	RequireClientCert bool

	// InsecureSkipVerify disables certificate verification. Tests only.
	InsecureSkipVerify bool
}

// NewServerTLSConfig creates a TLS configuration for a listener.
func NewServerTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, ErrNoTLSConfig
	}
	if len(cfg.Certificate.Certificate) == 0 {
		return nil, fmt.Errorf("server: %w", ErrNoCertificate)
	}

	tlsConfig := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cfg.Certificate},
		ClientCAs:    cfg.ClientCAs,
		NextProtos:   []string{ALPNProtocol},
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
	if cfg.RequireClientCert {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tlsConfig, nil
}

// NewClientTLSConfig creates a TLS configuration for a dialer.
func NewClientTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, ErrNoTLSConfig
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		RootCAs:            cfg.RootCAs,
		ServerName:         cfg.ServerName,
		NextProtos:         []string{ALPNProtocol},
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
	if len(cfg.Certificate.Certificate) > 0 {
		tlsConfig.Certificates = []tls.Certificate{cfg.Certificate}
	}
	return tlsConfig, nil
}

// withALPN returns conf with ALPNProtocol offered. Caller-built configs
// without NextProtos are cloned rather than modified.
func withALPN(conf *tls.Config) *tls.Config {
	if conf == nil || slices.Contains(conf.NextProtos, ALPNProtocol) {
		return conf
	}
	c := conf.Clone()
	c.NextProtos = append(c.NextProtos, ALPNProtocol)
	return c
}

// VerifyALPN checks that the negotiated ALPN protocol is correct. A peer that
// negotiated no protocol at all is accepted.
func VerifyALPN(state tls.ConnectionState) error {
	if state.NegotiatedProtocol != "" && state.NegotiatedProtocol != ALPNProtocol {
		return fmt.Errorf("ALPN protocol %q is not %q", state.NegotiatedProtocol, ALPNProtocol)
	}
	return nil
}

// VerifyConnection performs the checks applied to every TLS channel.
func VerifyConnection(state tls.ConnectionState) error {
	if state.Version < tls.VersionTLS12 {
		return fmt.Errorf("TLS version %x is below TLS 1.2", state.Version)
	}
	return VerifyALPN(state)
}
