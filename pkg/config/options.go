package config

import (
	"crypto/tls"
	"fmt"

	"github.com/upnode-go/upnode/pkg/cert"
	"github.com/upnode-go/upnode/pkg/transport"
	"github.com/upnode-go/upnode/pkg/upnode"
)

// TLS points at a cert.FileStore directory.
type TLS struct {
	// Dir holds ca.crt and the identities.
	Dir string `yaml:"dir"`

	// Name is the identity to load or create. Servers require one; clients
	// use it as a client certificate.
	Name string `yaml:"name,omitempty"`

	// Hosts are the SANs of a newly created identity.
	Hosts []string `yaml:"hosts,omitempty"`

	// ServerName overrides the name verified by clients.
	ServerName string `yaml:"server_name,omitempty"`

	// RequireClientCert makes servers demand client certificates.
	RequireClientCert bool `yaml:"require_client_cert,omitempty"`
}

// ServerConfig returns a server TLS configuration, creating the CA and the
// identity on first use.
func (t *TLS) ServerConfig() (*tls.Config, error) {
	name := t.Name
	if name == "" {
		name = "server"
	}
	id, err := cert.NewFileStore(t.Dir).Ensure(name, cert.IssueOptions{CommonName: name, Hosts: t.Hosts})
	if err != nil {
		return nil, fmt.Errorf("server identity: %w", err)
	}
	return transport.NewServerTLSConfig(&transport.TLSConfig{
		Certificate:       id.TLSCertificate(),
		ClientCAs:         id.Pool(),
		RequireClientCert: t.RequireClientCert,
	})
}

// ClientConfig returns a client TLS configuration trusting the store's CA.
func (t *TLS) ClientConfig() (*tls.Config, error) {
	store := cert.NewFileStore(t.Dir)
	ca, err := store.LoadCA()
	if err != nil {
		return nil, fmt.Errorf("client trust: %w", err)
	}

	cfg := &transport.TLSConfig{RootCAs: ca.Pool(), ServerName: t.ServerName}
	if t.Name != "" {
		id, err := store.Ensure(t.Name, cert.IssueOptions{CommonName: t.Name, Hosts: t.Hosts})
		if err != nil {
			return nil, fmt.Errorf("client identity: %w", err)
		}
		cfg.Certificate = id.TLSCertificate()
	}
	return transport.NewClientTLSConfig(cfg)
}

// Options converts the client section into upnode arguments.
func (c *Client) Options() (upnode.Options, []any, error) {
	opts := upnode.Options{
		Ping:      c.Ping.Std(),
		Timeout:   c.Timeout.Std(),
		Reconnect: c.Reconnect.Std(),
		Service:   c.Service,
	}
	if c.TLS != nil {
		conf, err := c.TLS.ClientConfig()
		if err != nil {
			return upnode.Options{}, nil, err
		}
		opts.TLS = conf
	}

	var target []any
	if c.Service == "" && c.Target != "" {
		target = append(target, c.Target)
	}
	return opts, target, nil
}

// Options converts the server section into upnode arguments.
func (s *Server) Options() (upnode.Options, []any, error) {
	opts := upnode.Options{
		Advertise:      s.Advertise,
		SessionPing:    s.SessionPing.Std(),
		SessionTimeout: s.SessionTimeout.Std(),
	}
	if s.TLS != nil {
		conf, err := s.TLS.ServerConfig()
		if err != nil {
			return upnode.Options{}, nil, err
		}
		opts.TLS = conf
	}

	var target []any
	if s.Listen != "" {
		target = append(target, s.Listen)
	}
	return opts, target, nil
}
