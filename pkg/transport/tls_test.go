package transport

import (
	"crypto/tls"
	"errors"
	"testing"

	"github.com/upnode-go/upnode/pkg/cert"
)

func testIdentity(t *testing.T) *cert.Identity {
	t.Helper()
	ca, err := cert.GenerateCA("transport test CA")
	if err != nil {
		t.Fatalf("GenerateCA failed: %v", err)
	}
	id, err := ca.Issue(cert.IssueOptions{CommonName: "localhost", Hosts: []string{"localhost", "127.0.0.1"}})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return id
}

func TestNewServerTLSConfig(t *testing.T) {
	id := testIdentity(t)

	conf, err := NewServerTLSConfig(&TLSConfig{Certificate: id.TLSCertificate()})
	if err != nil {
		t.Fatalf("NewServerTLSConfig failed: %v", err)
	}
	if conf.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", conf.MinVersion)
	}
	if len(conf.NextProtos) != 1 || conf.NextProtos[0] != ALPNProtocol {
		t.Errorf("NextProtos = %v", conf.NextProtos)
	}
	if conf.ClientAuth != tls.NoClientCert {
		t.Errorf("ClientAuth = %v, want NoClientCert", conf.ClientAuth)
	}

	conf, err = NewServerTLSConfig(&TLSConfig{Certificate: id.TLSCertificate(), RequireClientCert: true, ClientCAs: id.Pool()})
	if err != nil {
		t.Fatalf("NewServerTLSConfig failed: %v", err)
	}
	if conf.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("ClientAuth = %v, want RequireAndVerifyClientCert", conf.ClientAuth)
	}
}

func TestNewServerTLSConfigErrors(t *testing.T) {
	if _, err := NewServerTLSConfig(nil); !errors.Is(err, ErrNoTLSConfig) {
		t.Errorf("nil config: got %v", err)
	}
	if _, err := NewServerTLSConfig(&TLSConfig{}); !errors.Is(err, ErrNoCertificate) {
		t.Errorf("no certificate: got %v", err)
	}
}

func TestNewClientTLSConfig(t *testing.T) {
	id := testIdentity(t)

	conf, err := NewClientTLSConfig(&TLSConfig{RootCAs: id.Pool(), ServerName: "localhost"})
	if err != nil {
		t.Fatalf("NewClientTLSConfig failed: %v", err)
	}
	if len(conf.Certificates) != 0 {
		t.Error("client without certificate should not present one")
	}
	if conf.ServerName != "localhost" {
		t.Errorf("ServerName = %q", conf.ServerName)
	}

	conf, err = NewClientTLSConfig(&TLSConfig{Certificate: id.TLSCertificate()})
	if err != nil {
		t.Fatalf("NewClientTLSConfig failed: %v", err)
	}
	if len(conf.Certificates) != 1 {
		t.Error("client certificate not set")
	}

	if _, err := NewClientTLSConfig(nil); !errors.Is(err, ErrNoTLSConfig) {
		t.Errorf("nil config: got %v", err)
	}
}

func TestWithALPN(t *testing.T) {
	if withALPN(nil) != nil {
		t.Error("withALPN(nil) should be nil")
	}

	orig := &tls.Config{}
	got := withALPN(orig)
	if got == orig {
		t.Error("withALPN should clone configs it modifies")
	}
	if len(orig.NextProtos) != 0 {
		t.Error("original config was modified")
	}
	if len(got.NextProtos) != 1 || got.NextProtos[0] != ALPNProtocol {
		t.Errorf("NextProtos = %v", got.NextProtos)
	}

	ready := &tls.Config{NextProtos: []string{ALPNProtocol}}
	if withALPN(ready) != ready {
		t.Error("config already offering ALPN should be returned unchanged")
	}
}

func TestVerifyConnection(t *testing.T) {
	tests := []struct {
		name    string
		state   tls.ConnectionState
		wantErr bool
	}{
		{"tls13 alpn", tls.ConnectionState{Version: tls.VersionTLS13, NegotiatedProtocol: ALPNProtocol}, false},
		{"tls12 alpn", tls.ConnectionState{Version: tls.VersionTLS12, NegotiatedProtocol: ALPNProtocol}, false},
		{"no alpn", tls.ConnectionState{Version: tls.VersionTLS13}, false},
		{"old version", tls.ConnectionState{Version: tls.VersionTLS11, NegotiatedProtocol: ALPNProtocol}, true},
		{"wrong alpn", tls.ConnectionState{Version: tls.VersionTLS13, NegotiatedProtocol: "h2"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyConnection(tt.state)
			if (err != nil) != tt.wantErr {
				t.Errorf("VerifyConnection() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
