package cert

import (
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"time"
)

// Certificate validity periods.
const (
	// CAValidity is the validity period for generated CA certificates.
	CAValidity = 10 * 365 * 24 * time.Hour

	// LeafValidity is the validity period for issued leaf certificates.
	LeafValidity = 365 * 24 * time.Hour

	// RenewalWindow is how long before expiry a leaf should be reissued.
	RenewalWindow = 30 * 24 * time.Hour
)

// CA is a local certificate authority.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// Identity is a leaf certificate with its private key and issuing CA.
type Identity struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey

	// CACert is the issuing CA certificate (for chain verification).
	CACert *x509.Certificate
}

// ExpiresAt returns when this certificate expires.
func (id *Identity) ExpiresAt() time.Time {
	if id.Certificate == nil {
		return time.Time{}
	}
	return id.Certificate.NotAfter
}

// NeedsRenewal returns true if the certificate should be reissued.
func (id *Identity) NeedsRenewal() bool {
	if id.Certificate == nil {
		return true
	}
	return time.Now().Add(RenewalWindow).After(id.Certificate.NotAfter)
}

// TLSCertificate converts the identity to a tls.Certificate.
func (id *Identity) TLSCertificate() tls.Certificate {
	if id == nil || id.Certificate == nil || id.PrivateKey == nil {
		return tls.Certificate{}
	}
	return tls.Certificate{
		Certificate: [][]byte{id.Certificate.Raw},
		PrivateKey:  id.PrivateKey,
		Leaf:        id.Certificate,
	}
}

// Pool returns a pool holding only the issuing CA, suitable for RootCAs or
// ClientCAs.
func (id *Identity) Pool() *x509.CertPool {
	if id == nil || id.CACert == nil {
		return nil
	}
	pool := x509.NewCertPool()
	pool.AddCert(id.CACert)
	return pool
}

// Pool returns a pool holding the CA certificate.
func (ca *CA) Pool() *x509.CertPool {
	if ca == nil || ca.Certificate == nil {
		return nil
	}
	pool := x509.NewCertPool()
	pool.AddCert(ca.Certificate)
	return pool
}
