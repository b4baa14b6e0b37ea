package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

// Generation errors.
var (
	ErrNoCommonName = errors.New("common name is required")
	ErrNilCA        = errors.New("CA is nil")
)

// IssueOptions describes a leaf certificate.
type IssueOptions struct {
	// CommonName is the subject CN.
	CommonName string

	// Hosts are DNS names or IP addresses placed in the SANs.
	Hosts []string

	// Validity overrides LeafValidity when non-zero.
	Validity time.Duration
}

// GenerateKey creates a new ECDSA P-256 key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// GenerateCA creates a self-signed CA.
func GenerateCA(commonName string) (*CA, error) {
	if commonName == "" {
		return nil, ErrNoCommonName
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(CAValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
		SubjectKeyId:          computeSKI(&key.PublicKey),
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create CA certificate: %w", err)
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &CA{Certificate: c, PrivateKey: key}, nil
}

// Issue creates a leaf certificate signed by the CA. The certificate is
// valid for both server and client authentication.
func (ca *CA) Issue(opts IssueOptions) (*Identity, error) {
	if ca == nil || ca.Certificate == nil || ca.PrivateKey == nil {
		return nil, ErrNilCA
	}
	if opts.CommonName == "" {
		return nil, ErrNoCommonName
	}
	validity := opts.Validity
	if validity == 0 {
		validity = LeafValidity
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:   serial,
		Subject:        pkix.Name{CommonName: opts.CommonName},
		NotBefore:      now.Add(-time.Minute),
		NotAfter:       now.Add(validity),
		KeyUsage:       x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:    []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		SubjectKeyId:   computeSKI(&key.PublicKey),
		AuthorityKeyId: ca.Certificate.SubjectKeyId,
	}
	for _, h := range opts.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("issue certificate: %w", err)
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &Identity{Certificate: c, PrivateKey: key, CACert: ca.Certificate}, nil
}

// Verify checks that the identity chains to its CA.
func (id *Identity) Verify() error {
	if id == nil || id.Certificate == nil || id.CACert == nil {
		return ErrNilCA
	}
	pool := x509.NewCertPool()
	pool.AddCert(id.CACert)
	_, err := id.Certificate.Verify(x509.VerifyOptions{
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	return err
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	return serial, nil
}

func computeSKI(pub *ecdsa.PublicKey) []byte {
	raw, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil
	}
	sum := sha1.Sum(raw)
	return sum[:]
}
