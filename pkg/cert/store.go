package cert

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File names used by FileStore.
const (
	caCertFile   = "ca.pem"
	caKeyFile    = "ca.key"
	leafCertSufx = ".pem"
	leafKeySufx  = ".key"
)

// PEM block types written by FileStore.
const (
	blockCert = "CERTIFICATE"
	blockKey  = "EC PRIVATE KEY"
)

var (
	// ErrNotFound is returned when a requested certificate is not on disk.
	ErrNotFound = errors.New("certificate not found")

	// ErrInvalidPEM is returned when a stored file holds no block of the
	// expected type.
	ErrInvalidPEM = errors.New("invalid PEM data")
)

// FileStore keeps a CA and named identities as PEM files in one directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// LoadCA reads the CA from disk.
func (s *FileStore) LoadCA() (*CA, error) {
	c, key, err := s.readPair(caCertFile, caKeyFile)
	if err != nil {
		return nil, err
	}
	return &CA{Certificate: c, PrivateKey: key}, nil
}

// SaveCA writes the CA to disk.
func (s *FileStore) SaveCA(ca *CA) error {
	if ca == nil {
		return ErrNilCA
	}
	return s.writePair(caCertFile, caKeyFile, ca.Certificate, ca.PrivateKey)
}

// LoadOrCreateCA returns the stored CA, generating and saving one if absent.
func (s *FileStore) LoadOrCreateCA(commonName string) (*CA, error) {
	ca, err := s.LoadCA()
	if err == nil {
		return ca, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	ca, err = GenerateCA(commonName)
	if err != nil {
		return nil, err
	}
	if err := s.SaveCA(ca); err != nil {
		return nil, err
	}
	return ca, nil
}

// LoadIdentity reads a named identity.
func (s *FileStore) LoadIdentity(name string) (*Identity, error) {
	c, key, err := s.readPair(name+leafCertSufx, name+leafKeySufx)
	if err != nil {
		return nil, err
	}
	id := &Identity{Certificate: c, PrivateKey: key}
	if der, err := s.readBlock(caCertFile, blockCert); err == nil {
		id.CACert, _ = x509.ParseCertificate(der)
	}
	return id, nil
}

// SaveIdentity writes a named identity.
func (s *FileStore) SaveIdentity(name string, id *Identity) error {
	if id == nil || id.Certificate == nil || id.PrivateKey == nil {
		return fmt.Errorf("save %s: incomplete identity", name)
	}
	return s.writePair(name+leafCertSufx, name+leafKeySufx, id.Certificate, id.PrivateKey)
}

// Ensure returns a valid identity for name, issuing a fresh one from the
// store's CA when it is missing or due for renewal.
func (s *FileStore) Ensure(name string, opts IssueOptions) (*Identity, error) {
	id, err := s.LoadIdentity(name)
	if err == nil && !id.NeedsRenewal() {
		return id, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	ca, err := s.LoadOrCreateCA("upnode local CA")
	if err != nil {
		return nil, err
	}
	if opts.CommonName == "" {
		opts.CommonName = name
	}
	id, err = ca.Issue(opts)
	if err != nil {
		return nil, err
	}
	if err := s.SaveIdentity(name, id); err != nil {
		return nil, err
	}
	return id, nil
}

// readPair loads a certificate and its key. A missing file yields ErrNotFound.
func (s *FileStore) readPair(certName, keyName string) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	der, err := s.readBlock(certName, blockCert)
	if err != nil {
		return nil, nil, err
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", certName, err)
	}
	if der, err = s.readBlock(keyName, blockKey); err != nil {
		return nil, nil, err
	}
	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", keyName, err)
	}
	return c, key, nil
}

// writePair stores c world-readable and key readable only by the owner.
func (s *FileStore) writePair(certName, keyName string, c *x509.Certificate, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	if err := s.writeBlock(certName, blockCert, c.Raw, 0644); err != nil {
		return err
	}
	return s.writeBlock(keyName, blockKey, der, 0600)
}

func (s *FileStore) readBlock(name, kind string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, notFound(err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != kind {
		return nil, fmt.Errorf("%s: %w", name, ErrInvalidPEM)
	}
	return block.Bytes, nil
}

func (s *FileStore) writeBlock(name, kind string, der []byte, perm os.FileMode) error {
	return os.WriteFile(filepath.Join(s.dir, name), pem.EncodeToMemory(&pem.Block{Type: kind, Bytes: der}), perm)
}

func notFound(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
