package cert

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGenerateCA(t *testing.T) {
	ca, err := GenerateCA("test CA")
	if err != nil {
		t.Fatalf("GenerateCA failed: %v", err)
	}
	if !ca.Certificate.IsCA {
		t.Error("CA certificate should have IsCA set")
	}
	if ca.Certificate.Subject.CommonName != "test CA" {
		t.Errorf("CommonName: got %q", ca.Certificate.Subject.CommonName)
	}
	if len(ca.Certificate.SubjectKeyId) == 0 {
		t.Error("SubjectKeyId should be set")
	}
}

func TestGenerateCARequiresName(t *testing.T) {
	if _, err := GenerateCA(""); !errors.Is(err, ErrNoCommonName) {
		t.Errorf("got %v, want ErrNoCommonName", err)
	}
}

func TestIssue(t *testing.T) {
	ca, err := GenerateCA("test CA")
	if err != nil {
		t.Fatalf("GenerateCA failed: %v", err)
	}

	id, err := ca.Issue(IssueOptions{CommonName: "server", Hosts: []string{"localhost", "127.0.0.1"}})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := id.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if len(id.Certificate.DNSNames) != 1 || id.Certificate.DNSNames[0] != "localhost" {
		t.Errorf("DNSNames: got %v", id.Certificate.DNSNames)
	}
	if len(id.Certificate.IPAddresses) != 1 {
		t.Errorf("IPAddresses: got %v", id.Certificate.IPAddresses)
	}
	if id.NeedsRenewal() {
		t.Error("fresh certificate should not need renewal")
	}
	if id.Pool() == nil {
		t.Error("Pool should not be nil")
	}

	tc := id.TLSCertificate()
	if len(tc.Certificate) != 1 || tc.Leaf != id.Certificate {
		t.Error("TLSCertificate did not carry the leaf")
	}
}

func TestIssueShortValidityNeedsRenewal(t *testing.T) {
	ca, err := GenerateCA("test CA")
	if err != nil {
		t.Fatalf("GenerateCA failed: %v", err)
	}
	id, err := ca.Issue(IssueOptions{CommonName: "short", Validity: time.Hour})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !id.NeedsRenewal() {
		t.Error("certificate inside the renewal window should need renewal")
	}
}

func TestIssueErrors(t *testing.T) {
	var nilCA *CA
	if _, err := nilCA.Issue(IssueOptions{CommonName: "x"}); !errors.Is(err, ErrNilCA) {
		t.Errorf("nil CA: got %v", err)
	}
	ca, _ := GenerateCA("test CA")
	if _, err := ca.Issue(IssueOptions{}); !errors.Is(err, ErrNoCommonName) {
		t.Errorf("no CN: got %v", err)
	}
}

func TestIdentityFromOtherCAFailsVerify(t *testing.T) {
	ca1, _ := GenerateCA("one")
	ca2, _ := GenerateCA("two")
	id, err := ca1.Issue(IssueOptions{CommonName: "leaf"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	id.CACert = ca2.Certificate
	if err := id.Verify(); err == nil {
		t.Error("Verify should fail against a foreign CA")
	}
}

func TestEmptyIdentityTLSCertificate(t *testing.T) {
	var id *Identity
	if tc := id.TLSCertificate(); len(tc.Certificate) != 0 {
		t.Error("nil identity should produce empty tls.Certificate")
	}
}

func TestFileStoreCARoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ca, _ := GenerateCA("pem CA")

	if err := store.SaveCA(ca); err != nil {
		t.Fatalf("SaveCA failed: %v", err)
	}
	loaded, err := store.LoadCA()
	if err != nil {
		t.Fatalf("LoadCA failed: %v", err)
	}
	if !loaded.Certificate.Equal(ca.Certificate) {
		t.Error("certificate changed after round trip")
	}
	if !loaded.PrivateKey.Equal(ca.PrivateKey) {
		t.Error("key changed after round trip")
	}

	info, err := os.Stat(filepath.Join(dir, caKeyFile))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("key file mode: got %o, want 600", info.Mode().Perm())
	}
}

func TestFileStoreRejectsCorruptFiles(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"garbage cert", caCertFile},
		{"garbage key", caKeyFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			store := NewFileStore(dir)
			ca, _ := GenerateCA("corrupt CA")
			if err := store.SaveCA(ca); err != nil {
				t.Fatalf("SaveCA failed: %v", err)
			}
			if err := os.WriteFile(filepath.Join(dir, tt.file), []byte("nope"), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := store.LoadCA(); !errors.Is(err, ErrInvalidPEM) {
				t.Errorf("LoadCA: got %v, want ErrInvalidPEM", err)
			}
		})
	}
}

func TestFileStoreEnsure(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "certs"))

	if _, err := store.LoadCA(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadCA on empty store: got %v, want ErrNotFound", err)
	}

	id, err := store.Ensure("server", IssueOptions{Hosts: []string{"localhost"}})
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if id.Certificate.Subject.CommonName != "server" {
		t.Errorf("CommonName: got %q", id.Certificate.Subject.CommonName)
	}

	again, err := store.Ensure("server", IssueOptions{})
	if err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if !again.Certificate.Equal(id.Certificate) {
		t.Error("second Ensure should reuse the stored identity")
	}
	if err := again.Verify(); err != nil {
		t.Errorf("loaded identity should verify against stored CA: %v", err)
	}
}
