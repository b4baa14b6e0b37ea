// Package cert generates and stores the certificates used by TLS listeners
// and dialers.
//
// A small local CA is generated once, then used to issue leaf certificates
// for servers and clients. Both sides trust the CA, which enables mutual TLS
// without an external PKI:
//
//	ca, _ := cert.GenerateCA("upnode local CA")
//	srv, _ := ca.Issue(cert.IssueOptions{CommonName: "server", Hosts: []string{"localhost"}})
//	tlsCert := srv.TLSCertificate()
package cert
