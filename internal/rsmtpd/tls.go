package rsmtpd

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	"github.com/alfmel/rsmtpd-go/internal/tlsconst"
	"golang.org/x/crypto/acme/autocert"
)

// CertRecord is one loaded certificate plus the substring used to match
// it against a ClientHello's SNI server name (spec.md §4.3). It mirrors
// the {pem_file, key_file, domain_match, server_name} records the
// original Python TLS class keeps.
type CertRecord struct {
	ServerName  string
	DomainMatch string
	PEMFile     string
	KeyFile     string

	cert *tls.Certificate
}

// TLSManager holds an ordered list of certificate records and performs
// SNI-driven certificate selection (spec.md §4.3). A static record
// always takes priority; autocert is consulted only for server names
// that don't match any static record, covering deployments that want
// ACME-issued certificates for some or all names instead of managing
// PEM files (see SPEC_FULL.md's dependency table).
type TLSManager struct {
	log      Logger
	records  []CertRecord
	enabled  bool
	autocert *autocert.Manager
}

// NewTLSManager creates a manager over the given (unloaded) records.
func NewTLSManager(log Logger, records []CertRecord) *TLSManager {
	return &TLSManager{log: log, records: records}
}

// EnableAutocert configures an ACME/Let's Encrypt fallback for the given
// hostnames, caching issued certificates under cacheDir. It only
// applies to ClientHellos whose server name both matches a hostname in
// domains and fails to match any static CertRecord.
func (m *TLSManager) EnableAutocert(domains []string, cacheDir string) {
	if len(domains) == 0 {
		return
	}
	m.autocert = &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}
	m.enabled = true
}

// LoadAll attempts to parse each record's PEM/key pair. A record that
// fails to parse is warned about and excluded. If zero succeed, TLS is
// disabled globally.
func (m *TLSManager) LoadAll() error {
	var loaded []CertRecord
	for _, rec := range m.records {
		cert, err := tls.LoadX509KeyPair(rec.PEMFile, rec.KeyFile)
		if err != nil {
			m.log.Errorf("certificate for %q disabled: %v", rec.ServerName, err)
			continue
		}
		rec.cert = &cert
		loaded = append(loaded, rec)
	}

	m.records = loaded
	if len(loaded) == 0 {
		m.enabled = false
		m.log.Errorf("no valid certificates could be loaded; TLS disabled")
		return nil
	}

	m.enabled = true
	m.log.Infof("TLS initialized with %d certificate(s)", len(loaded))
	return nil
}

// Enabled reports whether at least one certificate loaded successfully
// or autocert was enabled.
func (m *TLSManager) Enabled() bool {
	return m.enabled
}

// selectCertificate implements spec.md §4.3's SNI selection algorithm:
// with zero or one certificate, or no SNI server name, return the
// first/only certificate; otherwise scan in order for the first whose
// DomainMatch substring appears in serverName, falling back to the
// first certificate if none match.
func (m *TLSManager) selectCertificate(serverName string) (*CertRecord, error) {
	if len(m.records) == 0 {
		return nil, fmt.Errorf("rsmtpd: cannot initiate TLS: no certificates")
	}

	if len(m.records) == 1 || serverName == "" {
		return &m.records[0], nil
	}

	for i := range m.records {
		if m.records[i].DomainMatch != "" && strings.Contains(serverName, m.records[i].DomainMatch) {
			return &m.records[i], nil
		}
	}
	return &m.records[0], nil
}

// matchCertificate is the strict variant of selectCertificate used when
// autocert is configured: it returns ok=false (rather than falling back
// to the first record) so the caller can try autocert before giving up.
func (m *TLSManager) matchCertificate(serverName string) (*CertRecord, bool) {
	if serverName == "" {
		return nil, false
	}
	for i := range m.records {
		if m.records[i].DomainMatch != "" && strings.Contains(serverName, m.records[i].DomainMatch) {
			return &m.records[i], true
		}
	}
	return nil, false
}

// Wrap performs the TLS handshake in server mode using an SNI callback,
// per spec.md §4.3. On success it returns the encrypted connection and
// the server name selected by SNI. On handshake failure it returns the
// original connection and an SMTP 454 response, leaving the session to
// fall through to normal emission (spec.md §4.4 step 3).
func (m *TLSManager) Wrap(conn net.Conn) (net.Conn, string, *Response) {
	var selectedName string

	config := &tls.Config{
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			if m.autocert != nil {
				if rec, ok := m.matchCertificate(hello.ServerName); ok {
					selectedName = rec.ServerName
					m.log.Infof("selected certificate %q for server name %q", rec.ServerName, hello.ServerName)
					return rec.cert, nil
				}

				cert, err := m.autocert.GetCertificate(hello)
				if err == nil {
					selectedName = hello.ServerName
					m.log.Infof("issued/served autocert certificate for server name %q", hello.ServerName)
					return cert, nil
				}
				m.log.Infof("autocert unavailable for %q: %v", hello.ServerName, err)
				if len(m.records) == 0 {
					return nil, err
				}
			}

			rec, err := m.selectCertificate(hello.ServerName)
			if err != nil {
				return nil, err
			}
			selectedName = rec.ServerName
			if hello.ServerName != "" {
				m.log.Infof("selected certificate %q for server name %q", rec.ServerName, hello.ServerName)
			} else {
				m.log.Infof("selected default certificate %q; client sent no server name", rec.ServerName)
			}
			return rec.cert, nil
		},
	}

	tlsConn := tls.Server(conn, config)
	if err := tlsConn.Handshake(); err != nil {
		m.log.Errorf("TLS handshake failed: %v", err)
		return conn, "", NewWithAction(454, "TLS not available due to temporary reason", OK)
	}

	state := tlsConn.ConnectionState()
	m.log.Infof("TLS handshake complete: %s / %s", tlsconst.VersionName(state.Version), tlsconst.CipherSuiteName(state.CipherSuite))

	return tlsConn, selectedName, nil
}
