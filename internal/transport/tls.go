package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/muurk/wsclient/internal/config"
	"github.com/muurk/wsclient/internal/logging"
	"github.com/muurk/wsclient/internal/wserr"
)

// NewTLSConfig builds the client TLS configuration for host.
//
// TLS 1.2 is the minimum. SNI is the URL host unless opts.ServerName
// overrides it; a CA file is added on top of the system roots.
func NewTLSConfig(host string, opts config.TLSConfig, cache tls.ClientSessionCache) (*tls.Config, error) {
	serverName := host
	if opts.ServerName != "" {
		serverName = opts.ServerName
	}

	cfg := &tls.Config{
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS12,
		NextProtos:         []string{"http/1.1"},
		InsecureSkipVerify: opts.InsecureSkipVerify,
		ClientSessionCache: cache,

		// Callback to log TLS handshake details
		VerifyConnection: func(cs tls.ConnectionState) error {
			logging.LogTLSHandshake(host, cs)
			return nil
		},
	}

	if opts.CAFile != "" {
		pool, err := loadCertPool(opts.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, wserr.Wrap(wserr.ErrTypeTLS, fmt.Sprintf("failed to read CA file %s", path), err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, wserr.Newf(wserr.ErrTypeTLS, "no certificates found in CA file %s", path)
	}
	return pool, nil
}
