package rpc

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	lineage "github.com/coinlineage/lineage/pkg"
)

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// tlsConfig presents the node's private client certificate. The node's
// server certificate is issued by its private CA for a fixed hostname,
// so the chain is verified against the CA and the hostname is not.
// Without a CA the node is not authenticated at all.
func tlsConfig(conf lineage.Config, logger *log.Logger) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(expandHome(conf.Node.CertPath), expandHome(conf.Node.KeyPath))
	if err != nil {
		return nil, fmt.Errorf("loading node client certificate: %v", err)
	}
	tc := &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
	}
	if conf.Node.CAPath == "" {
		logger.Printf("[!] WARNING: Node.CAPath is not set; the certificate of %s:%d will not be verified", conf.Node.Host, conf.Node.Port)
		return tc, nil
	}
	pem, err := os.ReadFile(expandHome(conf.Node.CAPath))
	if err != nil {
		return nil, fmt.Errorf("loading node CA: %v", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("loading node CA: no certificates in %s", conf.Node.CAPath)
	}
	tc.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("node presented no certificate")
		}
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			c, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("node certificate: %v", err)
			}
			certs = append(certs, c)
		}
		intermediates := x509.NewCertPool()
		for _, c := range certs[1:] {
			intermediates.AddCert(c)
		}
		_, err := certs[0].Verify(x509.VerifyOptions{Roots: roots, Intermediates: intermediates})
		return err
	}
	return tc, nil
}
