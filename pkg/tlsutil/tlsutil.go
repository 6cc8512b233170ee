// Package tlsutil builds client TLS configurations for NATS and WebSocket
// connections.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/traitstore/errors"
)

// ClientConfig describes how a client verifies servers and, optionally,
// presents its own certificate. The system CA bundle is always trusted;
// CAFiles add to it.
type ClientConfig struct {
	Enabled            bool     `json:"enabled" mapstructure:"enabled"`
	CAFiles            []string `json:"ca_files,omitempty" mapstructure:"ca_files"`
	CertFile           string   `json:"cert_file,omitempty" mapstructure:"cert_file"`
	KeyFile            string   `json:"key_file,omitempty" mapstructure:"key_file"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty" mapstructure:"insecure_skip_verify"` // DEV/TEST ONLY
	MinVersion         string   `json:"min_version,omitempty" mapstructure:"min_version"`
}

// Validate checks the settings without touching the filesystem
func (c ClientConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.MinVersion {
	case "", "1.2", "1.3":
	default:
		return fmt.Errorf("min_version %q is not 1.2 or 1.3", c.MinVersion)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file must be set together")
	}
	return nil
}

// LoadClientConfig creates a tls.Config from cfg. A disabled config yields
// nil, which callers pass through as "no TLS".
func LoadClientConfig(cfg ClientConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "tlsutil", "LoadClientConfig", "validate")
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("invalid PEM data"),
				"tlsutil",
				"LoadClientConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile),
			)
		}
	}

	tlsConfig := &tls.Config{
		RootCAs:            rootCAs,
		MinVersion:         parseTLSVersion(cfg.MinVersion),
		InsecureSkipVerify: cfg.InsecureSkipVerify, // #nosec G402 -- opt-in for development
	}

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// parseTLSVersion returns tls.VersionTLS12 unless 1.3 is asked for
func parseTLSVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
