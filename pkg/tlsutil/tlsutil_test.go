package tlsutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/traitstore/errors"
)

// generateTestCert creates a self-signed certificate for testing
func generateTestCert(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "localhost",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	return certPEM, keyPEM
}

// writeTestFiles writes a cert, its key and the same cert as a CA bundle
func writeTestFiles(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	dir := t.TempDir()
	certPEM, keyPEM := generateTestCert(t)

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")

	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return certFile, keyFile, caFile
}

func TestLoadClientConfig_Disabled(t *testing.T) {
	cfg, err := LoadClientConfig(ClientConfig{CAFiles: []string{"/does/not/exist"}})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadClientConfig(t *testing.T) {
	certFile, keyFile, caFile := writeTestFiles(t)

	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr func(error) bool
		check   func(t *testing.T, c *tls.Config)
	}{
		{
			name: "system pool only",
			cfg:  ClientConfig{Enabled: true},
			check: func(t *testing.T, c *tls.Config) {
				assert.NotNil(t, c.RootCAs)
				assert.Equal(t, uint16(tls.VersionTLS12), c.MinVersion)
				assert.Empty(t, c.Certificates)
			},
		},
		{
			name: "additional CA and tls 1.3",
			cfg:  ClientConfig{Enabled: true, CAFiles: []string{caFile}, MinVersion: "1.3"},
			check: func(t *testing.T, c *tls.Config) {
				assert.Equal(t, uint16(tls.VersionTLS13), c.MinVersion)
			},
		},
		{
			name: "client certificate",
			cfg:  ClientConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile},
			check: func(t *testing.T, c *tls.Config) {
				assert.Len(t, c.Certificates, 1)
			},
		},
		{
			name: "insecure skip verify",
			cfg:  ClientConfig{Enabled: true, InsecureSkipVerify: true},
			check: func(t *testing.T, c *tls.Config) {
				assert.True(t, c.InsecureSkipVerify)
			},
		},
		{
			name:    "missing CA file",
			cfg:     ClientConfig{Enabled: true, CAFiles: []string{filepath.Join(t.TempDir(), "none.pem")}},
			wantErr: errors.IsFatal,
		},
		{
			name:    "second CA missing",
			cfg:     ClientConfig{Enabled: true, CAFiles: []string{caFile, keyFile + ".missing"}},
			wantErr: errors.IsFatal,
		},
		{
			name:    "cert without key",
			cfg:     ClientConfig{Enabled: true, CertFile: certFile},
			wantErr: errors.IsInvalid,
		},
		{
			name:    "unknown version",
			cfg:     ClientConfig{Enabled: true, MinVersion: "1.1"},
			wantErr: errors.IsInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := LoadClientConfig(tt.cfg)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error class: %v", err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
			tt.check(t, c)
		})
	}
}

func TestLoadClientConfig_InvalidPEM(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o644))

	_, err := LoadClientConfig(ClientConfig{Enabled: true, CAFiles: []string{bad}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PEM data")
}

func TestClientConfig_Validate(t *testing.T) {
	assert.NoError(t, ClientConfig{MinVersion: "bogus"}.Validate(), "disabled configs are not checked")
	assert.NoError(t, ClientConfig{Enabled: true, MinVersion: "1.2"}.Validate())
	assert.Error(t, ClientConfig{Enabled: true, KeyFile: "k"}.Validate())
}

func TestParseTLSVersion(t *testing.T) {
	assert.Equal(t, uint16(tls.VersionTLS13), parseTLSVersion("1.3"))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("1.2"))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion(""))
}
