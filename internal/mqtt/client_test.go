package mqtt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
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

	"github.com/ibs-source/telemetry/forwarder/golang/internal/config"
	"github.com/ibs-source/telemetry/forwarder/golang/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Trace(string, ...ports.Field)           {}
func (nopLogger) Debug(string, ...ports.Field)           {}
func (nopLogger) Info(string, ...ports.Field)            {}
func (nopLogger) Warn(string, ...ports.Field)            {}
func (nopLogger) Error(string, ...ports.Field)           {}
func (nopLogger) Fatal(string, ...ports.Field)           {}
func (nopLogger) WithFields(...ports.Field) ports.Logger { return nopLogger{} }

func TestNewClientWithoutTLS(t *testing.T) {
	cfg := config.GetDefaults()
	up, err := NewClient(cfg, nopLogger{})
	require.NoError(t, err)
	assert.False(t, up.IsConnected())
}

func TestNewClientRejectsMissingCA(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.MQTT.TLS.Enabled = true
	cfg.MQTT.TLS.CACert = filepath.Join(t.TempDir(), "missing.pem")

	_, err := NewClient(cfg, nopLogger{})
	assert.Error(t, err)
}

func TestCreateTLSConfigWithCA(t *testing.T) {
	caPath := writeSelfSignedCA(t)

	tlsConf, err := createTLSConfig(&config.TLSConfig{
		Enabled: true,
		CACert:  caPath,
	})
	require.NoError(t, err)
	assert.NotNil(t, tlsConf.RootCAs)
	assert.False(t, tlsConf.InsecureSkipVerify)
	assert.EqualValues(t, 0x0303, tlsConf.MinVersion, "TLS 1.2 floor")
}

func TestCreateTLSConfigRejectsGarbageCA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	_, err := createTLSConfig(&config.TLSConfig{Enabled: true, CACert: path})
	assert.Error(t, err)
}

func TestOnConnectionUpAfterConnectIsIgnored(t *testing.T) {
	cfg := config.GetDefaults()
	up, err := NewClient(cfg, nopLogger{})
	require.NoError(t, err)

	fired := false
	up.OnConnectionUp(func() { fired = true })

	c := up.(*client)
	c.mu.Lock()
	c.sealed = true
	c.mu.Unlock()
	up.OnConnectionUp(func() { t.Fatal("late registration must be dropped") })

	c.onConnect(nil)
	assert.True(t, fired)
}

// writeSelfSignedCA generates a throwaway CA certificate PEM on disk.
func writeSelfSignedCA(t *testing.T) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))
	return path
}
