package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEmptyDocumentReturnsDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestDecodeOverridesDefaults(t *testing.T) {
	doc := `
address: 0.0.0.0
port: 25
server_name: mail.example.com
command_handler: production
maximum_message_size_in_mb: 40
tls:
  enabled: true
  certificates:
    - server_name: mail.example.com
      domain_match: example.com
      pem_file: cert.pem
      key_file: cert.key
  autocert_domains: ["mail.example.com"]
  autocert_cache_dir: /var/cache/autocert
`
	cfg, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Address)
	assert.Equal(t, 25, cfg.Port)
	assert.Equal(t, "production", cfg.CommandHandler)
	assert.Equal(t, 40, cfg.MaximumMessageSizeInMB)
	assert.True(t, cfg.TLS.Enabled)
	require.Len(t, cfg.TLS.Certificates, 1)
	assert.Equal(t, "example.com", cfg.TLS.Certificates[0].DomainMatch)
	assert.Equal(t, []string{"mail.example.com"}, cfg.TLS.AutocertDomains)
	assert.Equal(t, "/var/cache/autocert", cfg.TLS.AutocertCacheDir)
}

func TestDecodeRejectsZeroOrNegativeMessageSize(t *testing.T) {
	cfg, err := Decode(strings.NewReader("maximum_message_size_in_mb: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxMessageSizeMB, cfg.MaximumMessageSizeInMB)

	cfg, err = Decode(strings.NewReader("maximum_message_size_in_mb: -5\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxMessageSizeMB, cfg.MaximumMessageSizeInMB)
}

func TestDecodeInvalidYAMLErrors(t *testing.T) {
	_, err := Decode(strings.NewReader("address: [this is not\n valid"))
	assert.Error(t, err)
}

func TestMaxMessageSizeBytes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaximumMessageSizeInMB = 10
	assert.Equal(t, int64(10*1024*1024), cfg.MaxMessageSizeBytes())
}

func TestUsesDefaultChain(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.UsesDefaultChain())

	cfg.CommandHandler = "production"
	assert.False(t, cfg.UsesDefaultChain())

	cfg.CommandHandler = ""
	assert.True(t, cfg.UsesDefaultChain())
}
