// Package config decodes the engine's YAML configuration surface
// (spec.md §6, "Configuration surface"). Discovery — searching
// well-known directories, merging command-line overrides — is
// explicitly out of scope (spec.md §1 Non-goals); this package only
// turns an io.Reader into typed Go values.
package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

const defaultHandlerChain = "__default__"

// TLSCertConfig is one entry of tls.certificates.
type TLSCertConfig struct {
	ServerName  string `yaml:"server_name"`
	DomainMatch string `yaml:"domain_match"`
	PEMFile     string `yaml:"pem_file"`
	KeyFile     string `yaml:"key_file"`
}

// TLSConfig is the tls.* configuration group.
type TLSConfig struct {
	Enabled      bool            `yaml:"enabled"`
	Certificates []TLSCertConfig `yaml:"certificates"`

	// AutocertDomains, when non-empty, enables an ACME (Let's Encrypt)
	// fallback for ClientHellos whose server name matches one of these
	// hostnames and no static certificate above matches first.
	AutocertDomains  []string `yaml:"autocert_domains"`
	AutocertCacheDir string   `yaml:"autocert_cache_dir"`
}

// Config is the top-level enumerated configuration surface from
// spec.md §6.
type Config struct {
	Address    string `yaml:"address"`
	Port       int    `yaml:"port"`
	ServerName string `yaml:"server_name"`

	TLS TLSConfig `yaml:"tls"`

	// CommandHandler names the handler-chain config to use; the string
	// "__default__" selects the reject-all safety default.
	CommandHandler string `yaml:"command_handler"`

	// MaximumMessageSizeInMB is a positive integer; 0 means "use
	// built-in default".
	MaximumMessageSizeInMB int `yaml:"maximum_message_size_in_mb"`

	User  string `yaml:"user"`
	Group string `yaml:"group"`
}

// DefaultMaxMessageSizeMB is used when MaximumMessageSizeInMB is 0.
const DefaultMaxMessageSizeMB = 25

// DefaultConfig returns the built-in defaults from spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		Address:                "127.0.0.1",
		Port:                   8025,
		ServerName:             "mail.example.com",
		CommandHandler:         defaultHandlerChain,
		MaximumMessageSizeInMB: DefaultMaxMessageSizeMB,
	}
}

// Decode parses a YAML document into a Config, starting from
// DefaultConfig so any field the document omits keeps its default
// value.
func Decode(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: reading document: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing document: %w", err)
	}

	if cfg.MaximumMessageSizeInMB <= 0 {
		cfg.MaximumMessageSizeInMB = DefaultMaxMessageSizeMB
	}

	return cfg, nil
}

// MaxMessageSizeBytes returns the configured message size ceiling in
// bytes.
func (c *Config) MaxMessageSizeBytes() int64 {
	return int64(c.MaximumMessageSizeInMB) * 1024 * 1024
}

// UsesDefaultChain reports whether CommandHandler selects the built-in
// reject-all safety default.
func (c *Config) UsesDefaultChain() bool {
	return c.CommandHandler == "" || c.CommandHandler == defaultHandlerChain
}
