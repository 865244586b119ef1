package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

// HandlerRef is a (module, class) descriptor, decoded from a YAML
// mapping with module and class keys.
type HandlerRef struct {
	Module string `yaml:"module"`
	Class  string `yaml:"class"`
}

// ChainConfig maps a canonical upper-case verb (or a reserved
// pseudo-verb: __OPEN__, __DATA__, __DEFAULT__) to its ordered handler
// chain (spec.md §4.6).
type ChainConfig map[string][]HandlerRef

// DecodeChain parses a YAML document shaped as:
//
//	MAIL:
//	  - module: internal/handlers
//	    class: MailHandler
//	__DEFAULT__:
//	  - module: internal/handlers
//	    class: RejectAllHandler
func DecodeChain(r io.Reader) (ChainConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: reading handler chain document: %w", err)
	}

	var raw map[string][]HandlerRef
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing handler chain document: %w", err)
	}

	return ChainConfig(raw), nil
}
