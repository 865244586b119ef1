package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"blitiri.com.ar/go/log"
)

// HandlerConfigLoader loads a handler's own YAML configuration section.
// It is the Go-side replacement for the original Python
// ConfigLoader.load_by_name: directory discovery happens once, at
// construction, and is out of scope here (spec.md §1 Non-goals); this
// interface only resolves one (handlerKey, suffix) pair into a decoded
// value.
type HandlerConfigLoader interface {
	Load(handlerKey, suffix string, v interface{}) error
}

// YAMLConfigLoader reads "<handlerKey>[_<suffix>].yaml" files from Dir.
// A missing file is not an error: v is left at its zero value, matching
// the original's "no config for this class; use default" behavior.
type YAMLConfigLoader struct {
	Dir string
}

// NewYAMLConfigLoader returns a loader rooted at dir.
func NewYAMLConfigLoader(dir string) *YAMLConfigLoader {
	return &YAMLConfigLoader{Dir: dir}
}

// Load decodes "<handlerKey>[_<suffix>].yaml" from the loader's
// directory into v. If the file does not exist, Load returns nil
// without touching v.
func (l *YAMLConfigLoader) Load(handlerKey, suffix string, v interface{}) error {
	if l.Dir == "" {
		return nil
	}

	path := filepath.Join(l.Dir, fileName(handlerKey, suffix))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("config: %q not found, using default configuration", path)
			return nil
		}
		return fmt.Errorf("config: reading %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, v); err != nil {
		log.Errorf("config: could not parse %q, using default configuration: %v", path, err)
		return nil
	}

	log.Infof("config: loaded %q", path)
	return nil
}

func fileName(handlerKey, suffix string) string {
	if suffix == "" {
		return handlerKey + ".yaml"
	}
	return handlerKey + "_" + suffix + ".yaml"
}
