// Package lintcfg loads configuration for the external lint collaborator
// named in spec.md §1/§6. The core never runs lint rules itself; this
// package exists only so the CLI's --lint-cfg flag has a concrete config
// shape to load; the CLI checks that the file loads and does not use the
// result further. The CLI's --lint flag is not read, and it has no
// --no-lint flag.
package lintcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the lint collaborator's settings: which rule groups are
// enabled and which diagnostic kinds it should downgrade to warnings.
type Config struct {
	Enabled           bool     `yaml:"enabled"`
	Rules             []string `yaml:"rules"`
	WarningsOnlyKinds []string `yaml:"warnings_only_kinds"`
}

// Default returns the lint collaborator's configuration when no
// --lint-cfg file is given: disabled, since spec.md §1 excludes lint
// rule execution from the core's own responsibilities.
func Default() Config {
	return Config{Enabled: false}
}

// Load reads and decodes a lint-config YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("lintcfg: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("lintcfg: %w", err)
	}
	return cfg, nil
}
