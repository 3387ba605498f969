package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GeneratorConfig describes one external text generator.
type GeneratorConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of generators.yaml
type ConfigFile struct {
	Generators []GeneratorConfig `yaml:"generators" json:"generators"`
}

// LoadGenerators reads a configuration file (YAML or JSON) and returns the
// generators keyed by name. A missing file means no generators are configured.
func LoadGenerators(path string) (map[string]GeneratorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]GeneratorConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read generators config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	out := make(map[string]GeneratorConfig)
	for _, g := range cfg.Generators {
		if g.Name == "" || g.Command == "" {
			continue
		}
		out[g.Name] = g
	}
	return out, nil
}
