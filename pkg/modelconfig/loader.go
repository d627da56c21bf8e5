package modelconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads a ModelConfig from path, dispatching on file extension.
// Supports .yaml/.yml, .json, .toml, matching the teacher's process
// config loader.
func Load(path string) (*ModelConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("modelconfig: read %s: %w", path, err)
	}
	var cfg ModelConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("modelconfig: parse yaml %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("modelconfig: parse json %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("modelconfig: parse toml %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("modelconfig: unsupported config extension %q", ext)
	}
	return &cfg, nil
}

// LoadFromDir looks for config.yaml, config.yml, config.toml, or
// config.json (first match wins, in that order) inside dir.
func LoadFromDir(dir string) (*ModelConfig, error) {
	candidates := []string{"config.yaml", "config.yml", "config.toml", "config.json"}
	for _, name := range candidates {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return nil, fmt.Errorf("modelconfig: no config file found in %s", dir)
}
