package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// Config is the on-disk CLI configuration: the cache root and the named
// repositories commands may refer to.
type Config struct {
	CacheDir     string             `json:"cacheDir,omitempty"`
	Repositories []RepositoryConfig `json:"repositories,omitempty"`
}

// RepositoryConfig names one repository location.
type RepositoryConfig struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// DefaultConfigPath returns ~/.config/mrl/config.yaml, or the empty string if
// no home directory can be determined.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mrl", "config.yaml")
}

// LoadConfig reads the YAML configuration at path. A missing file yields an
// empty configuration, not an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Repository resolves a --repo argument: a configured repository name wins,
// anything else is treated as a location string.
func (c *Config) Repository(nameOrLocation string) RepositoryConfig {
	for _, repo := range c.Repositories {
		if repo.Name == nameOrLocation {
			return repo
		}
	}
	return RepositoryConfig{Name: nameOrLocation, Location: nameOrLocation}
}
