package core

import (
	"fmt"
	"os"

	manifest "github.com/joeydtaylor/steeze-ipcm/pkg/manifest"
	toml "github.com/pelletier/go-toml/v2"
)

// LoadConfig reads and validates the TOML manifest at path. A missing
// file yields the defaults.
func LoadConfig(path string) (manifest.Config, error) {
	var cfg manifest.Config
	b, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return manifest.Config{}, err
	default:
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return manifest.Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return manifest.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
