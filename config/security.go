package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	maxConfigSize = 10 << 20 // 10MB max config file size
	maxPathLen    = 4096
)

var configExtensions = []string{".json", ".yaml", ".yml", ".toml"}

// checkConfigFile rejects paths viper should not be asked to read
func checkConfigFile(path string) error {
	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(configExtensions, ext) {
		return fmt.Errorf("unsupported config format %q (want one of %s)", ext, strings.Join(configExtensions, ", "))
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}
	return nil
}
