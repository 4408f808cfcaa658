package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with TOML tags.
type FileConfig struct {
	ClusterID             string   `toml:"cluster_id"`
	Addresses             []string `toml:"addresses"`
	MaxConcurrentRequests int      `toml:"max_concurrent_requests"`
	LogLevel              string   `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path,
// ~/.ledgerctl/config.toml, when the home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".ledgerctl", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("cluster-id", fc.ClusterID, &cfg.ClusterID)
	s.setStrings("addresses", fc.Addresses, &cfg.Addresses)
	s.setInt("max-concurrent-requests", fc.MaxConcurrentRequests, &cfg.MaxConcurrentRequests)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
