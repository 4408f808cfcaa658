// Package cliconfig loads ledgerctl configuration from its TOML file,
// LEDGER_* environment variables, and command-line flags, in ascending
// precedence.
package cliconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/copperline/ledgerclient/pkg/types"
)

// Config holds CLI configuration for ledgerctl.
type Config struct {
	// ClusterID is the cluster's 128-bit id in hex.
	ClusterID string

	// Addresses lists cluster replica addresses.
	Addresses []string

	// MaxConcurrentRequests caps in-flight requests per client.
	MaxConcurrentRequests int

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ClusterID:             "0",
		Addresses:             []string{"3000"},
		MaxConcurrentRequests: 32,
		LogLevel:              "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.ClusterID128(); err != nil {
		return fmt.Errorf("cluster-id: %w", err)
	}
	if len(c.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log-level must be debug, info, warn, or error")
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("max-concurrent-requests must be positive")
	}
	return nil
}

// ClusterID128 parses the configured cluster id.
func (c *Config) ClusterID128() (types.Uint128, error) {
	return types.Uint128FromString(strings.TrimPrefix(c.ClusterID, "0x"))
}

// configSetter applies configuration values while respecting flag
// precedence: a value is ignored when its flag was set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a string-slice value if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntFromString parses a string to int and sets the destination if
// valid. Used for environment variables, which come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
