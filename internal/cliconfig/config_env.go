package cliconfig

import (
	"os"
	"strings"
)

// ApplyEnvConfig applies configuration from environment variables
// (LEDGER_*). It respects flags that have been explicitly set (changed
// map). Returns an error if a variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("cluster-id", os.Getenv("LEDGER_CLUSTER_ID"), &cfg.ClusterID)
	s.setString("log-level", os.Getenv("LEDGER_LOG_LEVEL"), &cfg.LogLevel)

	if v := os.Getenv("LEDGER_ADDRESSES"); v != "" {
		s.setStrings("addresses", splitAddresses(v), &cfg.Addresses)
	}

	return s.setIntFromString("max-concurrent-requests",
		os.Getenv("LEDGER_MAX_CONCURRENT_REQUESTS"), &cfg.MaxConcurrentRequests)
}

// splitAddresses splits a comma-separated address list, dropping empty
// entries.
func splitAddresses(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
