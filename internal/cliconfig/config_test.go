package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/copperline/ledgerclient/pkg/types"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"hex cluster id", func(c *Config) { c.ClusterID = "0xff" }, false},
		{"bad cluster id", func(c *Config) { c.ClusterID = "not-hex" }, true},
		{"no addresses", func(c *Config) { c.Addresses = nil }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"zero request cap", func(c *Config) { c.MaxConcurrentRequests = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClusterID128(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClusterID = "0xff"
	id, err := cfg.ClusterID128()
	if err != nil {
		t.Fatalf("ClusterID128: %v", err)
	}
	if id != types.U128(255) {
		t.Fatalf("ClusterID128 = %s, want %s", id, types.U128(255))
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfigFile(t, `
cluster_id = "7"
addresses = ["3001", "3002"]
max_concurrent_requests = 64
log_level = "debug"
`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig: %v", err)
	}
	if fc.ClusterID != "7" || fc.LogLevel != "debug" || fc.MaxConcurrentRequests != 64 {
		t.Fatalf("unexpected file config: %+v", fc)
	}
	if len(fc.Addresses) != 2 || fc.Addresses[0] != "3001" {
		t.Fatalf("unexpected addresses: %v", fc.Addresses)
	}

	if _, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	bad := writeConfigFile(t, "cluster_id = [")
	if _, err := LoadFileConfig(bad); err == nil {
		t.Fatal("expected error for malformed TOML")
	}
}

func TestApplyFileConfigRespectsChangedFlags(t *testing.T) {
	cfg := DefaultConfig()
	fc := FileConfig{
		ClusterID:             "7",
		Addresses:             []string{"4000"},
		MaxConcurrentRequests: 64,
		LogLevel:              "debug",
	}

	// An explicitly set flag wins over the file.
	changed := map[string]bool{"log-level": true}
	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want flag value preserved", cfg.LogLevel)
	}
	if cfg.ClusterID != "7" || cfg.MaxConcurrentRequests != 64 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if len(cfg.Addresses) != 1 || cfg.Addresses[0] != "4000" {
		t.Fatalf("addresses not applied: %v", cfg.Addresses)
	}

	// Empty file values leave the config untouched.
	cfg = DefaultConfig()
	if err := ApplyFileConfig(&cfg, FileConfig{}, nil); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg.ClusterID != "0" || cfg.MaxConcurrentRequests != 32 {
		t.Fatalf("empty file mutated defaults: %+v", cfg)
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("LEDGER_CLUSTER_ID", "9")
	t.Setenv("LEDGER_ADDRESSES", "5000, 5001, ,5002")
	t.Setenv("LEDGER_MAX_CONCURRENT_REQUESTS", "128")
	t.Setenv("LEDGER_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, map[string]bool{"cluster-id": true}); err != nil {
		t.Fatalf("ApplyEnvConfig: %v", err)
	}

	// The changed flag shields cluster-id; everything else comes from the
	// environment, with the address list split on commas.
	if cfg.ClusterID != "0" {
		t.Fatalf("ClusterID = %q, want flag value preserved", cfg.ClusterID)
	}
	if cfg.LogLevel != "warn" || cfg.MaxConcurrentRequests != 128 {
		t.Fatalf("env values not applied: %+v", cfg)
	}
	want := []string{"5000", "5001", "5002"}
	if len(cfg.Addresses) != len(want) {
		t.Fatalf("addresses = %v, want %v", cfg.Addresses, want)
	}
	for i := range want {
		if cfg.Addresses[i] != want[i] {
			t.Fatalf("addresses = %v, want %v", cfg.Addresses, want)
		}
	}
}

func TestApplyEnvConfigRejectsBadInt(t *testing.T) {
	t.Setenv("LEDGER_MAX_CONCURRENT_REQUESTS", "lots")
	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Fatal("expected parse error")
	}
}
