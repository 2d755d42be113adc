// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfigFile(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
}

func TestLoadRequiresSecret(t *testing.T) {
	writeConfigFile(t, "logging:\n  level: debug\n")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a config without log.secret")
	}
}

func TestLoadFileKeepsUntouchedDefaults(t *testing.T) {
	writeConfigFile(t, `
log:
  secret: `+testSecret+`
  dir: /tmp/curator-test/log
snapshot:
  interval: 5m
`)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Dir != "/tmp/curator-test/log" {
		t.Errorf("log.dir = %s", cfg.Log.Dir)
	}
	if cfg.Snapshot.Interval != 5*time.Minute {
		t.Errorf("snapshot.interval = %s, want 5m", cfg.Snapshot.Interval)
	}
	// Layers the file does not mention stay at their defaults.
	if cfg.Snapshot.Keep != 3 {
		t.Errorf("snapshot.keep = %d, want default 3", cfg.Snapshot.Keep)
	}
	if cfg.Jobs.Concurrency != 4 {
		t.Errorf("jobs.concurrency = %d, want default 4", cfg.Jobs.Concurrency)
	}
	if got := cfg.Jobs.MaxAttempts["media.extract_metadata"]; got != 3 {
		t.Errorf("default max attempts = %d, want 3", got)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics enabled by default")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	writeConfigFile(t, `
logging:
  level: debug
log:
  secret: `+testSecret+`
`)
	t.Setenv("CURATOR_LOGGING__LEVEL", "error")
	t.Setenv("CURATOR_LOG__SEGMENT_MAX_BYTES", "1048576")
	t.Setenv("CURATOR_JOBS__RETRY_BASE_DELAY", "250ms")
	t.Setenv("CURATOR_METRICS__ENABLED", "true")
	t.Setenv("CURATOR_METRICS__ADDR", "127.0.0.1:9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("logging.level = %s, want env override error", cfg.Logging.Level)
	}
	if cfg.Log.SegmentMaxBytes != 1048576 {
		t.Errorf("log.segment_max_bytes = %d", cfg.Log.SegmentMaxBytes)
	}
	if cfg.Jobs.RetryBaseDelay != 250*time.Millisecond {
		t.Errorf("jobs.retry_base_delay = %s", cfg.Jobs.RetryBaseDelay)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "127.0.0.1:9100" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
}

func TestEnvTransform(t *testing.T) {
	cases := map[string]string{
		"CURATOR_LOG__SEGMENT_MAX_BYTES": "log.segment_max_bytes",
		"CURATOR_LOGGING__LEVEL":         "logging.level",
		"CURATOR_SNAPSHOT__KEEP":         "snapshot.keep",
		"CURATOR_CONFIG_PATH":            "",
	}
	for in, want := range cases {
		if got := envTransform(in); got != want {
			t.Errorf("envTransform(%q) = %q, want %q", in, got, want)
		}
	}
}

func validBase() *Config {
	cfg := defaultConfig()
	cfg.Log.Secret = testSecret
	return cfg
}

func TestValidateCrossFieldRules(t *testing.T) {
	if err := validBase().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := validBase()
	cfg.Dedup.StrongDistance = 9
	cfg.Dedup.ProbableDistance = 8
	if err := cfg.Validate(); err == nil {
		t.Error("strong_distance above probable_distance accepted")
	}

	cfg = validBase()
	cfg.Jobs.Pools["io"] = cfg.Jobs.Concurrency + 1
	if err := cfg.Validate(); err == nil {
		t.Error("pool cap above concurrency accepted")
	}

	cfg = validBase()
	cfg.Jobs.Pools["io"] = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero pool cap accepted")
	}

	cfg = validBase()
	cfg.Jobs.MaxAttempts["media.extract_metadata"] = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero max attempts accepted")
	}

	cfg = validBase()
	cfg.Jobs.RetryBaseDelay = time.Minute
	cfg.Jobs.RetryMaxDelay = time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("retry_base_delay above retry_max_delay accepted")
	}

	cfg = validBase()
	cfg.Log.Secret = "short"
	if err := cfg.Validate(); err == nil {
		t.Error("short secret accepted")
	}

	cfg = validBase()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ""
	if err := cfg.Validate(); err == nil {
		t.Error("enabled metrics without addr accepted")
	}
}
