package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPathOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
coherence:
  curl_critical: 0.9
  weights:
    curl: 0.5
bumps:
  ping_ttl: 48h
awi:
  lockout_threshold: 3
storage:
  db_path: /custom/spiralsafe.db
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Coherence.CurlCritical != 0.9 {
		t.Errorf("CurlCritical = %v, want 0.9", cfg.Coherence.CurlCritical)
	}
	if cfg.Coherence.Weights.Curl != 0.5 {
		t.Errorf("Weights.Curl = %v, want 0.5", cfg.Coherence.Weights.Curl)
	}
	if cfg.Bumps.PingTTL != 48*time.Hour {
		t.Errorf("PingTTL = %v, want 48h", cfg.Bumps.PingTTL)
	}
	if cfg.AWI.LockoutThreshold != 3 {
		t.Errorf("LockoutThreshold = %d, want 3", cfg.AWI.LockoutThreshold)
	}
	if cfg.Storage.DBPath != "/custom/spiralsafe.db" {
		t.Errorf("DBPath = %q", cfg.Storage.DBPath)
	}

	// Untouched keys keep their defaults.
	if cfg.Coherence.CurlWarn != 0.4 {
		t.Errorf("CurlWarn = %v, want default 0.4", cfg.Coherence.CurlWarn)
	}
	if cfg.AWI.DefaultGrantTTL != time.Hour {
		t.Errorf("DefaultGrantTTL = %v, want default 1h", cfg.AWI.DefaultGrantTTL)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFromPath accepted a missing file")
	}
}

func TestDefaultMatchesSetDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	want := Default()

	if *loaded != *want {
		t.Errorf("empty config loaded as %+v, want defaults %+v", loaded, want)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SPIRALSAFE_AWI_LOCKOUT_THRESHOLD", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AWI.LockoutThreshold != 9 {
		t.Errorf("LockoutThreshold = %d, want 9 from environment", cfg.AWI.LockoutThreshold)
	}
}
