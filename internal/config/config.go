// Package config handles configuration loading and management for SpiralSafe.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all deployment-tunable settings for the coordination core.
type Config struct {
	Coherence CoherenceConfig `mapstructure:"coherence"`
	Bumps     BumpsConfig     `mapstructure:"bumps"`
	AWI       AWIConfig       `mapstructure:"awi"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// CoherenceConfig holds the analyzer thresholds and scoring weights.
// Warn thresholds mark degradation; critical thresholds flip the
// coherent verdict.
type CoherenceConfig struct {
	CurlWarn           float64 `mapstructure:"curl_warn"`
	CurlCritical       float64 `mapstructure:"curl_critical"`
	DivergenceWarn     float64 `mapstructure:"divergence_warn"`
	DivergenceCritical float64 `mapstructure:"divergence_critical"`
	// MinContentLength is the minimum content size, in bytes, that gets
	// real scoring. Shorter content is flagged trivial.
	MinContentLength int           `mapstructure:"min_content_length"`
	Weights          WeightsConfig `mapstructure:"weights"`
}

// WeightsConfig is the deployment-configurable policy combining the
// three metrics into one coherence score. The weighted terms are
// (1-curl), potential, and (1-|divergence-0.5|).
type WeightsConfig struct {
	Curl       float64 `mapstructure:"curl"`
	Potential  float64 `mapstructure:"potential"`
	Divergence float64 `mapstructure:"divergence"`
}

// BumpsConfig holds handoff-marker timing settings.
type BumpsConfig struct {
	// PingTTL is how long an unresolved PING stays live before it reads
	// as stale.
	PingTTL time.Duration `mapstructure:"ping_ttl"`
	// SyncEpsilon is the window inside which two writes to the same
	// SYNC field count as a conflict rather than a clean last-write-wins.
	SyncEpsilon time.Duration `mapstructure:"sync_epsilon"`
}

// AWIConfig holds authority-grant timing and lockout settings.
type AWIConfig struct {
	// DefaultGrantTTL applies when a request does not specify one.
	DefaultGrantTTL time.Duration `mapstructure:"default_grant_ttl"`
	// MaxGrantTTL caps how long any single grant may live.
	MaxGrantTTL time.Duration `mapstructure:"max_grant_ttl"`
	// LockoutWindow is the sliding window for counting failures.
	LockoutWindow time.Duration `mapstructure:"lockout_window"`
	// LockoutThreshold is the failure count that triggers a deny-all
	// lockout for the identity.
	LockoutThreshold int `mapstructure:"lockout_threshold"`
}

// StorageConfig locates the storage collaborators.
type StorageConfig struct {
	// DBPath is the SQLite database path. Empty means the default
	// data-dir location.
	DBPath string `mapstructure:"db_path"`
	// BlobDir is the content-addressed blob store directory.
	BlobDir string `mapstructure:"blob_dir"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
//  1. Environment variables (SPIRALSAFE_*)
//  2. Project config (.spiralsafe.yaml in current directory or parent)
//  3. User config (~/.config/spiralsafe/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("SPIRALSAFE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing
// and one-off deployments).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Watch reloads the config file at path whenever it changes and calls
// onChange with the fresh configuration. Unparseable edits are ignored
// so a half-saved file cannot wipe live thresholds.
func Watch(path string, onChange func(*Config)) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values for every tunable.
func setDefaults(v *viper.Viper) {
	v.SetDefault("coherence.curl_warn", 0.4)
	v.SetDefault("coherence.curl_critical", 0.6)
	v.SetDefault("coherence.divergence_warn", 0.5)
	v.SetDefault("coherence.divergence_critical", 0.7)
	v.SetDefault("coherence.min_content_length", 1)
	v.SetDefault("coherence.weights.curl", 0.4)
	v.SetDefault("coherence.weights.potential", 0.3)
	v.SetDefault("coherence.weights.divergence", 0.3)

	v.SetDefault("bumps.ping_ttl", "24h")
	v.SetDefault("bumps.sync_epsilon", "1s")

	v.SetDefault("awi.default_grant_ttl", "1h")
	v.SetDefault("awi.max_grant_ttl", "24h")
	v.SetDefault("awi.lockout_window", "5m")
	v.SetDefault("awi.lockout_threshold", 5)

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.blob_dir", "")
}

// getUserConfigDir returns the XDG config directory for SpiralSafe.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "spiralsafe")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "spiralsafe")
	}
	return filepath.Join(home, ".config", "spiralsafe")
}

// findProjectConfig searches for .spiralsafe.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".spiralsafe.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with the built-in default values.
func Default() *Config {
	return &Config{
		Coherence: CoherenceConfig{
			CurlWarn:           0.4,
			CurlCritical:       0.6,
			DivergenceWarn:     0.5,
			DivergenceCritical: 0.7,
			MinContentLength:   1,
			Weights: WeightsConfig{
				Curl:       0.4,
				Potential:  0.3,
				Divergence: 0.3,
			},
		},
		Bumps: BumpsConfig{
			PingTTL:     24 * time.Hour,
			SyncEpsilon: time.Second,
		},
		AWI: AWIConfig{
			DefaultGrantTTL:  time.Hour,
			MaxGrantTTL:      24 * time.Hour,
			LockoutWindow:    5 * time.Minute,
			LockoutThreshold: 5,
		},
	}
}
