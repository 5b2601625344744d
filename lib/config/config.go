// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigEnvVar names the environment variable Load reads the config
// path from.
const ConfigEnvVar = "ASSETSTORE_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local authoring machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for shared deployments.
	Production Environment = "production"
)

// Config is the master configuration for the asset store.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures file locations.
	Paths PathsConfig `yaml:"paths"`

	// Storage configures the local database.
	Storage StorageConfig `yaml:"storage"`

	// Remote configures the asset server. An empty base URL means
	// offline operation.
	Remote RemoteConfig `yaml:"remote"`

	// Sync configures reconciliation with the remote.
	Sync SyncConfig `yaml:"sync"`

	// Handles configures in-process handle URLs.
	Handles HandlesConfig `yaml:"handles"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Storage *StorageConfig `yaml:"storage,omitempty"`
	Remote  *RemoteConfig  `yaml:"remote,omitempty"`
	Sync    *SyncConfig    `yaml:"sync,omitempty"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Root is the base directory for asset store data.
	Root string `yaml:"root"`

	// Database is the SQLite file holding every project's assets.
	// Default: ${ASSETSTORE_ROOT}/assets.db
	Database string `yaml:"database"`

	// State holds per-project runtime state such as the persisted
	// missing set.
	// Default: ${ASSETSTORE_ROOT}/state
	State string `yaml:"state"`
}

// StorageConfig configures the local database.
type StorageConfig struct {
	// PoolSize is the number of SQLite connections.
	// Default: 4
	PoolSize int `yaml:"pool_size"`

	// Compression selects the payload codec: auto, zstd, lz4, or none.
	// Default: auto
	Compression string `yaml:"compression"`
}

// RemoteConfig configures the asset server.
type RemoteConfig struct {
	// BaseURL is the server root, e.g. https://assets.example.org.
	// Empty disables sync.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each non-download request.
	// Default: 60s
	Timeout string `yaml:"timeout"`
}

// SyncConfig configures reconciliation.
type SyncConfig struct {
	// Interval is the period of the background reconcile loop.
	// Default: 5m
	Interval string `yaml:"interval"`

	// FetchTimeout bounds each asset download.
	// Default: 2m
	FetchTimeout string `yaml:"fetch_timeout"`

	// FetchConcurrency bounds parallel downloads.
	// Default: 4
	FetchConcurrency int `yaml:"fetch_concurrency"`

	// AutoFetch requests missing assets as soon as text referencing
	// them is resolved.
	// Default: true
	AutoFetch bool `yaml:"auto_fetch"`
}

// HandlesConfig configures handle URLs.
type HandlesConfig struct {
	// Origin is embedded in every handle: blob:<origin>/<uuid>.
	// Default: assetstore
	Origin string `yaml:"origin"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "assetstore")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:     defaultRoot,
			Database: filepath.Join(defaultRoot, "assets.db"),
			State:    filepath.Join(defaultRoot, "state"),
		},
		Storage: StorageConfig{
			PoolSize:    4,
			Compression: "auto",
		},
		Remote: RemoteConfig{
			Timeout: "60s",
		},
		Sync: SyncConfig{
			Interval:         "5m",
			FetchTimeout:     "2m",
			FetchConcurrency: 4,
			AutoFetch:        true,
		},
		Handles: HandlesConfig{
			Origin: "assetstore",
		},
	}
}

// Load loads configuration from the ASSETSTORE_CONFIG environment
// variable. There is no fallback: if it is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(ConfigEnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your assetstore.yaml config file, or use --config flag", ConfigEnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// Environment variables do not override config values. The only
// expansion performed is ${HOME}, ${ASSETSTORE_ROOT}, and similar
// patterns in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: favor ratio over speed, and fetch only
		// during reconcile passes.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Storage: &StorageConfig{Compression: "zstd"},
				Sync:    &SyncConfig{AutoFetch: false},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Database != "" {
			c.Paths.Database = overrides.Paths.Database
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
	}

	if overrides.Storage != nil {
		if overrides.Storage.PoolSize != 0 {
			c.Storage.PoolSize = overrides.Storage.PoolSize
		}
		if overrides.Storage.Compression != "" {
			c.Storage.Compression = overrides.Storage.Compression
		}
	}

	if overrides.Remote != nil {
		if overrides.Remote.BaseURL != "" {
			c.Remote.BaseURL = overrides.Remote.BaseURL
		}
		if overrides.Remote.Timeout != "" {
			c.Remote.Timeout = overrides.Remote.Timeout
		}
	}

	if overrides.Sync != nil {
		if overrides.Sync.Interval != "" {
			c.Sync.Interval = overrides.Sync.Interval
		}
		if overrides.Sync.FetchTimeout != "" {
			c.Sync.FetchTimeout = overrides.Sync.FetchTimeout
		}
		if overrides.Sync.FetchConcurrency != 0 {
			c.Sync.FetchConcurrency = overrides.Sync.FetchConcurrency
		}
		// AutoFetch is a bool, so we always apply it from overrides.
		c.Sync.AutoFetch = overrides.Sync.AutoFetch
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"ASSETSTORE_ROOT": c.Paths.Root,
		"HOME":            os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["ASSETSTORE_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Database = expandVars(c.Paths.Database, vars)
	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Remote.BaseURL = expandVars(c.Remote.BaseURL, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var compressionValues = []string{"auto", "zstd", "lz4", "none"}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Database == "" {
		errs = append(errs, fmt.Errorf("paths.database is required"))
	}

	if c.Storage.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("storage.pool_size must be at least 1"))
	}
	if !slices.Contains(compressionValues, c.Storage.Compression) {
		errs = append(errs, fmt.Errorf("storage.compression must be one of: %v", compressionValues))
	}

	if c.Remote.BaseURL != "" {
		parsed, err := url.Parse(c.Remote.BaseURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("remote.base_url must be an http or https URL, got %q", c.Remote.BaseURL))
		}
	}

	for name, value := range map[string]string{
		"remote.timeout":     c.Remote.Timeout,
		"sync.interval":      c.Sync.Interval,
		"sync.fetch_timeout": c.Sync.FetchTimeout,
	} {
		if err := checkDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.Sync.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("sync.fetch_concurrency must be at least 1"))
	}

	if c.Handles.Origin == "" || strings.ContainsAny(c.Handles.Origin, "/ ") {
		errs = append(errs, fmt.Errorf("handles.origin must be non-empty and contain no slashes or spaces"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func checkDuration(value string) error {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	if duration <= 0 {
		return fmt.Errorf("must be positive, got %s", value)
	}
	return nil
}

// RemoteTimeout returns remote.timeout as a duration. Call Validate
// first; an unparseable value yields zero.
func (c *Config) RemoteTimeout() time.Duration {
	duration, _ := time.ParseDuration(c.Remote.Timeout)
	return duration
}

// SyncInterval returns sync.interval as a duration.
func (c *Config) SyncInterval() time.Duration {
	duration, _ := time.ParseDuration(c.Sync.Interval)
	return duration
}

// FetchTimeout returns sync.fetch_timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	duration, _ := time.ParseDuration(c.Sync.FetchTimeout)
	return duration
}

// Offline reports whether no remote is configured.
func (c *Config) Offline() bool {
	return c.Remote.BaseURL == ""
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.State,
		filepath.Dir(c.Paths.Database),
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
