// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "INSTALL_SECRETS_CONFIG"

// DefaultKeystore is the host key fleets encrypt to when nothing else
// is configured.
const DefaultKeystore = "/etc/ssh/ssh_host_ed25519_key"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the install-secrets configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Keystore is a key file or a directory of key files.
	Keystore string `yaml:"keystore"`

	// Manifest is the manifest path used when --manifest is not given.
	Manifest string `yaml:"manifest"`

	// Parallelism bounds how many secrets are processed at once.
	Parallelism int `yaml:"parallelism"`

	// DirectoryMode is the octal mode for parent directories the
	// installer creates ("0755").
	DirectoryMode string `yaml:"directory_mode"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Zero values leave the base value in place.
type ConfigOverrides struct {
	Keystore      string `yaml:"keystore,omitempty"`
	Manifest      string `yaml:"manifest,omitempty"`
	Parallelism   int    `yaml:"parallelism,omitempty"`
	DirectoryMode string `yaml:"directory_mode,omitempty"`
	LogLevel      string `yaml:"log_level,omitempty"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	return &Config{
		Environment:   Production,
		Keystore:      DefaultKeystore,
		Parallelism:   1,
		DirectoryMode: "0755",
		LogLevel:      "info",
	}
}

// Load loads configuration from the INSTALL_SECRETS_CONFIG environment
// variable. If the variable is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. The only expansion
// performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// Resolve picks the configuration for a command invocation: the
// explicit flagPath if given, else INSTALL_SECRETS_CONFIG if set, else
// the defaults.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	return Default(), nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
		// Development defaults: verbose logging.
		if overrides == nil {
			overrides = &ConfigOverrides{LogLevel: "debug"}
		}
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Keystore != "" {
		c.Keystore = overrides.Keystore
	}
	if overrides.Manifest != "" {
		c.Manifest = overrides.Manifest
	}
	if overrides.Parallelism != 0 {
		c.Parallelism = overrides.Parallelism
	}
	if overrides.DirectoryMode != "" {
		c.DirectoryMode = overrides.DirectoryMode
	}
	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Keystore = expandVars(c.Keystore, vars)
	c.Manifest = expandVars(c.Manifest, vars)
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

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Keystore == "" {
		errs = append(errs, errors.New("keystore is required"))
	}

	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism))
	}

	if _, err := c.DirectoryFileMode(); err != nil {
		errs = append(errs, err)
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DirectoryFileMode parses DirectoryMode.
func (c *Config) DirectoryFileMode() (fs.FileMode, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(c.DirectoryMode, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("directory_mode %q is not an octal mode", c.DirectoryMode)
	}
	if value&^uint64(fs.ModePerm) != 0 {
		return 0, fmt.Errorf("directory_mode %q has bits outside 0777", c.DirectoryMode)
	}
	return fs.FileMode(value), nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", c.LogLevel)
	}
	return level, nil
}
