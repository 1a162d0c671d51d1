// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and persists .cie/project.yaml, the project
// configuration recognized by the trust manager and hybrid cache engine
// (spec.md §6 "Configuration surface").
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	cieerrors "github.com/kraklabs/cie/internal/errors"
)

const (
	configDirName  = ".cie"
	configFileName = "project.yaml"
	configVersion  = "1"
)

// Duration wraps time.Duration to support human-readable YAML values like
// "24h" instead of raw nanosecond integers.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the on-disk .cie/project.yaml document.
type Config struct {
	Version string       `yaml:"version"`
	Cache   CacheConfig  `yaml:"cache"`
	Trust   TrustConfig  `yaml:"trust"`
	Policy  PolicyConfig `yaml:"policy"`
}

// CacheConfig configures the hybrid cache engine (spec.md §4.6, §6).
type CacheConfig struct {
	MaxMemorySize     int64    `yaml:"max_memory_size"`
	MaxDiskSize       int64    `yaml:"max_disk_size"`
	EnableDiskCache   bool     `yaml:"enable_disk_cache"`
	EnableCompression bool     `yaml:"enable_compression"`
	Expiration        Duration `yaml:"expiration"`
	CacheDir          string   `yaml:"cache_dir"`
}

// TrustConfig configures the trust manager (spec.md §4.3, §6).
type TrustConfig struct {
	Enabled           bool     `yaml:"enabled"`
	AutoTrustGit      bool     `yaml:"auto_trust_git"`
	TrustTimeout      Duration `yaml:"trust_timeout"`
	MaxAutoTrustSize  int64    `yaml:"max_auto_trust_size"`
	TrustedExtensions []string `yaml:"trusted_extensions"`
	TrustedPaths      []string `yaml:"trusted_paths"`
	Interactive       bool     `yaml:"interactive"`
}

// PolicyConfig configures path-safety checks (spec.md §4.4, §6).
type PolicyConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"`
}

// getEnv returns the environment variable named key, or fallback if unset.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// DefaultConfig returns a config with the defaults documented in spec.md §6.
func DefaultConfig() *Config {
	cacheDir := getEnv("CIE_CACHE_DIR", "")
	if cacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cacheDir = filepath.Join(dir, "cie")
		}
	}

	return &Config{
		Version: configVersion,
		Cache: CacheConfig{
			MaxMemorySize:     256 * 1024 * 1024,
			MaxDiskSize:       1024 * 1024 * 1024,
			EnableDiskCache:   true,
			EnableCompression: true,
			Expiration:        Duration(24 * time.Hour),
			CacheDir:          cacheDir,
		},
		Trust: TrustConfig{
			Enabled:           true,
			AutoTrustGit:      true,
			TrustTimeout:      Duration(24 * time.Hour),
			MaxAutoTrustSize:  100 * 1024 * 1024,
			TrustedExtensions: []string{".md", ".txt", ".yaml", ".yml", ".json", ".toml"},
			TrustedPaths:      nil,
			Interactive:       true,
		},
		Policy: PolicyConfig{
			MaxFileSize: 5 * 1024 * 1024,
		},
	}
}

// FindConfigPath searches the current directory and its ancestors for
// .cie/project.yaml, matching the teacher's upward-search LoadConfig.
func FindConfigPath() (string, error) {
	if envPath := os.Getenv("CIE_CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", cieerrors.NewConfigError(
				"Configuration file not found",
				fmt.Sprintf("CIE_CONFIG_PATH is set to %q but the file does not exist", envPath),
				"Fix the CIE_CONFIG_PATH environment variable or run 'cie init' to create a config",
				nil,
			)
		}
		return envPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", cieerrors.NewInternalError(
			"Cannot access working directory",
			"Failed to determine current directory path",
			"Check system permissions and try again",
			err,
		)
	}

	for {
		candidate := filepath.Join(dir, configDirName, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", cieerrors.NewConfigError(
		"Configuration not found",
		"No .cie/project.yaml file found in current directory or any parent directory",
		"Run 'cie init' to create a new configuration",
		nil,
	)
}

// LoadConfig loads configuration from path, or discovers it via
// FindConfigPath when path is empty.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		found, err := FindConfigPath()
		if err != nil {
			return nil, err
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cieerrors.NewConfigError(
			"Cannot read configuration file",
			fmt.Sprintf("Failed to read %s", path),
			"Check file permissions and ensure the file exists",
			err,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cieerrors.NewConfigError(
			"Invalid configuration format",
			"YAML parsing failed - the config file contains syntax errors",
			fmt.Sprintf("Edit %s to fix syntax errors, or run 'cie init --force' to recreate", path),
			err,
		)
	}

	if cfg.Version == "" {
		cfg.Version = configVersion
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills zero-valued fields with DefaultConfig's values, so a
// partially-specified project.yaml (or one predating a newly added field)
// still produces a usable configuration. This keeps the on-disk format
// forward-compatible without a schema migration step.
func applyDefaults(cfg *Config) {
	d := DefaultConfig()

	if cfg.Cache.MaxMemorySize == 0 {
		cfg.Cache.MaxMemorySize = d.Cache.MaxMemorySize
	}
	if cfg.Cache.MaxDiskSize == 0 {
		cfg.Cache.MaxDiskSize = d.Cache.MaxDiskSize
	}
	if cfg.Cache.Expiration == 0 {
		cfg.Cache.Expiration = d.Cache.Expiration
	}
	if cfg.Cache.CacheDir == "" {
		cfg.Cache.CacheDir = d.Cache.CacheDir
	}
	if cfg.Trust.TrustTimeout == 0 {
		cfg.Trust.TrustTimeout = d.Trust.TrustTimeout
	}
	if cfg.Trust.MaxAutoTrustSize == 0 {
		cfg.Trust.MaxAutoTrustSize = d.Trust.MaxAutoTrustSize
	}
	if len(cfg.Trust.TrustedExtensions) == 0 {
		cfg.Trust.TrustedExtensions = d.Trust.TrustedExtensions
	}
	if cfg.Policy.MaxFileSize == 0 {
		cfg.Policy.MaxFileSize = d.Policy.MaxFileSize
	}
}

// SaveConfig writes cfg to path using write-temp-then-rename, matching
// spec.md §3's atomic-persistence requirement for all durable state in this
// core (here applied to project configuration, not the trust store itself).
func SaveConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return cieerrors.NewPermissionError(
			"Cannot create configuration directory",
			fmt.Sprintf("Permission denied creating %s", dir),
			"Check directory permissions or run with appropriate privileges",
			err,
		)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return cieerrors.NewInternalError(
			"Cannot encode configuration",
			"YAML marshaling failed unexpectedly",
			"This is a bug. Please report it with your configuration details",
			err,
		)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return cieerrors.NewPermissionError(
			"Cannot write configuration file",
			fmt.Sprintf("Permission denied writing to %s", tmp),
			"Check file permissions and ensure sufficient disk space",
			err,
		)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return cieerrors.NewIOError(
			"Cannot finalize configuration file",
			fmt.Sprintf("Failed to rename %s to %s", tmp, path),
			"Check filesystem permissions and available disk space",
			err,
		)
	}
	return nil
}
