// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveConfigThenLoadConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cie", "project.yaml")
	cfg := DefaultConfig()
	cfg.Cache.MaxMemorySize = 42 * 1024 * 1024

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42*1024*1024), loaded.Cache.MaxMemorySize)
	assert.Equal(t, configVersion, loaded.Version)
}

func TestLoadConfigAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\ntrust:\n  enabled: false\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.False(t, cfg.Trust.Enabled, "explicit field must be preserved")
	assert.Equal(t, DefaultConfig().Cache.MaxMemorySize, cfg.Cache.MaxMemorySize, "unset field must fall back to default")
}

func TestLoadConfigRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid yaml"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestFindConfigPathSearchesAncestors(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cie"), 0o750))
	require.NoError(t, SaveConfig(filepath.Join(root, ".cie", "project.yaml"), DefaultConfig()))

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(cwd)
	require.NoError(t, os.Chdir(nested))

	found, err := FindConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".cie", "project.yaml"), found)
}

func TestDurationMarshalsAsHumanReadableString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Expiration = Duration(2 * time.Hour)

	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, SaveConfig(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2h0m0s")
}
