// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"
	"path/filepath"

	"github.com/kraklabs/cie/internal/config"
	"github.com/kraklabs/cie/internal/errors"
	"github.com/kraklabs/cie/internal/ui"
	"github.com/kraklabs/cie/pkg/audit"
	"github.com/kraklabs/cie/pkg/trust"
)

// absPath resolves path to a cleaned absolute form without touching the
// filesystem, so it works for write targets that don't exist yet.
func absPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// loadProjectConfig loads .cie/project.yaml, falling back to in-memory
// defaults (not persisted) when no project has been initialized yet — most
// trust/cache subcommands are still useful without a committed config.
func loadProjectConfig(configPath string) (*config.Config, string) {
	if configPath == "" {
		if found, err := config.FindConfigPath(); err == nil {
			configPath = found
		}
	}

	if configPath == "" {
		return config.DefaultConfig(), ""
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.DefaultConfig(), ""
	}
	return cfg, configPath
}

// trustStorePath returns where the trust store lives for a given project
// config file: alongside project.yaml in its .cie directory, or under the
// cache directory when no project has been initialized.
func trustStorePath(cfg *config.Config, configPath string) string {
	if configPath != "" {
		return filepath.Join(filepath.Dir(configPath), "trust.json")
	}
	if cfg.Cache.CacheDir != "" {
		return filepath.Join(cfg.Cache.CacheDir, "trust.json")
	}
	return filepath.Join(os.TempDir(), "cie-trust.json")
}

// auditSink builds the audit.Sink for CLI-driven operations: a FileSink
// under the cache directory, falling back to an in-memory sink (discarded
// at exit) if the file cannot be opened.
func auditSink(cfg *config.Config) audit.Sink {
	if cfg.Cache.CacheDir == "" {
		return audit.NewMemorySink()
	}
	if err := os.MkdirAll(cfg.Cache.CacheDir, 0o750); err != nil {
		return audit.NewMemorySink()
	}
	sink, err := audit.NewFileSink(filepath.Join(cfg.Cache.CacheDir, "audit.log"))
	if err != nil {
		return audit.NewMemorySink()
	}
	return sink
}

// buildTrustManager wires a Store, a terminal-appropriate Prompter, and an
// audit sink into a Manager, matching the mode-selection rule in spec.md
// §4.2: interactive only when both stdin and stdout are terminals and the
// config allows it.
func buildTrustManager(cfg *config.Config, configPath string) (*trust.Manager, error) {
	store, err := trust.NewStore(trustStorePath(cfg, configPath))
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot load trust store",
			err.Error(),
			"Check that the trust store file is valid JSON, or remove it to start fresh",
			err,
		)
	}

	var prompt trust.Prompter
	switch {
	case !cfg.Trust.Interactive:
		prompt = trust.NonInteractivePrompt{}
	case ui.StdinIsTerminal() && ui.StdoutIsTerminal():
		prompt = trust.InteractivePrompt{}
	default:
		prompt = trust.LineModePrompt{In: os.Stdin, Out: os.Stderr}
	}

	return trust.NewManager(store, prompt, auditSink(cfg), cfg.Trust), nil
}
