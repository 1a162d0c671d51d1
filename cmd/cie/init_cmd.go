// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cie/internal/config"
	"github.com/kraklabs/cie/internal/errors"
	"github.com/kraklabs/cie/internal/ui"
)

// runInit creates .cie/project.yaml in the current directory with default
// settings, refusing to overwrite an existing one unless --force is given.
func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing .cie/project.yaml")
	fs.Usage = func() { fmt.Fprintln(os.Stderr, "Usage: cie init [--force]") }
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot access working directory", err.Error(), "", err), globals.JSON)
	}

	configPath := filepath.Join(cwd, ".cie", "project.yaml")
	if _, statErr := os.Stat(configPath); statErr == nil && !*force {
		errors.FatalError(errors.NewInputError(
			"Configuration already exists",
			configPath+" already exists",
			"Pass --force to overwrite it",
			nil,
		), globals.JSON)
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		errors.FatalError(errors.NewConfigError("Cannot write configuration", err.Error(), "Check directory permissions", err), globals.JSON)
	}

	ui.Successf("Created %s", configPath)
	ui.Info("Run 'cie trust add .' to grant the assistant access to this project.")
}
