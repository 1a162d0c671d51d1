// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/cie/internal/errors"
)

// runConfigCmd prints the effective configuration (defaults merged with any
// discovered .cie/project.yaml) as YAML or, with --json, as JSON.
func runConfigCmd(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output in JSON format")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *jsonOut {
		globals.JSON = true
	}

	cfg, _ := loadProjectConfig(configPath)

	if globals.JSON {
		enc, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			errors.FatalError(errors.NewInternalError("Cannot encode configuration", err.Error(), "", err), globals.JSON)
		}
		fmt.Println(string(enc))
		return
	}

	enc, err := yaml.Marshal(cfg)
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot encode configuration", err.Error(), "", err), globals.JSON)
	}
	fmt.Print(string(enc))
}
