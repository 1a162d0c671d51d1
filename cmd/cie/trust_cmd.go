// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cie/internal/errors"
	"github.com/kraklabs/cie/internal/ui"
	"github.com/kraklabs/cie/pkg/trust"
)

// runTrust dispatches the `cie trust <subcommand>` family.
func runTrust(args []string, configPath string, globals GlobalFlags) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cie trust <add|remove|list|clear|check> [options]")
		os.Exit(1)
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "add":
		runTrustAdd(rest, configPath, globals)
	case "remove":
		runTrustRemove(rest, configPath, globals)
	case "list":
		runTrustList(rest, configPath, globals)
	case "clear":
		runTrustClear(rest, configPath, globals)
	case "check":
		runTrustCheck(rest, configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown trust subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runTrustAdd(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("trust add", flag.ExitOnError)
	recursive := fs.Bool("recursive", false, "Trust this path and all subdirectories")
	session := fs.Bool("session", false, "Trust only for this process's lifetime")
	reason := fs.String("reason", "manual grant", "Reason recorded with the decision")
	ops := fs.StringSlice("ops", nil, "Restrict the grant to these operations (read,write,list,metadata); empty means all")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cie trust add [--recursive] [--session] [--ops=read,write] [--reason text] <path>\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	cfg, resolvedConfigPath := loadProjectConfig(configPath)
	store, err := trust.NewStore(trustStorePath(cfg, resolvedConfigPath))
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	path, err := canonicalizeArg(fs.Arg(0))
	if err != nil {
		errors.FatalError(errors.NewPathError("Cannot resolve path", err.Error(), "Check that the path exists", err), globals.JSON)
	}

	scope := trust.Scope{Recursive: *recursive, Session: *session}
	if len(*ops) > 0 {
		scope = trust.NewOperationsScope(*ops...)
		scope.Recursive, scope.Session = *recursive, *session
	}

	entry := trust.Entry{
		Path:      path,
		Level:     trust.Trusted,
		Scope:     scope,
		GrantedAt: time.Now(),
		Reason:    *reason,
	}
	if *session {
		entry.Level = trust.Temporary
	}
	if err := store.Upsert(entry); err != nil {
		errors.FatalError(errors.NewConfigError("Cannot persist trust store", err.Error(), "Check file permissions on the trust store", err), globals.JSON)
	}

	if globals.Logger != nil {
		globals.Logger.Info("trust.add", "path", path, "recursive", *recursive, "session", *session)
	}
	ui.Successf("Trusted %s", path)
}

func runTrustRemove(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("trust remove", flag.ExitOnError)
	fs.Usage = func() { fmt.Fprintln(os.Stderr, "Usage: cie trust remove <path>") }
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	cfg, resolvedConfigPath := loadProjectConfig(configPath)
	store, err := trust.NewStore(trustStorePath(cfg, resolvedConfigPath))
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	path, err := canonicalizeArg(fs.Arg(0))
	if err != nil {
		errors.FatalError(errors.NewPathError("Cannot resolve path", err.Error(), "Check that the path exists", err), globals.JSON)
	}
	if err := store.Remove(path); err != nil {
		errors.FatalError(errors.NewConfigError("Cannot persist trust store", err.Error(), "Check file permissions on the trust store", err), globals.JSON)
	}
	ui.Successf("Removed trust entry for %s", path)
}

// trustEntryOutput is the JSON-facing shape of a trust.Entry.
type trustEntryOutput struct {
	Path      string     `json:"path"`
	Level     string     `json:"level"`
	Recursive bool       `json:"recursive"`
	Session   bool       `json:"session"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

func runTrustList(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("trust list", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output in JSON format")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *jsonOut {
		globals.JSON = true
	}

	cfg, resolvedConfigPath := loadProjectConfig(configPath)
	store, err := trust.NewStore(trustStorePath(cfg, resolvedConfigPath))
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	data, err := store.Export()
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot read trust store", err.Error(), "", err), globals.JSON)
	}

	var doc struct {
		Entries []struct {
			Path      string     `json:"path"`
			Level     string     `json:"level"`
			Recursive bool       `json:"recursive"`
			GrantedAt time.Time  `json:"granted_at"`
			ExpiresAt *time.Time `json:"expires_at,omitempty"`
			Reason    string     `json:"reason,omitempty"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		errors.FatalError(errors.NewInternalError("Cannot parse trust store", err.Error(), "", err), globals.JSON)
	}

	out := make([]trustEntryOutput, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		out = append(out, trustEntryOutput{
			Path: e.Path, Level: e.Level, Recursive: e.Recursive,
			GrantedAt: e.GrantedAt, ExpiresAt: e.ExpiresAt, Reason: e.Reason,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	if globals.JSON {
		enc, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(enc))
		return
	}

	if len(out) == 0 {
		ui.Info("No trust entries recorded.")
		return
	}
	for _, e := range out {
		scope := "directory"
		if e.Recursive {
			scope = "recursive"
		}
		fmt.Printf("%s  %-10s %-10s %s\n", e.Path, e.Level, scope, e.Reason)
	}
}

func runTrustClear(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("trust clear", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm clearing every trust entry")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if !*confirm {
		errors.FatalError(errors.NewInputError(
			"Confirmation required",
			"The --yes flag is required to confirm this destructive operation",
			"Run 'cie trust clear --yes' to confirm",
			nil,
		), globals.JSON)
	}

	cfg, resolvedConfigPath := loadProjectConfig(configPath)
	store, err := trust.NewStore(trustStorePath(cfg, resolvedConfigPath))
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	if err := store.Import([]byte(`{"schema_version":1,"entries":[]}`), false); err != nil {
		errors.FatalError(errors.NewConfigError("Cannot clear trust store", err.Error(), "", err), globals.JSON)
	}
	ui.Success("All trust entries removed.")
}

func runTrustCheck(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("trust check", flag.ExitOnError)
	op := fs.String("op", "read", "Operation to check: read, write, list, metadata")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: cie trust check [--op read|write|list|metadata] <path>")
		os.Exit(1)
	}

	cfg, resolvedConfigPath := loadProjectConfig(configPath)
	mgr, err := buildTrustManager(cfg, resolvedConfigPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	res := mgr.Check(fs.Arg(0), *op)
	if globals.Logger != nil {
		globals.Logger.Debug("trust.check", "path", fs.Arg(0), "op", *op, "granted", res.Granted)
	}

	if globals.JSON {
		enc, _ := json.Marshal(map[string]interface{}{"granted": res.Granted, "reason": res.Reason})
		fmt.Println(string(enc))
	} else if res.Granted {
		ui.Success("Access granted")
	} else {
		ui.ErrorLine("Access denied: " + res.Reason)
	}

	if !res.Granted {
		os.Exit(1)
	}
}

func canonicalizeArg(path string) (string, error) {
	return absPath(path)
}
