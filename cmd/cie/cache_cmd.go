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

	"github.com/kraklabs/cie/internal/config"
	"github.com/kraklabs/cie/internal/errors"
	"github.com/kraklabs/cie/internal/ui"
	"github.com/kraklabs/cie/pkg/cache"
)

// runCache dispatches the `cie cache <subcommand>` family.
func runCache(args []string, configPath string, globals GlobalFlags) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cie cache <stats|clear> [options]")
		os.Exit(1)
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "stats":
		runCacheStats(rest, configPath, globals)
	case "clear":
		runCacheClear(rest, configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown cache subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func buildCacheEngine(cfg *config.Config) (*cache.Cache, error) {
	c, err := cache.New(cache.Options{
		MaxMemorySize:     cfg.Cache.MaxMemorySize,
		MaxDiskSize:       cfg.Cache.MaxDiskSize,
		EnableDiskCache:   cfg.Cache.EnableDiskCache,
		EnableCompression: cfg.Cache.EnableCompression,
		Expiration:        time.Duration(cfg.Cache.Expiration),
		CacheDir:          cfg.Cache.CacheDir,
	})
	if err != nil {
		return nil, errors.NewCacheError(
			"Cannot open cache",
			err.Error(),
			"Check that the cache directory is writable",
			err,
		)
	}
	return c, nil
}

func runCacheStats(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("cache stats", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output in JSON format")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *jsonOut {
		globals.JSON = true
	}

	cfg, _ := loadProjectConfig(configPath)
	c, err := buildCacheEngine(cfg)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	defer c.Close()

	snap := c.Stats()

	if globals.JSON {
		enc, _ := json.MarshalIndent(snap, "", "  ")
		fmt.Println(string(enc))
		return
	}

	ui.Header("Cache Statistics")
	fmt.Printf("%s %s (%.1f%% hit rate)\n\n",
		ui.Label("Total hits", fmt.Sprintf("%d", snap.TotalHits)),
		ui.Label("Total misses", fmt.Sprintf("%d", snap.TotalMiss)),
		snap.HitRate*100,
	)

	cats := make([]string, 0, len(snap.ByCategory))
	for cat := range snap.ByCategory {
		cats = append(cats, string(cat))
	}
	sort.Strings(cats)

	for _, cat := range cats {
		s := snap.ByCategory[cache.Category(cat)]
		fmt.Printf("  %-16s hits=%-6d misses=%-6d entries=%-6d bytes=%d\n",
			cat, s.Hits, s.Misses, s.Entries, s.Bytes)
	}
}

func runCacheClear(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("cache clear", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm clearing both cache tiers")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if !*confirm {
		errors.FatalError(errors.NewInputError(
			"Confirmation required",
			"The --yes flag is required to confirm this destructive operation",
			"Run 'cie cache clear --yes' to confirm",
			nil,
		), globals.JSON)
	}

	cfg, _ := loadProjectConfig(configPath)
	c, err := buildCacheEngine(cfg)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	defer c.Close()

	if err := c.Clear(); err != nil {
		errors.FatalError(errors.NewCacheError("Cannot clear cache", err.Error(), "", err), globals.JSON)
	}
	if globals.Logger != nil {
		globals.Logger.Info("cache.clear", "cache_dir", cfg.Cache.CacheDir)
	}
	ui.Success("Cache cleared.")
}
