// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package trust

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/cie/internal/gitutil"
)

// maxStatScan bounds how many directory entries DirStats will walk before
// giving up refining counts, so the interactive dialog stays responsive on
// huge trees (spec.md §4.2: "directory statistics (file count, size, git
// presence, last-modified)" — the dialog must still render promptly).
const maxStatScan = 200_000

// DirStats summarizes a directory for the trust prompt's informational panel.
type DirStats struct {
	FileCount    int
	TotalSize    int64
	IsGitRepo    bool
	LastModified time.Time
	Truncated    bool // true if the scan hit maxStatScan and stopped early
}

// ComputeDirStats walks path (a directory) and summarizes it. When
// showProgress is true, a progress spinner is rendered to stderr via
// github.com/schollz/progressbar, matching the teacher's
// indexing progress feedback (cmd/cie/index.go) applied here to the
// directory scan that powers the trust dialog.
func ComputeDirStats(path string, showProgress bool) (DirStats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DirStats{}, err
	}
	if !info.IsDir() {
		return DirStats{
			FileCount:    1,
			TotalSize:    info.Size(),
			IsGitRepo:    false,
			LastModified: info.ModTime(),
		}, nil
	}

	stats := DirStats{IsGitRepo: gitutil.HasRepo(path)}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("scanning directory"),
			progressbar.OptionSpinnerType(14),
		)
	}

	scanned := 0
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort scan; unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			return nil
		}
		scanned++
		if bar != nil {
			_ = bar.Add(1)
		}
		if scanned > maxStatScan {
			stats.Truncated = true
			return filepath.SkipAll
		}

		fi, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr
		}
		stats.FileCount++
		stats.TotalSize += fi.Size()
		if fi.ModTime().After(stats.LastModified) {
			stats.LastModified = fi.ModTime()
		}
		return nil
	})
	if bar != nil {
		_ = bar.Finish()
	}
	return stats, err
}
