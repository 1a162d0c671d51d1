// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package trust

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/kraklabs/cie/internal/gitutil"
)

// conditionsHold re-evaluates every condition on e against the current
// filesystem state. A failing condition demotes the entry to Untrusted for
// this lookup only — the entry itself is left in the store untouched
// (spec.md "TrustEntry": "A condition check is re-evaluated on every
// lookup; failing conditions demote the entry to Untrusted for that lookup").
func conditionsHold(e Entry, statFn func(string) (fs.FileInfo, error)) bool {
	for _, c := range e.Conditions {
		if !conditionHolds(e.Path, c, statFn) {
			return false
		}
	}
	return true
}

func conditionHolds(path string, c Condition, statFn func(string) (fs.FileInfo, error)) bool {
	switch c.Kind {
	case "no_modifications_since":
		info, err := statFn(path)
		if err != nil {
			return false
		}
		return !info.ModTime().After(c.Since)

	case "is_git_repo":
		return gitutil.HasRepo(path)

	case "max_size":
		info, err := statFn(path)
		if err != nil {
			return false
		}
		if info.IsDir() {
			size, err := dirSize(path)
			if err != nil {
				return false
			}
			return size <= c.MaxSize
		}
		return info.Size() <= c.MaxSize

	case "extensions":
		return allFilesHaveExtension(path, c.Extensions, statFn)

	default:
		// Unknown condition kinds fail closed rather than being silently
		// ignored, per spec.md's "fail closed" posture for path safety.
		return false
	}
}

// dirSize walks dir and sums regular-file sizes.
func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// allFilesHaveExtension reports whether every regular file under path (or
// path itself, if it is a file) has one of the allowed extensions.
func allFilesHaveExtension(path string, allowed []string, statFn func(string) (fs.FileInfo, error)) bool {
	info, err := statFn(path)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return hasExtension(path, allowed)
	}

	ok := true
	_ = filepath.Walk(path, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			ok = false
			return filepath.SkipDir
		}
		if !info.IsDir() && !hasExtension(p, allowed) {
			ok = false
			return filepath.SkipAll
		}
		return nil
	})
	return ok
}

func hasExtension(path string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}
