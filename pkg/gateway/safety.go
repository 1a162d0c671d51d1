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

// Package gateway implements the Secure File Gateway (spec.md component E,
// §4.4-4.5): path canonicalization, symlink-escape detection, size caps and
// permission probes, composed with the trust manager and audit sink into a
// single Read/Write/List/Metadata/Exists surface.
package gateway

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	cieerrors "github.com/kraklabs/cie/internal/errors"
)

// defaultSensitivePrefixes lists OS paths a canonicalized target must never
// resolve into, regardless of trust state (spec.md §4.4 "sensitive-prefix
// denylist"). They guard against a symlink planted inside an otherwise
// trusted tree pointing at system configuration.
var defaultSensitivePrefixes = []string{
	"/etc",
	"/sys",
	"/proc",
	"/boot",
	"/root/.ssh",
}

// PathSafety performs the non-trust-related checks every gateway operation
// runs first: canonicalization, symlink-escape detection against a set of
// allowed roots, and a sensitive-prefix denylist.
type PathSafety struct {
	// AllowedRoots restricts canonicalized paths to these prefixes. An empty
	// slice means no restriction beyond the sensitive-prefix denylist.
	AllowedRoots []string

	// SensitivePrefixes overrides defaultSensitivePrefixes when non-nil.
	SensitivePrefixes []string

	// MaxReadSize caps how large a file Read will return (spec.md §4.4
	// "file-size cap for reads"). Zero means no cap.
	MaxReadSize int64
}

// NewPathSafety builds a PathSafety with the package defaults for
// SensitivePrefixes and the given allowed roots and read cap.
func NewPathSafety(allowedRoots []string, maxReadSize int64) *PathSafety {
	return &PathSafety{AllowedRoots: allowedRoots, MaxReadSize: maxReadSize}
}

// Canonicalize resolves path to an absolute, symlink-free form and checks it
// against the allowed roots and sensitive-prefix denylist. It is the single
// choke point every gateway verb calls through before touching the
// filesystem.
func (p *PathSafety) Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cieerrors.ErrPathResolve, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			// A write target that doesn't exist yet: resolve the symlinks in
			// its parent chain, then re-append the missing leaf name.
			parent, err2 := filepath.EvalSymlinks(filepath.Dir(abs))
			if err2 != nil {
				return "", fmt.Errorf("%w: %v", cieerrors.ErrPathResolve, err2)
			}
			resolved = filepath.Join(parent, filepath.Base(abs))
		} else {
			return "", fmt.Errorf("%w: %v", cieerrors.ErrPathResolve, err)
		}
	}

	if err := p.checkSensitive(resolved); err != nil {
		return "", err
	}
	if err := p.checkAllowedRoots(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

func (p *PathSafety) sensitivePrefixes() []string {
	if p.SensitivePrefixes != nil {
		return p.SensitivePrefixes
	}
	return defaultSensitivePrefixes
}

func (p *PathSafety) checkSensitive(resolved string) error {
	for _, prefix := range p.sensitivePrefixes() {
		if resolved == prefix || strings.HasPrefix(resolved, prefix+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s is under a protected system path", cieerrors.ErrSymlinkEscape, resolved)
		}
	}
	return nil
}

func (p *PathSafety) checkAllowedRoots(resolved string) error {
	if len(p.AllowedRoots) == 0 {
		return nil
	}
	for _, root := range p.AllowedRoots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if canonRoot, err := filepath.EvalSymlinks(absRoot); err == nil {
			absRoot = canonRoot
		}
		if resolved == absRoot || strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is outside the allowed roots", cieerrors.ErrSymlinkEscape, resolved)
}

// CheckReadSize stats path and rejects it if it exceeds MaxReadSize.
func (p *PathSafety) CheckReadSize(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if p.MaxReadSize > 0 && info.Size() > p.MaxReadSize {
		return info, fmt.Errorf("%w: %s is %d bytes, cap is %d", cieerrors.ErrFileTooLarge, path, info.Size(), p.MaxReadSize)
	}
	return info, nil
}

// ProbeWritable checks whether dir is writable by creating and immediately
// removing a zero-byte sentinel file, rather than inspecting permission bits
// directly — this also catches read-only filesystems and mandatory-access-
// control denials that a mode check would miss (spec.md §4.4 "permission
// probe via sentinel write").
func ProbeWritable(dir string) error {
	sentinel := filepath.Join(dir, ".cie-write-probe")
	f, err := os.OpenFile(sentinel, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %v", cieerrors.ErrPermissionDenied, err)
	}
	_ = f.Close()
	_ = os.Remove(sentinel)
	return nil
}
