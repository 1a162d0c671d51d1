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

// Package gitutil provides the minimal git-repository detection the trust
// manager's auto-trust heuristics need (spec.md §4.3: "Git repository
// present at path and auto-trust-git enabled"). It deliberately does not
// shell out to git — a plain directory-entry check is sufficient and avoids
// the latency and PATH dependency of spawning a subprocess for a hot-path
// trust decision.
package gitutil

import "os"

// HasRepo reports whether dir (an existing directory) is itself the root of
// a git working tree, i.e. dir/.git exists as either a directory (normal
// repo) or a file (a worktree/submodule gitlink).
func HasRepo(dir string) bool {
	info, err := os.Stat(dir + string(os.PathSeparator) + ".git")
	if err != nil {
		return false
	}
	return info.IsDir() || info.Mode().IsRegular()
}
