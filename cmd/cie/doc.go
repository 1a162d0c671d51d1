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

// Package main implements the CIE CLI: the trust-gated content cache core
// of an AI developer-assistance application.
//
// CIE enforces per-directory user trust before any file in a workspace is
// read or written on an AI assistant's behalf, and caches large derived
// artifacts (parsed syntax trees, semantic indices, model responses) in a
// bounded hybrid memory/disk cache.
//
// # Quick Start
//
//	cd /path/to/your/project
//	cie init
//	cie trust add .
//	cie trust list
//
// # Commands
//
//	init           Create .cie/project.yaml configuration
//	trust add      Grant trust to a path
//	trust remove   Revoke trust from a path
//	trust list     List all trust entries
//	trust clear    Remove every trust entry
//	trust check    Report whether a path is currently trusted
//	cache stats    Show cache hit/miss/entry statistics
//	cache clear    Empty both cache tiers
//	config         Show effective configuration
//	completion     Generate a shell completion script
//
// Global flags:
//
//	--json          Output in JSON format (for applicable commands)
//	--no-color      Disable color output (respects NO_COLOR env var)
//	-c, --config    Path to .cie/project.yaml
//	-V, --version   Show version information and exit
//
// # Configuration
//
// CIE is configured through .cie/project.yaml; `cie init` creates a default
// one. See internal/config for the full schema.
package main
