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

// Package cache implements the Hybrid Cache Engine (spec.md component G):
// a bounded in-memory LRU backed by a content-addressed, optionally
// compressed disk tier, with per-category statistics and a background TTL
// sweeper.
package cache

import "time"

// Category classifies a cache entry for accounting and TTL policy only; it
// never influences the key itself (spec.md §4.6.1).
type Category string

const (
	CategoryAST           Category = "ast"
	CategorySemantic      Category = "semantic"
	CategoryModelResponse Category = "model_response"
	CategoryRepository    Category = "repository"
	CategorySearchIndex   Category = "search_index"
	CategoryConfig        Category = "config"
	CategoryGeneral       Category = "general"
)

// EntryMeta is the bookkeeping carried alongside every cached payload
// (spec.md "CacheEntryMeta").
type EntryMeta struct {
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int64
	SizeBytes    int64
	Category     Category
}

// entry is the in-memory representation: metadata plus the immutable byte
// payload (spec.md "CacheEntry (memory)" — "Bytes are shared immutably once
// inserted").
type entry struct {
	meta  EntryMeta
	bytes []byte
}
