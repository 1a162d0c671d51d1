// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

// Key builders are purely syntactic convenience functions (spec.md
// §4.6.9); direct key construction is permitted but not stable across
// builds.

// ASTKey builds the key for a parsed-syntax-tree cache entry.
func ASTKey(path string) string { return "ast:" + path }

// SemanticKey builds the key for a semantic-index cache entry.
func SemanticKey(path string) string { return "semantic:" + path }

// ModelKey builds the key for a cached model response.
func ModelKey(modelID, promptHash string) string { return "model:" + modelID + ":" + promptHash }

// RepositoryKey builds the key for a cached repository-level artifact.
func RepositoryKey(path string) string { return "repo:" + path }

// SearchIndexKey builds the key for a cached search index.
func SearchIndexKey(name string) string { return "index:" + name }
