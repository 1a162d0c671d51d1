// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package errors

import "errors"

// Sentinel errors returned by library packages (pkg/trust, pkg/gateway,
// pkg/cache). Callers use errors.Is to branch on them; cmd/cie wraps them
// into a *CLIError via the NewXError constructors for presentation.
var (
	// ErrPathResolve: canonicalization failed.
	ErrPathResolve = errors.New("path could not be resolved")
	// ErrSymlinkEscape: canonical path escapes the allowed roots or resolves
	// into a system-sensitive prefix.
	ErrSymlinkEscape = errors.New("path escapes allowed roots")
	// ErrFileTooLarge: read target exceeds policy.max_file_size.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrPermissionDenied: the OS refused the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDenied: the trust manager returned Deny or Block.
	ErrDenied = errors.New("access denied by trust policy")
	// ErrEntryTooLarge: cache put exceeds the per-entry cap.
	ErrEntryTooLarge = errors.New("cache entry exceeds per-entry size cap")
	// ErrCacheCorrupt: an on-disk cache payload could not be decoded.
	ErrCacheCorrupt = errors.New("cache entry is corrupt")
	// ErrStorePersist: the trust store failed to persist a mutation.
	ErrStorePersist = errors.New("failed to persist trust store")
	// ErrStoreCorrupt: the trust store file could not be read at load time.
	ErrStoreCorrupt = errors.New("trust store file is corrupt")
	// ErrIO: a generic filesystem error not covered by a more specific kind.
	ErrIO = errors.New("filesystem error")
)
