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

// Package errors provides the typed error taxonomy shared by the trust
// manager, secure file gateway, and hybrid cache engine, plus the CLI-facing
// presentation (FatalError) used to report them.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Kind classifies a CLIError for exit-code mapping and presentation.
type Kind string

const (
	KindPath       Kind = "path"       // PathResolveError / SymlinkEscape
	KindTrust      Kind = "trust"      // Denied
	KindCache      Kind = "cache"      // EntryTooLarge / CacheCorrupt
	KindPermission Kind = "permission" // PermissionDenied
	KindIO         Kind = "io"         // IoError
	KindConfig     Kind = "config"     // StorePersistError / StoreCorrupt / config load
	KindInput      Kind = "input"      // bad CLI input
	KindNetwork    Kind = "network"    // remote-facing (reserved; no remote calls in this core)
	KindInternal   Kind = "internal"   // contract violation / bug
)

// exitCodes maps a Kind to the process exit code used by FatalError.
var exitCodes = map[Kind]int{
	KindPath:       10,
	KindTrust:      20,
	KindCache:      30,
	KindPermission: 40,
	KindIO:         50,
	KindConfig:     60,
	KindInput:      2,
	KindNetwork:    70,
	KindInternal:   1,
}

// CLIError is the typed error surfaced by every public operation in this
// core. Summary is a short, non-technical headline; Detail explains what
// happened; Suggestion (optional) tells the user what to do about it.
type CLIError struct {
	Kind       Kind
	Summary    string
	Detail     string
	Suggestion string
	Cause      error
}

func (e *CLIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Summary, e.Detail)
	}
	return e.Summary
}

func (e *CLIError) Unwrap() error { return e.Cause }

func newError(kind Kind, summary, detail, suggestion string, cause error) *CLIError {
	return &CLIError{Kind: kind, Summary: summary, Detail: detail, Suggestion: suggestion, Cause: cause}
}

// NewPathError reports a canonicalization or symlink-escape failure.
func NewPathError(summary, detail, suggestion string, cause error) *CLIError {
	return newError(KindPath, summary, detail, suggestion, cause)
}

// NewTrustError reports a trust-manager denial (Denied/Blocked).
func NewTrustError(summary, detail, suggestion string, cause error) *CLIError {
	return newError(KindTrust, summary, detail, suggestion, cause)
}

// NewCacheError reports a cache-engine failure (EntryTooLarge/CacheCorrupt).
func NewCacheError(summary, detail, suggestion string, cause error) *CLIError {
	return newError(KindCache, summary, detail, suggestion, cause)
}

// NewPermissionError reports an OS permission refusal.
func NewPermissionError(summary, detail, suggestion string, cause error) *CLIError {
	return newError(KindPermission, summary, detail, suggestion, cause)
}

// NewIOError reports a generic filesystem error.
func NewIOError(summary, detail, suggestion string, cause error) *CLIError {
	return newError(KindIO, summary, detail, suggestion, cause)
}

// NewConfigError reports a trust-store or project-config load/persist failure.
func NewConfigError(summary, detail, suggestion string, cause error) *CLIError {
	return newError(KindConfig, summary, detail, suggestion, cause)
}

// NewInputError reports invalid CLI input.
func NewInputError(summary, detail, suggestion string, cause error) *CLIError {
	return newError(KindInput, summary, detail, suggestion, cause)
}

// NewInternalError reports a contract violation — a bug, not a user error.
func NewInternalError(summary, detail, suggestion string, cause error) *CLIError {
	return newError(KindInternal, summary, detail, suggestion, cause)
}

// jsonEnvelope is the shape FatalError prints in --json mode.
type jsonEnvelope struct {
	Error      string `json:"error"`
	Kind       Kind   `json:"kind"`
	Detail     string `json:"detail,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// FatalError prints err (as text, or as a JSON envelope when jsonMode is
// true) to stderr and exits the process with a kind-specific exit code. A
// plain, non-*CLIError is printed as-is and exits with KindInternal's code.
// FatalError is only ever called from cmd/cie; library packages must return
// errors instead.
func FatalError(err error, jsonMode bool) {
	var cerr *CLIError
	if !errors.As(err, &cerr) {
		cerr = newError(KindInternal, err.Error(), "", "", err)
	}

	if jsonMode {
		env := jsonEnvelope{
			Error:      cerr.Summary,
			Kind:       cerr.Kind,
			Detail:     cerr.Detail,
			Suggestion: cerr.Suggestion,
		}
		enc, encErr := json.Marshal(env)
		if encErr == nil {
			fmt.Fprintln(os.Stderr, string(enc))
		} else {
			fmt.Fprintln(os.Stderr, cerr.Error())
		}
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", cerr.Summary)
		if cerr.Detail != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", cerr.Detail)
		}
		if cerr.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", cerr.Suggestion)
		}
		if cerr.Cause != nil {
			fmt.Fprintf(os.Stderr, "  Cause: %v\n", cerr.Cause)
		}
	}

	code, ok := exitCodes[cerr.Kind]
	if !ok {
		code = 1
	}
	os.Exit(code)
}
