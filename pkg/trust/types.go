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

// Package trust implements the Trust Store, Trust Prompt and Trust Manager
// (spec.md components B, C, D): the persistent decision store governing
// every filesystem touch, its interactive prompt fallback, and the single
// entry point that composes them.
package trust

import "time"

// Level is the closed set of trust levels a path can hold (spec.md "TrustLevel").
type Level string

const (
	Trusted   Level = "trusted"
	Temporary Level = "temporary" // session-scoped; discarded on process exit
	Blocked   Level = "blocked"   // explicit deny, wins over any ancestor allow
	Untrusted Level = "untrusted" // no decision recorded
)

// Scope describes the extent a single decision applies to (spec.md "TrustScope").
type Scope struct {
	// Recursive makes the entry apply to path and all descendants; false
	// means Directory scope (this path only).
	Recursive bool

	// Session makes the entry valid only until process exit, regardless of
	// ExpiresAt. Session entries are never persisted across restarts.
	Session bool

	// Operations, when non-empty, restricts the entry to the named verbs
	// ("read", "write", "list", "metadata"). An empty set means all verbs.
	Operations map[string]bool
}

// Admits reports whether op is permitted under this scope.
func (s Scope) Admits(op string) bool {
	if len(s.Operations) == 0 {
		return true
	}
	return s.Operations[op]
}

// NewOperationsScope builds a Scope restricted to the given verbs.
func NewOperationsScope(ops ...string) Scope {
	s := Scope{Operations: make(map[string]bool, len(ops))}
	for _, op := range ops {
		s.Operations[op] = true
	}
	return s
}

// Condition is a re-evaluated-on-every-lookup guard on a TrustEntry. A
// failing condition demotes the entry to Untrusted for that lookup only —
// the entry itself is not erased (spec.md "TrustEntry").
type Condition struct {
	// Kind identifies which check to run: "no_modifications_since",
	// "is_git_repo", "max_size", or "extensions".
	Kind string

	// Since is used by "no_modifications_since".
	Since time.Time

	// MaxSize is used by "max_size".
	MaxSize int64

	// Extensions is used by "extensions" (e.g. []string{".md", ".txt"}).
	Extensions []string
}

// Entry is a single trust decision, keyed by its canonical path (spec.md "TrustEntry").
type Entry struct {
	Path       string
	Level      Level
	Scope      Scope
	GrantedAt  time.Time
	ExpiresAt  *time.Time // nil means no expiry
	Reason     string
	Conditions []Condition
}

// expired reports whether e has passed its ExpiresAt, relative to now.
func (e Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Decision is what a Prompt or auto-trust rule produces for an untrusted path.
type Decision struct {
	Outcome DecisionOutcome
	Scope   Scope
	Reason  string
}

// DecisionOutcome is the closed set of prompt outcomes (spec.md "TrustDecision ∈ {Grant(scope), Deny, Block}").
type DecisionOutcome string

const (
	DecisionGrant DecisionOutcome = "grant"
	DecisionDeny  DecisionOutcome = "deny"
	DecisionBlock DecisionOutcome = "block"
)

// CheckResult is what Manager.Check returns to a caller.
type CheckResult struct {
	Granted bool
	// Reason explains a denial (blocked path, scope mismatch, user decline,
	// prompt failure) for display and audit — see SPEC_FULL.md §12.5.
	Reason string
}
